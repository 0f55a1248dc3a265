package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/service"
	"github.com/iliyamo/storefront-api/internal/testutil"
)

type fixture struct {
	store   *testutil.Store
	events  *testutil.Events
	purges  *testutil.Purges
	auth    *service.AuthService
	catalog *service.CatalogService
	cart    *service.CartService
	orders  *service.OrderService
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		JWTSecret:      "test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		VerifyTTLMin:   30,
		BcryptCost:     4,
	}
}

func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testConfig()
	for _, o := range opts {
		o(&cfg)
	}
	st := testutil.NewStore()
	ev := &testutil.Events{}
	pu := &testutil.Purges{}
	log := zap.NewNop()
	return &fixture{
		store:   st,
		events:  ev,
		purges:  pu,
		auth:    service.NewAuthService(st.Users(), st.Tokens(), ev, cfg, log),
		catalog: service.NewCatalogService(st.Products(), pu, log),
		cart:    service.NewCartService(st.Carts(), st.Products()),
		orders: service.NewOrderService(st.Orders(), ev, pu, service.OrderOptions{
			DefaultPaymentMethod: cfg.DefaultPaymentMethod,
			StrictTransitions:    cfg.StrictOrderTransitions,
		}, log),
	}
}

// user registers an account with the given role and returns it as a Caller.
func (f *fixture) user(t *testing.T, name string, role model.Role) service.Caller {
	t.Helper()
	reg, err := f.auth.Register(context.Background(), service.RegisterInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "password123",
		Role:     string(role),
	})
	require.NoError(t, err)
	return service.Caller{ID: reg.User.ID, Role: reg.User.Role}
}
