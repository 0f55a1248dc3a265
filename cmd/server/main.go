package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/database"
	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/logger"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/router"
	"github.com/iliyamo/storefront-api/internal/service"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	zl, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	cfg := config.Load(zl)

	db, err := database.Open(cfg)
	if err != nil {
		zl.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			zl.Fatal("schema migration failed", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient(zl)
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	purger := middleware.NewCachePurger(cacheCfg, rdb)

	var events service.EventPublisher = queue.Nop{}
	amqpCfg := config.LoadAMQPConfig()
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if amqpCfg.Enabled {
		events = queue.NewPublisher(amqpCfg, zl)
		go func() {
			if err := queue.StartNotificationConsumer(rootCtx, amqpCfg, zl); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}

	// repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	products := repository.NewProductRepo(db)
	carts := repository.NewCartRepo(db)
	orders := repository.NewOrderRepo(db)

	// services
	authSvc := service.NewAuthService(users, tokens, events, cfg, zl)
	catalogSvc := service.NewCatalogService(products, purger, zl)
	cartSvc := service.NewCartService(carts, products)
	orderSvc := service.NewOrderService(orders, events, purger, service.OrderOptions{
		DefaultPaymentMethod: cfg.DefaultPaymentMethod,
		StrictTransitions:    cfg.StrictOrderTransitions,
	}, zl)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(zl))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders: []string{"X-Total-Count", "X-Page", "X-Limit", "X-Cache", echo.HeaderXRequestID},
	}))
	rl := config.LoadRateLimitConfig()
	e.Use(middleware.NewTokenBucket(rl, rdb, zl))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, authSvc, zl), cfg.JWTSecret,
		middleware.NewTokenBucket(rl.Scoped("auth", rl.AuthCapacity), rdb, zl))
	router.RegisterCatalog(e, handler.NewProductHandler(catalogSvc, zl), cfg.JWTSecret,
		middleware.NewRedisCache(cacheCfg, rdb, service.CatalogNamespace, zl))
	router.RegisterCustomer(e, handler.NewCartHandler(cartSvc, zl), handler.NewOrderHandler(orderSvc, zl), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zl.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}
