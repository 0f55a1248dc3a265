package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestHandleUserRegisteredLogsMockEmail(t *testing.T) {
	log, logs := observed()
	body, err := json.Marshal(UserRegisteredEvent{UserID: 3, Username: "ana", Email: "ana@example.com", VerificationToken: "tok"})
	require.NoError(t, err)

	require.NoError(t, handleMessage(log, EventUserRegistered, body))

	entries := logs.FilterMessage("mock email: verify your address").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ana@example.com", fields["to"])
	assert.Equal(t, "/auth/verify-email?token=tok", fields["link"])
}

func TestHandleOrderPlaced(t *testing.T) {
	log, logs := observed()
	body, _ := json.Marshal(OrderPlacedEvent{OrderID: 9, UserID: 3, TotalAmount: "20.00", ItemCount: 1})

	require.NoError(t, handleMessage(log, EventOrderPlaced, body))
	entries := logs.FilterMessage("mock email: order received").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "20.00", entries[0].ContextMap()["total"])
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	log, _ := observed()
	assert.Error(t, handleMessage(log, EventOrderStatusChanged, []byte("{nope")))
}

func TestHandleMessageIgnoresUnknownKeys(t *testing.T) {
	log, logs := observed()
	assert.NoError(t, handleMessage(log, "inventory.rebuilt", []byte("{}")))
	assert.Equal(t, 1, logs.FilterMessage("ignoring event").Len())
}
