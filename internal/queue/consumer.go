package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-api/internal/config"
)

// bindings are the routing patterns the notification queue listens to.
var bindings = []string{"order.*", "user.*"}

// StartNotificationConsumer connects to RabbitMQ, declares the exchange and
// a durable notification queue, and "delivers" every event as a mock email
// by writing it to the log.  It runs a reconnect loop and returns only when
// ctx is cancelled.  Messages that cannot be decoded are rejected without
// requeue so the loop keeps running.
func StartNotificationConsumer(ctx context.Context, cfg config.AMQPConfig, log *zap.Logger) error {
    log = log.Named("notify-consumer")
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := dial(ctx, cfg)
        if err != nil {
            log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, cfg, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("consume loop ended; reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.AMQPConfig, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("set QoS failed", zap.Error(err))
    }
    if err := declareExchange(ch, cfg.Exchange); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    for _, key := range bindings {
        if err := ch.QueueBind(cfg.Queue, key, cfg.Exchange, false, nil); err != nil {
            return fmt.Errorf("queue bind %s: %w", key, err)
        }
    }

    msgs, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(log, d.RoutingKey, d.Body); err != nil {
                log.Error("handle message failed", zap.String("routing_key", d.RoutingKey), zap.Error(err))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// handleMessage renders the mock email for one event.  Unknown routing keys
// are acknowledged and ignored.
func handleMessage(log *zap.Logger, routingKey string, body []byte) error {
    switch routingKey {
    case EventUserRegistered:
        var ev UserRegisteredEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        log.Info("mock email: verify your address",
            zap.String("to", ev.Email),
            zap.String("username", ev.Username),
            zap.Uint64("user_id", ev.UserID),
            zap.String("link", "/auth/verify-email?token="+ev.VerificationToken))
    case EventOrderPlaced:
        var ev OrderPlacedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        log.Info("mock email: order received",
            zap.Uint64("order_id", ev.OrderID),
            zap.Uint64("user_id", ev.UserID),
            zap.String("total", ev.TotalAmount),
            zap.Int("items", ev.ItemCount),
            zap.String("payment_method", ev.PaymentMethod))
    case EventOrderStatusChanged:
        var ev OrderStatusChangedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        log.Info("mock email: order status updated",
            zap.Uint64("order_id", ev.OrderID),
            zap.Uint64("user_id", ev.UserID),
            zap.String("from", ev.From),
            zap.String("to", ev.To))
    default:
        log.Debug("ignoring event", zap.String("routing_key", routingKey))
    }
    return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
