package queue

import (
    "context"
    "encoding/json"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-api/internal/config"
)

// Publisher sends domain events to a durable topic exchange.  A connection
// is opened per publish; event volume is one message per checkout or
// status change.
type Publisher struct {
    cfg config.AMQPConfig
    log *zap.Logger
}

func NewPublisher(cfg config.AMQPConfig, log *zap.Logger) *Publisher {
    return &Publisher{cfg: cfg, log: log}
}

// Publish marshals event and publishes it with routing key name.  Errors are
// logged and returned so the caller can choose to ignore them.  Messages
// are persistent.
func (p *Publisher) Publish(ctx context.Context, name string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        p.log.Error("rabbitmq: marshal event failed", zap.String("event", name), zap.Error(err))
        return err
    }

    conn, err := dial(ctx, p.cfg)
    if err != nil {
        p.log.Warn("rabbitmq: dial failed", zap.String("event", name), zap.Error(err))
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
        return err
    }
    defer func() { _ = ch.Close() }()

    if err := declareExchange(ch, p.cfg.Exchange); err != nil {
        p.log.Warn("rabbitmq: exchange declare failed", zap.String("exchange", p.cfg.Exchange), zap.Error(err))
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    uuid.NewString(),
        Type:         name,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, p.cfg.Exchange, name, false, false, pub); err != nil {
        p.log.Warn("rabbitmq: publish failed", zap.String("event", name), zap.Error(err))
        return err
    }
    p.log.Debug("event published", zap.String("event", name), zap.String("message_id", pub.MessageId))
    return nil
}

// dial connects with a bounded handshake.  The bound is the configured
// DialTimeout or what is left of ctx, whichever is shorter.
func dial(ctx context.Context, cfg config.AMQPConfig) (*amqp.Connection, error) {
    timeout := cfg.DialTimeout
    if timeout <= 0 {
        timeout = 2 * time.Second
    }
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < timeout {
            timeout = left
        }
    }
    if timeout <= 0 {
        return nil, context.DeadlineExceeded
    }
    return amqp.DialConfig(cfg.URL, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
}

// Nop discards events.  Used when AMQP is disabled and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

func declareExchange(ch *amqp.Channel, name string) error {
    return ch.ExchangeDeclare(
        name,
        amqp.ExchangeTopic,
        true,  // durable
        false, // autoDelete
        false, // internal
        false, // noWait
        nil,
    )
}
