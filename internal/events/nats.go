package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// NATSConfig holds connection settings.
type NATSConfig struct {
	URL    string
	Token  string
	MaxAge time.Duration
}

// NATSPublisher publishes turn events to a JetStream stream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

// NewNATSPublisher connects to NATS and ensures the turn stream exists.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name("biznesinfo"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &NATSPublisher{conn: nc, js: js, logger: logger}
	if err := p.ensureStream(ctx, cfg.MaxAge); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *NATSPublisher) ensureStream(ctx context.Context, maxAge time.Duration) error {
	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		return nil
	}
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      maxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Assistant conversation turns",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishTurn publishes ev as JSON on the turn subject.
func (p *NATSPublisher) PublishTurn(ctx context.Context, ev *models.TurnEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal turn event: %w", err)
	}
	if _, err := p.js.Publish(ctx, TurnSubject, data, jetstream.WithMsgID(ev.TurnID)); err != nil {
		return fmt.Errorf("failed to publish turn event: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
