package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.PublishTurn(context.Background(), &models.TurnEvent{}); err != nil {
		t.Errorf("PublishTurn: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNATSPublisher(t *testing.T) {
	url := os.Getenv("BIZNESINFO_TEST_NATS_URL")
	if url == "" {
		t.Skip("BIZNESINFO_TEST_NATS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := NewNATSPublisher(ctx, NATSConfig{URL: url, MaxAge: time.Hour}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNATSPublisher: %v", err)
	}
	defer func() { _ = p.Close() }()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	sub, err := nc.SubscribeSync(TurnSubject)
	if err != nil {
		t.Fatal(err)
	}

	ev := &models.TurnEvent{SessionID: "s1", TurnID: ulid.Make().String(), TurnIndex: 1, UserID: "u1"}
	if err := p.PublishTurn(ctx, ev); err != nil {
		t.Fatalf("PublishTurn: %v", err)
	}
	if _, err := sub.NextMsg(5 * time.Second); err != nil {
		t.Errorf("no message received: %v", err)
	}
}
