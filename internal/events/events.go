// Package events publishes conversation turn notifications to NATS JetStream.
package events

import (
	"context"

	"github.com/hyperjump/biznesinfo/internal/models"
)

// Stream and subject names.
const (
	StreamName    = "AI_TURNS"
	SubjectPrefix = "biznesinfo.assistant"
	TurnSubject   = SubjectPrefix + ".turns"
)

// Publisher delivers turn events.
type Publisher interface {
	PublishTurn(ctx context.Context, ev *models.TurnEvent) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// PublishTurn does nothing.
func (Nop) PublishTurn(ctx context.Context, ev *models.TurnEvent) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
