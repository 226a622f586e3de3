// Package storage persists assistant conversations: sessions and their ordered turns.
package storage

import (
	"context"

	"github.com/hyperjump/biznesinfo/internal/models"
)

// DefaultPageSize caps the turns returned by GetSession.
const DefaultPageSize = 200

// Store defines conversation persistence operations.
type Store interface {
	// EnsureSchema creates the conversation tables once per backend.
	EnsureSchema(ctx context.Context) error

	// Session operations
	CreateSession(ctx context.Context, in *models.SessionInput) (string, error)
	GetSession(ctx context.Context, id string) (*models.SessionWithTurns, error)

	// Turn operations
	AppendTurn(ctx context.Context, in *models.TurnInput) (string, error)
	RecentTurns(ctx context.Context, sessionID string, n int) ([]*models.Turn, error)
	LastTurnIndex(ctx context.Context, sessionID string) (int, error)

	// Identity is "dialect:dsn" and keys schema provisioning.
	Identity() string
	Close() error
}
