package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/biznesinfo/internal/database"
)

// NewPrimaryStore stores conversations in the application database. Close does
// not close db.
func NewPrimaryStore(db *database.DB, opts ...Option) *SQLStore {
	return newSQLStore(db, false, opts)
}

// NewExternalStore opens a dedicated conversation database at dsn.
func NewExternalStore(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := database.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation database: %w", err)
	}
	return newSQLStore(db, true, opts), nil
}

// Open picks the external store when dsn is set, the primary store otherwise.
func Open(ctx context.Context, dsn string, primary *database.DB, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(dsn) != "" {
		return NewExternalStore(ctx, dsn, opts...)
	}
	if primary == nil {
		return nil, errors.New("no conversation database configured")
	}
	return NewPrimaryStore(primary, opts...), nil
}
