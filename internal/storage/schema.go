package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/biznesinfo/internal/database"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MigrationID is the ledger row written once the conversation schema exists.
const MigrationID = "ai_conversations_v1"

// schemaTimeout bounds a shared migration run.
const schemaTimeout = 30 * time.Second

var (
	schemaGroup singleflight.Group
	schemaMu    sync.Mutex
	schemaDone  = map[string]bool{}
)

func schemaReady(identity string) bool {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	return schemaDone[identity]
}

func markSchemaReady(identity string) {
	schemaMu.Lock()
	schemaDone[identity] = true
	schemaMu.Unlock()
}

func schemaStatements(d database.Dialect) []string {
	ts := "TIMESTAMP"
	if d == database.Postgres {
		ts = "TIMESTAMPTZ"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS ai_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ai_conversation_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			user_email TEXT,
			user_name TEXT,
			source TEXT NOT NULL DEFAULT '',
			context TEXT,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL,
			last_message_at ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_sessions_user ON ai_conversation_sessions(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS ai_conversation_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES ai_conversation_sessions(id) ON DELETE CASCADE,
			turn_index INTEGER NOT NULL,
			user_message TEXT NOT NULL,
			assistant_message TEXT,
			request_id TEXT,
			request_meta TEXT,
			response_meta TEXT,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_ai_turns_session_index ON ai_conversation_turns(session_id, turn_index)`,
	}
}

// EnsureSchema provisions the conversation tables. Concurrent calls for the
// same backend share one run; a backend is only provisioned once per process.
// The shared run ignores the caller's cancellation so one canceled request
// cannot fail the others waiting on it.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	id := s.Identity()
	if schemaReady(id) {
		return nil
	}
	_, err, _ := schemaGroup.Do(id, func() (interface{}, error) {
		if schemaReady(id) {
			return nil, nil
		}
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schemaTimeout)
		defer cancel()
		if err := s.migrate(mctx); err != nil {
			return nil, err
		}
		markSchemaReady(id)
		return nil, nil
	})
	return err
}

func (s *SQLStore) migrate(ctx context.Context) error {
	applied, err := s.migrationApplied(ctx)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements(s.db.Dialect()) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create conversation schema: %w", err)
		}
	}
	for _, col := range []string{"user_email", "user_name"} {
		if err := s.addColumnIfMissing(ctx, tx, "ai_conversation_sessions", col); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		s.db.Rebind("INSERT INTO ai_schema_migrations (id, applied_at) VALUES (?, ?) ON CONFLICT (id) DO NOTHING"),
		MigrationID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	s.logger.Info("conversation schema migrated",
		zap.String("migration", MigrationID),
		zap.String("dialect", string(s.db.Dialect())),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (s *SQLStore) migrationApplied(ctx context.Context) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT 1 FROM ai_schema_migrations WHERE id = ?"), MigrationID).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows), database.IsMissingTable(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read migration ledger: %w", err)
	}
}

func (s *SQLStore) addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, column string) error {
	if s.db.Dialect() == database.Postgres {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT", table, column))
		if err != nil {
			return fmt.Errorf("failed to add column %s: %w", column, err)
		}
		return nil
	}
	var n int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&n); err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", table, column)); err != nil {
		return fmt.Errorf("failed to add column %s: %w", column, err)
	}
	return nil
}
