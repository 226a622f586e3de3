package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/biznesinfo/internal/database"
	"go.uber.org/zap"
)

const createLockTable = `
CREATE TABLE IF NOT EXISTS ai_request_locks (
	user_id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	expires_at_ms BIGINT NOT NULL,
	created_at_ms BIGINT NOT NULL
)`

// lockDB is the part of *database.DB the SQL locker runs on.
type lockDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Rebind(query string) string
}

// SQLLocker stores locks in the ai_request_locks table. If the table is missing
// every call succeeds in degraded mode.
type SQLLocker struct {
	settings
	db       lockDB
	warnOnce sync.Once
}

// NewSQLLocker creates a locker on db.
func NewSQLLocker(db *database.DB, opts ...Option) *SQLLocker {
	return newSQLLocker(db, opts...)
}

func newSQLLocker(db lockDB, opts ...Option) *SQLLocker {
	return &SQLLocker{settings: newSettings(opts), db: db}
}

// EnsureTable creates the lock table if needed.
func (l *SQLLocker) EnsureTable(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createLockTable); err != nil {
		return fmt.Errorf("failed to create lock table: %w", err)
	}
	return nil
}

// Acquire clears this user's expired lock, tries to insert a new one, and
// otherwise reports the current owner. A row that disappears between the insert
// and the read counts as acquired.
func (l *SQLLocker) Acquire(ctx context.Context, userID, requestID string, ttlSeconds int) (Result, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	expires := now.Add(l.ttl(ttlSeconds))

	_, err := l.db.ExecContext(ctx,
		l.db.Rebind("DELETE FROM ai_request_locks WHERE user_id = ? AND expires_at_ms <= ?"),
		userID, nowMs)
	if err != nil {
		return l.fail(err, expires)
	}

	res, err := l.db.ExecContext(ctx,
		l.db.Rebind(`INSERT INTO ai_request_locks (user_id, request_id, expires_at_ms, created_at_ms)
			VALUES (?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`),
		userID, requestID, expires.UnixMilli(), nowMs)
	if err != nil {
		return l.fail(err, expires)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return acquired(expires), nil
	}

	var (
		owner     string
		expiresMs int64
	)
	err = l.db.QueryRowContext(ctx,
		l.db.Rebind("SELECT request_id, expires_at_ms FROM ai_request_locks WHERE user_id = ?"),
		userID).Scan(&owner, &expiresMs)
	if errors.Is(err, sql.ErrNoRows) {
		return acquired(expires), nil
	}
	if err != nil {
		return l.fail(err, expires)
	}
	return busy(owner, time.UnixMilli(expiresMs), now), nil
}

// Extend moves the expiry of the (userID, requestID) lock.
func (l *SQLLocker) Extend(ctx context.Context, userID, requestID string, ttlSeconds int) error {
	expires := l.now().Add(l.ttl(ttlSeconds))
	_, err := l.db.ExecContext(ctx,
		l.db.Rebind("UPDATE ai_request_locks SET expires_at_ms = ? WHERE user_id = ? AND request_id = ?"),
		expires.UnixMilli(), userID, requestID)
	return l.ignoreMissing(err)
}

// Release deletes the (userID, requestID) lock.
func (l *SQLLocker) Release(ctx context.Context, userID, requestID string) error {
	_, err := l.db.ExecContext(ctx,
		l.db.Rebind("DELETE FROM ai_request_locks WHERE user_id = ? AND request_id = ?"),
		userID, requestID)
	return l.ignoreMissing(err)
}

func (l *SQLLocker) fail(err error, expires time.Time) (Result, error) {
	if database.IsMissingTable(err) {
		l.warnDegraded(err)
		return degraded(expires), nil
	}
	return Result{}, fmt.Errorf("lock query failed: %w", err)
}

func (l *SQLLocker) ignoreMissing(err error) error {
	if err == nil {
		return nil
	}
	if database.IsMissingTable(err) {
		l.warnDegraded(err)
		return nil
	}
	return fmt.Errorf("lock query failed: %w", err)
}

func (l *SQLLocker) warnDegraded(err error) {
	l.warnOnce.Do(func() {
		l.logger.Warn("ai_request_locks table missing, admission lock disabled", zap.Error(err))
	})
}
