package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/biznesinfo/internal/database"
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/pkg/metrics"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const turnColumns = "id, session_id, turn_index, user_message, assistant_message, request_id, request_meta, response_meta, created_at"

// SQLStore implements Store on a SQLite or Postgres database.
type SQLStore struct {
	db       *database.DB
	ownsDB   bool
	pageSize int
	logger   *zap.Logger

	// noIdentityCols is set once the sessions table is found without
	// user_email/user_name.
	noIdentityCols atomic.Bool
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithPageSize caps the turns returned by GetSession.
func WithPageSize(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func newSQLStore(db *database.DB, owns bool, opts []Option) *SQLStore {
	s := &SQLStore{db: db, ownsDB: owns, pageSize: DefaultPageSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identity is the underlying database identity.
func (s *SQLStore) Identity() string {
	return s.db.Identity()
}

// Close closes the connection if the store opened it.
func (s *SQLStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// CreateSession inserts a session and returns its generated id.
func (s *SQLStore) CreateSession(ctx context.Context, in *models.SessionInput) (string, error) {
	if in == nil || strings.TrimSpace(in.UserID) == "" {
		return "", fmt.Errorf("%w: user id is required", models.ErrBadInput)
	}
	ctxJSON, err := encodeJSON(in.Context)
	if err != nil {
		return "", fmt.Errorf("%w: context: %v", models.ErrBadInput, err)
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	if !s.noIdentityCols.Load() {
		_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO ai_conversation_sessions
			(id, user_id, user_email, user_name, source, context, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			id, in.UserID, nullString(in.UserEmail), nullString(in.UserName), in.Source, ctxJSON, now, now)
		if err == nil {
			return id, nil
		}
		if !database.IsMissingColumn(err) {
			return "", s.classify("create session", err)
		}
		s.markNoIdentityCols()
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO ai_conversation_sessions
		(id, user_id, source, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id, in.UserID, in.Source, ctxJSON, now, now)
	if err != nil {
		return "", s.classify("create session", err)
	}
	return id, nil
}

// AppendTurn inserts a turn and bumps the session timestamps in one
// transaction. An existing (session, index) pair yields ErrDuplicateTurn.
func (s *SQLStore) AppendTurn(ctx context.Context, in *models.TurnInput) (string, error) {
	if in == nil || in.SessionID == "" {
		return "", fmt.Errorf("%w: session id is required", models.ErrBadInput)
	}
	if in.TurnIndex < 1 {
		return "", fmt.Errorf("%w: turn index must be >= 1, got %d", models.ErrBadInput, in.TurnIndex)
	}
	reqMeta, err := encodeJSON(in.RequestMeta)
	if err != nil {
		return "", fmt.Errorf("%w: request meta: %v", models.ErrBadInput, err)
	}
	respMeta, err := encodeJSON(in.ResponseMeta)
	if err != nil {
		return "", fmt.Errorf("%w: response meta: %v", models.ErrBadInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx,
		s.db.Rebind("SELECT 1 FROM ai_conversation_sessions WHERE id = ?"), in.SessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: session %s", models.ErrNotFound, in.SessionID)
	}
	if err != nil {
		return "", s.classify("append turn", err)
	}

	id := ulid.Make().String()
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, s.db.Rebind(`INSERT INTO ai_conversation_turns (`+turnColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, turn_index) DO NOTHING`),
		id, in.SessionID, in.TurnIndex, in.UserMessage, in.AssistantMessage,
		nullString(in.RequestID), reqMeta, respMeta, now)
	if err != nil {
		return "", s.classify("append turn", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("append turn: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: session %s index %d", models.ErrDuplicateTurn, in.SessionID, in.TurnIndex)
	}

	if _, err := tx.ExecContext(ctx,
		s.db.Rebind("UPDATE ai_conversation_sessions SET updated_at = ?, last_message_at = ? WHERE id = ?"),
		now, now, in.SessionID); err != nil {
		return "", s.classify("touch session", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit turn: %w", err)
	}
	metrics.TurnsAppended.Inc()
	return id, nil
}

// GetSession returns the session and its first page of turns in ascending order.
func (s *SQLStore) GetSession(ctx context.Context, id string) (*models.SessionWithTurns, error) {
	sess, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT `+turnColumns+`
		FROM ai_conversation_turns WHERE session_id = ? ORDER BY turn_index ASC LIMIT ?`),
		id, s.pageSize)
	if err != nil {
		return nil, s.classify("list turns", err)
	}
	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	return &models.SessionWithTurns{Session: sess, Turns: turns}, nil
}

// RecentTurns returns the last n turns of a session in ascending order.
func (s *SQLStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]*models.Turn, error) {
	if n <= 0 {
		return []*models.Turn{}, nil
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT `+turnColumns+`
		FROM ai_conversation_turns WHERE session_id = ? ORDER BY turn_index DESC LIMIT ?`),
		sessionID, n)
	if err != nil {
		return nil, s.classify("recent turns", err)
	}
	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// LastTurnIndex returns the highest turn index of a session, 0 when it has none.
func (s *SQLStore) LastTurnIndex(ctx context.Context, sessionID string) (int, error) {
	var idx int
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT COALESCE(MAX(turn_index), 0) FROM ai_conversation_turns WHERE session_id = ?"),
		sessionID).Scan(&idx)
	if err != nil {
		return 0, s.classify("last turn index", err)
	}
	return idx, nil
}

func (s *SQLStore) getSession(ctx context.Context, id string) (*models.Session, error) {
	if !s.noIdentityCols.Load() {
		sess, err := s.scanSession(ctx, id, true)
		if err == nil || !database.IsMissingColumn(err) {
			return sess, err
		}
		s.markNoIdentityCols()
	}
	return s.scanSession(ctx, id, false)
}

func (s *SQLStore) scanSession(ctx context.Context, id string, withIdentity bool) (*models.Session, error) {
	cols := "id, user_id, source, context, created_at, updated_at, last_message_at"
	if withIdentity {
		cols += ", user_email, user_name"
	}
	row := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT "+cols+" FROM ai_conversation_sessions WHERE id = ?"), id)

	var (
		sess        models.Session
		source      sql.NullString
		ctxJSON     sql.NullString
		lastMessage sql.NullTime
		email, name sql.NullString
	)
	dest := []interface{}{&sess.ID, &sess.UserID, &source, &ctxJSON, &sess.CreatedAt, &sess.UpdatedAt, &lastMessage}
	if withIdentity {
		dest = append(dest, &email, &name)
	}
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	if err != nil {
		if database.IsMissingColumn(err) {
			return nil, err
		}
		return nil, s.classify("get session", err)
	}

	sess.Source = source.String
	if lastMessage.Valid {
		t := lastMessage.Time
		sess.LastMessageAt = &t
	}
	if email.Valid {
		sess.UserEmail = &email.String
	}
	if name.Valid {
		sess.UserName = &name.String
	}
	if sess.Context, err = decodeJSON(ctxJSON); err != nil {
		return nil, fmt.Errorf("decode session context: %w", err)
	}
	return &sess, nil
}

func (s *SQLStore) markNoIdentityCols() {
	if s.noIdentityCols.CompareAndSwap(false, true) {
		s.logger.Warn("ai_conversation_sessions lacks user_email/user_name; reading without them")
	}
}

// classify maps a missing schema to ErrNotFound and wraps everything else.
func (s *SQLStore) classify(op string, err error) error {
	if database.IsMissingTable(err) {
		return fmt.Errorf("%w: conversation tables missing", models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanTurns(rows *sql.Rows) ([]*models.Turn, error) {
	defer func() { _ = rows.Close() }()
	turns := make([]*models.Turn, 0)
	for rows.Next() {
		var (
			t                 models.Turn
			assistant, reqID  sql.NullString
			reqMeta, respMeta sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.TurnIndex, &t.UserMessage, &assistant, &reqID, &reqMeta, &respMeta, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if assistant.Valid {
			t.AssistantMessage = &assistant.String
		}
		if reqID.Valid {
			t.RequestID = &reqID.String
		}
		var err error
		if t.RequestMeta, err = decodeJSON(reqMeta); err != nil {
			return nil, fmt.Errorf("decode request meta: %w", err)
		}
		if t.ResponseMeta, err = decodeJSON(respMeta); err != nil {
			return nil, fmt.Errorf("decode response meta: %w", err)
		}
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func encodeJSON(m map[string]interface{}) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeJSON(s sql.NullString) (map[string]interface{}, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
