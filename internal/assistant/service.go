// Package assistant runs one assistant request end to end: admit the user,
// find candidate companies, generate a reply and record the turn.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperjump/biznesinfo/internal/events"
	"github.com/hyperjump/biznesinfo/internal/generate"
	"github.com/hyperjump/biznesinfo/internal/lock"
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/internal/storage"
	"github.com/hyperjump/biznesinfo/pkg/metrics"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Duration outcomes.
const (
	outcomeOK    = "ok"
	outcomeBusy  = "busy"
	outcomeError = "error"
)

const releaseTimeout = 5 * time.Second

// Searcher resolves company candidates.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) *models.SearchResult
}

// Config tunes a Service.
type Config struct {
	LockTTLSeconds    int
	Candidates        int
	HistoryTurns      int
	MaxTokens         int
	Temperature       float64
	Model             string
	MaxAppendAttempts int
}

func (c *Config) applyDefaults() {
	if c.LockTTLSeconds <= 0 {
		c.LockTTLSeconds = 120
	}
	if c.Candidates <= 0 {
		c.Candidates = 8
	}
	if c.HistoryTurns < 0 {
		c.HistoryTurns = 0
	}
	if c.MaxAppendAttempts <= 0 {
		c.MaxAppendAttempts = 5
	}
}

// Deps are the collaborators of a Service. Publisher may be nil.
type Deps struct {
	Locker    lock.Locker
	Searcher  Searcher
	Store     storage.Store
	Generator generate.Generator
	Publisher events.Publisher
}

// Request is one user message to the assistant.
type Request struct {
	UserID    string
	UserEmail string
	UserName  string
	SessionID string
	Message   string
	City      string
	Region    string
	Source    string
	Context   map[string]interface{}
}

// Reply is the persisted outcome of a request.
type Reply struct {
	SessionID string            `json:"session_id"`
	TurnID    string            `json:"turn_id"`
	TurnIndex int               `json:"turn_index"`
	RequestID string            `json:"request_id"`
	Message   string            `json:"message"`
	Companies []*models.Company `json:"companies"`
	Backend   string            `json:"backend,omitempty"`
	City      string            `json:"city,omitempty"`
}

// Service orchestrates assistant requests.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// NewService creates a Service.
func NewService(deps Deps, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}
}

// Ask handles one request. It returns a Reply, a *models.BusyError when another
// request of the same user is in flight, or a classified error. A generation
// failure still records the user's message before the error is returned.
func (s *Service) Ask(ctx context.Context, req *Request) (reply *Reply, err error) {
	start := time.Now()
	defer func() {
		outcome := outcomeOK
		switch {
		case errors.Is(err, models.ErrBusy):
			outcome = outcomeBusy
		case err != nil:
			outcome = outcomeError
		}
		metrics.AssistantDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if req == nil || strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrBadInput)
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", models.ErrBadInput)
	}
	requestID := ulid.Make().String()
	log := s.logger.With(zap.String("user_id", req.UserID), zap.String("request_id", requestID))

	admission, err := s.deps.Locker.Acquire(ctx, req.UserID, requestID, s.cfg.LockTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("acquire admission lock: %w", err)
	}
	if !admission.Acquired {
		log.Info("assistant request rejected, user busy",
			zap.String("owner_request_id", admission.OwnerRequestID),
			zap.Int("retry_after_seconds", admission.RetryAfterSeconds),
		)
		return nil, &models.BusyError{
			OwnerRequestID:    admission.OwnerRequestID,
			ExpiresAt:         admission.ExpiresAt,
			RetryAfterSeconds: admission.RetryAfterSeconds,
		}
	}
	defer s.release(ctx, log, req.UserID, requestID)

	found := s.deps.Searcher.Search(ctx, models.SearchQuery{
		Query:  message,
		City:   req.City,
		Region: req.Region,
		Limit:  s.cfg.Candidates,
	})

	sessionID, history, err := s.openSession(ctx, req)
	if err != nil {
		return nil, err
	}

	genReq := &generate.Request{
		Model:       s.cfg.Model,
		System:      buildSystemPrompt(found.Companies, found.City),
		Messages:    buildMessages(history, message),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
	resp, genErr := s.generate(ctx, log, req.UserID, requestID, genReq)

	turn := &models.TurnInput{
		SessionID:   sessionID,
		UserMessage: message,
		RequestID:   requestID,
		RequestMeta: map[string]interface{}{
			"candidates": slugs(found.Companies),
			"backend":    found.Backend,
			"city":       found.City,
			"generator":  s.deps.Generator.Name(),
		},
	}
	if genErr != nil {
		turn.ResponseMeta = map[string]interface{}{"error": genErr.Error()}
	} else {
		turn.AssistantMessage = &resp.Content
		turn.ResponseMeta = map[string]interface{}{
			"model":      resp.Model,
			"tokens_in":  resp.TokensIn,
			"tokens_out": resp.TokensOut,
		}
	}

	turnID, turnIndex, err := s.appendTurn(ctx, turn)
	if err != nil {
		log.Error("failed to persist turn", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	s.publish(ctx, log, &models.TurnEvent{
		SessionID: sessionID,
		TurnID:    turnID,
		TurnIndex: turnIndex,
		UserID:    req.UserID,
		RequestID: requestID,
		Companies: slugs(found.Companies),
		Failed:    genErr != nil,
		CreatedAt: time.Now().UTC(),
	})

	if genErr != nil {
		log.Error("generation failed", zap.String("session_id", sessionID), zap.Error(genErr))
		return nil, fmt.Errorf("generate reply: %w", genErr)
	}
	log.Info("assistant turn recorded",
		zap.String("session_id", sessionID),
		zap.Int("turn_index", turnIndex),
		zap.Int("candidates", len(found.Companies)),
		zap.String("backend", found.Backend),
		zap.Duration("took", time.Since(start)),
	)
	return &Reply{
		SessionID: sessionID,
		TurnID:    turnID,
		TurnIndex: turnIndex,
		RequestID: requestID,
		Message:   resp.Content,
		Companies: found.Companies,
		Backend:   found.Backend,
		City:      found.City,
	}, nil
}

// openSession creates a session or loads an owned one with its recent history.
func (s *Service) openSession(ctx context.Context, req *Request) (string, []*models.Turn, error) {
	if req.SessionID == "" {
		id, err := s.deps.Store.CreateSession(ctx, &models.SessionInput{
			UserID:    req.UserID,
			UserEmail: req.UserEmail,
			UserName:  req.UserName,
			Source:    req.Source,
			Context:   req.Context,
		})
		if err != nil {
			return "", nil, fmt.Errorf("create session: %w", err)
		}
		return id, nil, nil
	}

	sess, err := s.deps.Store.GetSession(ctx, req.SessionID)
	if err != nil {
		return "", nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Session.UserID != req.UserID {
		return "", nil, fmt.Errorf("%w: session %s", models.ErrForbidden, req.SessionID)
	}
	history, err := s.deps.Store.RecentTurns(ctx, req.SessionID, s.cfg.HistoryTurns)
	if err != nil {
		return "", nil, fmt.Errorf("load history: %w", err)
	}
	return req.SessionID, history, nil
}

// generate calls the generator while a heartbeat keeps the admission lock alive.
func (s *Service) generate(ctx context.Context, log *zap.Logger, userID, requestID string, req *generate.Request) (*generate.Response, error) {
	hbCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.heartbeat(hbCtx, log, userID, requestID)
	}()
	resp, err := s.deps.Generator.Generate(ctx, req)
	stop()
	<-done
	return resp, err
}

func (s *Service) heartbeat(ctx context.Context, log *zap.Logger, userID, requestID string) {
	interval := time.Duration(s.cfg.LockTTLSeconds) * time.Second / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.deps.Locker.Extend(ctx, userID, requestID, s.cfg.LockTTLSeconds); err != nil && ctx.Err() == nil {
				log.Warn("failed to extend admission lock", zap.Error(err))
			}
		}
	}
}

// appendTurn stores the turn at the next free index, retrying with backoff
// while another writer takes the same index.
func (s *Service) appendTurn(ctx context.Context, turn *models.TurnInput) (string, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxAppendAttempts-1)), ctx)

	var turnID string
	op := func() error {
		last, err := s.deps.Store.LastTurnIndex(ctx, turn.SessionID)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("next turn index: %w", err))
		}
		turn.TurnIndex = last + 1
		turnID, err = s.deps.Store.AppendTurn(ctx, turn)
		if errors.Is(err, models.ErrDuplicateTurn) {
			return err
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("append turn: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return "", 0, err
	}
	return turnID, turn.TurnIndex, nil
}

func (s *Service) publish(ctx context.Context, log *zap.Logger, ev *models.TurnEvent) {
	if err := s.deps.Publisher.PublishTurn(ctx, ev); err != nil {
		log.Warn("failed to publish turn event", zap.String("session_id", ev.SessionID), zap.Error(err))
	}
}

// release frees the lock even when the request context is already cancelled.
func (s *Service) release(ctx context.Context, log *zap.Logger, userID, requestID string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.deps.Locker.Release(rctx, userID, requestID); err != nil {
		log.Warn("failed to release admission lock", zap.Error(err))
	}
}
