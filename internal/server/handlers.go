package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/biznesinfo/internal/assistant"
	"github.com/hyperjump/biznesinfo/internal/database"
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/internal/storage"
	"go.uber.org/zap"
)

const maxAssistantBody = 64 << 10

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.SearchQuery{
		Query:    q.Get("q"),
		Service:  q.Get("service"),
		Keywords: q.Get("keywords"),
		Region:   q.Get("region"),
		City:     q.Get("city"),
		Offset:   models.ParseIntDefault(q.Get("offset"), 0),
		Limit:    models.ParseIntDefault(q.Get("limit"), s.config.Search.DefaultLimit),
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.String("city", query.City), zap.Int("limit", query.Limit))
	s.respondJSON(w, http.StatusOK, s.deps.Search.Search(r.Context(), query))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	caller, _ := IdentityFrom(r.Context())

	conv, err := s.deps.Store.GetSession(r.Context(), id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if conv.Session.UserID != caller.UserID {
		s.respondErr(w, r, models.ErrForbidden)
		return
	}
	s.respondJSON(w, http.StatusOK, conv)
}

type assistantRequest struct {
	SessionID string                 `json:"session_id"`
	Message   string                 `json:"message"`
	City      string                 `json:"city"`
	Region    string                 `json:"region"`
	Source    string                 `json:"source"`
	Context   map[string]interface{} `json:"context"`
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	var body assistantRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAssistantBody)).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	source := body.Source
	if source == "" {
		source = "web"
	}
	reply, err := s.deps.Assistant.Ask(r.Context(), &assistant.Request{
		UserID:    caller.UserID,
		UserEmail: caller.Email,
		UserName:  caller.Name,
		SessionID: body.SessionID,
		Message:   body.Message,
		City:      body.City,
		Region:    body.Region,
		Source:    source,
		Context:   body.Context,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if s.deps.Health != nil {
		resp["components"] = s.deps.Health(r.Context())
	}
	usage, err := storage.Footprint(map[string]string{
		"database":    database.FilePath(s.config.Database.DSN),
		"catalog":     s.config.Catalog.Path,
		"bleve_index": s.config.Catalog.BleveIndexPath,
	})
	if err == nil {
		resp["disk_usage_bytes"] = usage
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondErr maps domain errors to status codes. Unclassified errors are
// logged and reported without detail.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var busy *models.BusyError
	switch {
	case errors.As(err, &busy):
		w.Header().Set("Retry-After", strconv.Itoa(max(busy.RetryAfterSeconds, 1)))
		s.respondJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":               "busy",
			"retry_after_seconds": busy.RetryAfterSeconds,
			"owner_request_id":    busy.OwnerRequestID,
		})
	case errors.Is(err, models.ErrBadInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, models.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrDuplicateTurn):
		s.respondError(w, http.StatusConflict, "conversation was updated concurrently, retry")
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
