package models

import "time"

// Session is a conversation header. UserEmail and UserName are denormalized copies
// and are nil when unknown or when the deployed schema lacks those columns.
type Session struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"user_id"`
	UserEmail     *string                `json:"user_email"`
	UserName      *string                `json:"user_name"`
	Source        string                 `json:"source,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	LastMessageAt *time.Time             `json:"last_message_at"`
}

// Turn is one user message and optional assistant reply within a session.
type Turn struct {
	ID               string                 `json:"id"`
	SessionID        string                 `json:"session_id"`
	TurnIndex        int                    `json:"turn_index"`
	UserMessage      string                 `json:"user_message"`
	AssistantMessage *string                `json:"assistant_message"`
	RequestID        *string                `json:"request_id"`
	RequestMeta      map[string]interface{} `json:"request_meta,omitempty"`
	ResponseMeta     map[string]interface{} `json:"response_meta,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// SessionWithTurns is a session header and its turns in ascending turn_index order.
type SessionWithTurns struct {
	Session *Session `json:"session"`
	Turns   []*Turn  `json:"turns"`
}

// SessionInput is the input for creating a session.
type SessionInput struct {
	UserID    string
	UserEmail string
	UserName  string
	Source    string
	Context   map[string]interface{}
}

// TurnInput is the input for appending a turn.
type TurnInput struct {
	SessionID        string
	TurnIndex        int
	UserMessage      string
	AssistantMessage *string
	RequestID        string
	RequestMeta      map[string]interface{}
	ResponseMeta     map[string]interface{}
}

// TurnEvent is published after a turn has been persisted.
type TurnEvent struct {
	SessionID string    `json:"session_id"`
	TurnID    string    `json:"turn_id"`
	TurnIndex int       `json:"turn_index"`
	UserID    string    `json:"user_id"`
	RequestID string    `json:"request_id"`
	Companies []string  `json:"companies,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
