package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a conversation row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConstraint is returned when an insert violates a foreign key or check constraint.
	ErrConstraint = errors.New("constraint violation")
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

type Conversation struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Metadata  json.RawMessage `json:"metadata"`
}

type Message struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Sender         Sender          `json:"sender"`
	Text           string          `json:"text"`
	CreatedAt      time.Time       `json:"created_at"`
	Metadata       json.RawMessage `json:"metadata"`
}

// NewMessage is the insert payload for a message row.
type NewMessage struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Sender         Sender
	Text           string
	CreatedAt      time.Time
}

// Store is the row-level persistence adapter. Messages come back in
// chronological order: ascending created_at, ties broken by insertion order.
type Store interface {
	CreateConversation(ctx context.Context, id uuid.UUID, now time.Time) (*Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)
	TouchConversation(ctx context.Context, id uuid.UUID, now time.Time) error

	InsertMessage(ctx context.Context, m NewMessage) (*Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// Open connects to the database named by databaseURL. postgres:// and
// postgresql:// URLs use the pgx pool; sqlite: URLs open an embedded file.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgres(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return NewSQLite(ctx, sqlitePath(databaseURL))
	default:
		return nil, fmt.Errorf("unsupported database url %q", redact(databaseURL))
	}
}

func sqlitePath(databaseURL string) string {
	if p, ok := strings.CutPrefix(databaseURL, "sqlite://"); ok {
		return p
	}
	return strings.TrimPrefix(databaseURL, "sqlite:")
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(databaseURL string) string {
	if i := strings.Index(databaseURL, ":"); i >= 0 {
		return databaseURL[:i] + ":..."
	}
	return "..."
}

func metadataOrEmpty(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}
