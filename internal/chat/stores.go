package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/apperr"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/store"
)

// DefaultHistoryLimit is the number of recent messages fed to the completion step.
const DefaultHistoryLimit = 10

const (
	msgStorage  = "An error occurred processing your message"
	msgNotFound = "Conversation not found"

	msgGeneration = "Sorry, I encountered an error processing your request. Please try again."
)

// ConversationStore is the domain view of conversation rows.
type ConversationStore struct {
	db  store.Store
	now func() time.Time
}

func NewConversationStore(db store.Store, now func() time.Time) *ConversationStore {
	if now == nil {
		now = time.Now
	}
	return &ConversationStore{db: db, now: now}
}

// Create inserts a conversation with a fresh id and created_at = updated_at = now.
func (c *ConversationStore) Create(ctx context.Context) (*store.Conversation, error) {
	conv, err := c.db.CreateConversation(ctx, uuid.New(), c.now().UTC())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, msgStorage, err)
	}
	return conv, nil
}

// FindByID returns a KindNotFound error when no conversation has the id.
func (c *ConversationStore) FindByID(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	conv, err := c.db.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, msgNotFound, err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, msgStorage, err)
	}
	return conv, nil
}

// Touch sets updated_at to now. A missing row is a storage error here since
// callers only touch conversations they just resolved.
func (c *ConversationStore) Touch(ctx context.Context, id uuid.UUID) error {
	if err := c.db.TouchConversation(ctx, id, c.now().UTC()); err != nil {
		return apperr.Wrap(apperr.KindStorage, msgStorage, err)
	}
	return nil
}

// MessageStore is the domain view of message rows.
type MessageStore struct {
	db  store.Store
	now func() time.Time
}

func NewMessageStore(db store.Store, now func() time.Time) *MessageStore {
	if now == nil {
		now = time.Now
	}
	return &MessageStore{db: db, now: now}
}

// Append stores a message. The foreign key is the only check that the
// conversation exists.
func (m *MessageStore) Append(ctx context.Context, conversationID uuid.UUID, sender store.Sender, text string) (*store.Message, error) {
	msg, err := m.db.InsertMessage(ctx, store.NewMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
		CreatedAt:      m.now().UTC(),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, msgStorage, err)
	}
	return msg, nil
}

// ListAll returns every message of the conversation in chronological order.
func (m *MessageStore) ListAll(ctx context.Context, conversationID uuid.UUID) ([]store.Message, error) {
	msgs, err := m.db.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, msgStorage, err)
	}
	return msgs, nil
}

// ListRecent returns the newest limit messages in chronological order.
// limit <= 0 means DefaultHistoryLimit.
func (m *MessageStore) ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	msgs, err := m.db.ListRecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, msgStorage, err)
	}
	return msgs, nil
}
