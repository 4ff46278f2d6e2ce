// Package chat implements the conversation turn: session resolution, message
// persistence, context building and reply generation.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/apperr"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/events"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/store"
)

// Completer produces the assistant reply for a conversation.
type Completer interface {
	GenerateReply(ctx context.Context, history []store.Message, userMessage string) (string, error)
}

// Publisher emits lifecycle events. Optional.
type Publisher interface {
	Publish(subject string, evt events.TurnEvent) error
}

// TurnState names the steps of a turn, in order. A turn that fails during
// generation stays at StateUserTurnStored.
type TurnState string

const (
	StateSessionResolved     TurnState = "session_resolved"
	StateUserTurnStored      TurnState = "user_turn_stored"
	StateContextBuilt        TurnState = "context_built"
	StateReplyGenerated      TurnState = "reply_generated"
	StateAssistantTurnStored TurnState = "assistant_turn_stored"
	StateDone                TurnState = "done"
)

type TurnResult struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
}

type History struct {
	Conversation *store.Conversation `json:"conversation"`
	Messages     []store.Message     `json:"messages"`
}

type Service struct {
	conversations *ConversationStore
	messages      *MessageStore
	llm           Completer
	events        Publisher
	logger        *slog.Logger
	historyLimit  int
	now           func() time.Time
}

// New wires the service. pub may be nil; historyLimit <= 0 uses DefaultHistoryLimit.
func New(db store.Store, llm Completer, pub Publisher, historyLimit int, logger *slog.Logger) *Service {
	return newService(db, llm, pub, historyLimit, logger, time.Now)
}

func newService(db store.Store, llm Completer, pub Publisher, historyLimit int, logger *slog.Logger, now func() time.Time) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Service{
		conversations: NewConversationStore(db, now),
		messages:      NewMessageStore(db, now),
		llm:           llm,
		events:        pub,
		logger:        logger,
		historyLimit:  historyLimit,
		now:           now,
	}
}

// ProcessMessage runs one turn. The user message is stored before the
// completion call and is kept whatever happens afterwards. An empty or
// unknown sessionID starts a new conversation instead of failing.
func (s *Service) ProcessMessage(ctx context.Context, message, sessionID string) (*TurnResult, error) {
	conv, err := s.resolveSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("session resolution failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	log := s.logger.With("session_id", conv.ID.String())
	log.Debug("turn state", "state", StateSessionResolved)

	if _, err := s.messages.Append(ctx, conv.ID, store.SenderUser, message); err != nil {
		log.Error("failed to store user message", "error", err)
		return nil, err
	}
	log.Debug("turn state", "state", StateUserTurnStored)

	history, err := s.messages.ListRecent(ctx, conv.ID, s.historyLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return nil, err
	}
	log.Debug("turn state", "state", StateContextBuilt, "history", len(history))

	reply, err := s.llm.GenerateReply(ctx, history, message)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Wrap(apperr.KindGeneration, msgGeneration, err)
		}
		log.Error("reply generation failed", "kind", apperr.KindOf(err).String(), "error", err)
		s.publish(events.SubjectTurnFailed, events.TurnEvent{
			SessionID: conv.ID.String(),
			Kind:      apperr.KindOf(err).String(),
			Timestamp: s.now().UTC(),
		})
		return nil, err
	}
	log.Debug("turn state", "state", StateReplyGenerated)

	aiMsg, err := s.messages.Append(ctx, conv.ID, store.SenderAI, reply)
	if err != nil {
		log.Error("failed to store assistant message", "error", err)
		return nil, err
	}
	log.Debug("turn state", "state", StateAssistantTurnStored)

	if err := s.conversations.Touch(ctx, conv.ID); err != nil {
		log.Error("failed to touch conversation", "error", err)
		return nil, err
	}

	s.publish(events.SubjectTurnCompleted, events.TurnEvent{
		SessionID: conv.ID.String(),
		MessageID: aiMsg.ID.String(),
		Timestamp: s.now().UTC(),
	})
	log.Info("turn completed", "state", StateDone, "message_id", aiMsg.ID.String(), "reply_len", len(reply))

	return &TurnResult{
		Reply:     reply,
		SessionID: conv.ID.String(),
		MessageID: aiMsg.ID.String(),
	}, nil
}

// GetConversationHistory returns the conversation and all of its messages.
func (s *Service) GetConversationHistory(ctx context.Context, sessionID string) (*History, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, msgNotFound, err)
	}

	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListAll(ctx, id)
	if err != nil {
		s.logger.Error("failed to list messages", "session_id", sessionID, "error", err)
		return nil, err
	}

	return &History{Conversation: conv, Messages: msgs}, nil
}

func (s *Service) resolveSession(ctx context.Context, sessionID string) (*store.Conversation, error) {
	if sessionID != "" {
		id, err := uuid.Parse(sessionID)
		if err == nil {
			conv, err := s.conversations.FindByID(ctx, id)
			if err == nil {
				return conv, nil
			}
			if !apperr.IsKind(err, apperr.KindNotFound) {
				return nil, err
			}
		}
		s.logger.Info("unknown session id, starting new conversation", "session_id", sessionID)
	}

	conv, err := s.conversations.Create(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(events.SubjectConversationCreated, events.TurnEvent{
		SessionID: conv.ID.String(),
		Timestamp: conv.CreatedAt,
	})
	return conv, nil
}

func (s *Service) publish(subject string, evt events.TurnEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, evt); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
