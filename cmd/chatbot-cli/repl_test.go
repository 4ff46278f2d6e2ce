package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/chat"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/client"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/events"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/store"
)

type fakeAPI struct {
	sent       []string
	sessions   []string
	historyFor string
	sendErr    error
	nextID     string
}

func (f *fakeAPI) SendMessage(_ context.Context, message, sessionID string) (*chat.TurnResult, error) {
	f.sent = append(f.sent, message)
	f.sessions = append(f.sessions, sessionID)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &chat.TurnResult{Reply: "reply to " + message, SessionID: f.nextID, MessageID: uuid.NewString()}, nil
}

func (f *fakeAPI) History(_ context.Context, sessionID string) (*chat.History, error) {
	f.historyFor = sessionID
	id := uuid.MustParse(sessionID)
	return &chat.History{
		Conversation: &store.Conversation{ID: id},
		Messages: []store.Message{
			{Sender: store.SenderUser, Text: "Hi"},
			{Sender: store.SenderAI, Text: "Hello!"},
		},
	}, nil
}

func newTestREPL(api chatAPI) (*repl, *bytes.Buffer) {
	var out bytes.Buffer
	return &repl{api: api, out: &out, render: &renderer{}}, &out
}

func TestREPL_KeepsSessionAcrossTurns(t *testing.T) {
	sid := uuid.NewString()
	api := &fakeAPI{nextID: sid}
	r, out := newTestREPL(api)
	ctx := context.Background()

	assert.True(t, r.handle(ctx, "Hi"))
	assert.True(t, r.handle(ctx, "Do you ship to Canada?"))

	assert.Equal(t, []string{"", sid}, api.sessions)
	assert.Equal(t, sid, r.sessionID)
	assert.Contains(t, out.String(), "reply to Do you ship to Canada?")
}

func TestREPL_Commands(t *testing.T) {
	sid := uuid.NewString()
	api := &fakeAPI{nextID: sid}
	r, out := newTestREPL(api)
	ctx := context.Background()

	assert.True(t, r.handle(ctx, "/history"))
	assert.Contains(t, out.String(), "no conversation yet")

	r.handle(ctx, "Hi")
	assert.True(t, r.handle(ctx, "/history"))
	assert.Equal(t, sid, api.historyFor)
	assert.Contains(t, out.String(), "Hello!")

	assert.True(t, r.handle(ctx, "/new"))
	assert.Empty(t, r.sessionID)

	assert.True(t, r.handle(ctx, "/bogus"))
	assert.Contains(t, out.String(), "unknown command /bogus")

	assert.False(t, r.handle(ctx, "/quit"))
	assert.Len(t, api.sent, 1)
}

func TestREPL_ShowsServerError(t *testing.T) {
	api := &fakeAPI{sendErr: &client.APIError{Status: 503, Message: "AI service is offline"}}
	r, out := newTestREPL(api)

	assert.True(t, r.handle(context.Background(), "Hi"))
	assert.Contains(t, out.String(), "AI service is offline")
	assert.Empty(t, r.sessionID)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["history"])
	assert.True(t, names["health"])
	assert.True(t, names["events"])
	assert.NotNil(t, root.PersistentFlags().Lookup("server"))
	assert.NotNil(t, root.Flags().Lookup("session"))
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	completed := formatEvent(events.SubjectTurnCompleted, events.TurnEvent{SessionID: "s1", MessageID: "m1", Timestamp: ts})
	assert.Contains(t, completed, "chat.turn.completed")
	assert.Contains(t, completed, "session=s1")
	assert.Contains(t, completed, "message=m1")

	failed := formatEvent(events.SubjectTurnFailed, events.TurnEvent{SessionID: "s2", Kind: "timeout", Timestamp: ts})
	assert.Contains(t, failed, "kind=timeout")
	assert.NotContains(t, failed, "message=")
}

func TestEventsCmd_RequiresNATS(t *testing.T) {
	t.Setenv("NATS_URL", "")
	cmd := newEventsCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	assert.ErrorContains(t, err, "NATS_URL")
}
