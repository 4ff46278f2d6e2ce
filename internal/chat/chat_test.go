package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/events"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewSQLite(ctx, filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return db
}

// fakeClock advances one second on every reading.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fakeCompleter struct {
	reply      string
	err        error
	gotHistory []store.Message
	gotMessage string
	calls      int
}

func (f *fakeCompleter) GenerateReply(_ context.Context, history []store.Message, userMessage string) (string, error) {
	f.calls++
	f.gotHistory = history
	f.gotMessage = userMessage
	return f.reply, f.err
}

type published struct {
	subject string
	evt     events.TurnEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) Publish(subject string, evt events.TurnEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{subject: subject, evt: evt})
	return f.err
}

func (f *fakePublisher) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.subject)
	}
	return out
}

var errBoom = errors.New("boom")
