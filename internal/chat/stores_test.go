package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/apperr"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/store"
)

func TestConversationStore_CreateFindTouch(t *testing.T) {
	db := newTestDB(t)
	clock := newFakeClock()
	convs := NewConversationStore(db, clock.Now)
	ctx := context.Background()

	conv, err := convs.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, conv.ID)
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)
	assert.JSONEq(t, `{}`, string(conv.Metadata))

	found, err := convs.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	require.NoError(t, convs.Touch(ctx, conv.ID))
	touched, err := convs.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, touched.UpdatedAt.After(conv.UpdatedAt))
	assert.True(t, touched.CreatedAt.Equal(conv.CreatedAt))
}

func TestConversationStore_Missing(t *testing.T) {
	convs := NewConversationStore(newTestDB(t), nil)
	ctx := context.Background()

	_, err := convs.FindByID(ctx, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Equal(t, "Conversation not found", apperr.MessageOf(err, ""))

	err = convs.Touch(ctx, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
}

func TestMessageStore_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	clock := newFakeClock()
	convs := NewConversationStore(db, clock.Now)
	msgs := NewMessageStore(db, clock.Now)
	ctx := context.Background()

	conv, err := convs.Create(ctx)
	require.NoError(t, err)

	empty, err := msgs.ListAll(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 0; i < 13; i++ {
		sender := store.SenderUser
		if i%2 == 1 {
			sender = store.SenderAI
		}
		m, err := msgs.Append(ctx, conv.ID, sender, "text")
		require.NoError(t, err)
		assert.Equal(t, conv.ID, m.ConversationID)
		assert.Equal(t, sender, m.Sender)
	}

	all, err := msgs.ListAll(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, all, 13)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.Before(all[i-1].CreatedAt), "messages must be chronological")
	}

	recent, err := msgs.ListRecent(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, all[3:], recent, "limit <= 0 uses the default window")

	few, err := msgs.ListRecent(ctx, conv.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, all[9:], few)

	many, err := msgs.ListRecent(ctx, conv.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, all, many)
}

func TestMessageStore_AppendUnknownConversation(t *testing.T) {
	msgs := NewMessageStore(newTestDB(t), nil)

	_, err := msgs.Append(context.Background(), uuid.New(), store.SenderUser, "orphan")

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
	assert.ErrorIs(t, err, store.ErrConstraint)
}
