package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shinyyama/herald-backend/internal/realtime"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageService_SendAndMarkRead(t *testing.T) {
	repos, bus := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 0)
	seedUser(t, repos, "b", "bob", 0)
	svc := NewMessageService(repos)
	ctx := context.Background()
	inbox := bus.Subscribe(repository.TableMessages, realtime.Eq("receiver_id", "b"), realtime.Insert)

	_, err := svc.Send(ctx, "a", "b", "hi bob")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "a", "b", "are you there?")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "b", "a", "yes")
	require.NoError(t, err)
	assert.Len(t, inbox.C(), 2)

	_, err = svc.Send(ctx, "a", "ghost", "hello")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.Send(ctx, "a", "b", "  ")
	assert.ErrorIs(t, err, ErrEmptyContent)
	_, err = svc.Send(ctx, "a", "b", strings.Repeat("x", maxMessageLength+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	thread, err := svc.ListWith(ctx, "b", "a")
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, "hi bob", thread[0].Content)

	// the sender marking read must not touch messages they sent
	require.NoError(t, svc.MarkReadFrom(ctx, "a", "b"))
	thread, err = svc.ListWith(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, thread[0].Read)
	assert.True(t, thread[2].Read)

	require.NoError(t, svc.MarkReadFrom(ctx, "b", "a"))
	thread, err = svc.ListWith(ctx, "b", "a")
	require.NoError(t, err)
	for _, m := range thread {
		assert.True(t, m.Read)
	}
}
