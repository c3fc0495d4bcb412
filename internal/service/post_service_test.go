package service

import (
	"context"
	"testing"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreateEarnsReward(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 0)
	svc := NewPostService(repos.Posts, NewWalletService(repos, nil), nil)
	ctx := context.Background()

	p, w, err := svc.Create(ctx, "a", "  hello herald ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello herald", p.Content)
	require.NotNil(t, w)
	assert.Equal(t, PostReward, w.HTTNPoints)

	txs := ledger(t, repos, "a")
	require.Len(t, txs, 1)
	assert.Equal(t, model.TransactionEarned, txs[0].Type)

	_, _, err = svc.Create(ctx, "a", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyContent)

	w, err = svc.CompleteTask(ctx, "a", "daily-login")
	require.NoError(t, err)
	assert.Equal(t, PostReward+TaskReward, w.HTTNPoints)
}

func TestPostService_TaskRewardIsPaidOnce(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 0)
	seedUser(t, repos, "b", "bob", 0)
	svc := NewPostService(repos.Posts, NewWalletService(repos, nil), nil)
	ctx := context.Background()

	w, err := svc.CompleteTask(ctx, "a", "watch-stream")
	require.NoError(t, err)
	assert.Equal(t, TaskReward, w.HTTNPoints)

	_, err = svc.CompleteTask(ctx, "a", " watch-stream ")
	assert.ErrorIs(t, err, ErrTaskCompleted)
	assert.Equal(t, TaskReward, mustWallet(t, repos, "a").HTTNPoints)
	require.Len(t, ledger(t, repos, "a"), 1)

	w, err = svc.CompleteTask(ctx, "a", "first-post")
	require.NoError(t, err)
	assert.Equal(t, 2*TaskReward, w.HTTNPoints)

	w, err = svc.CompleteTask(ctx, "b", "watch-stream")
	require.NoError(t, err)
	assert.Equal(t, TaskReward, w.HTTNPoints)

	_, err = svc.CompleteTask(ctx, "a", "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}
