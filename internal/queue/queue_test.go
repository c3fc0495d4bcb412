package queue

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletAuditTaskRoundTrip(t *testing.T) {
	task, err := NewWalletAuditTask(WalletAuditPayload{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, TypeWalletAudit, task.Type())

	p, err := ParseWalletAuditPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)

	all, err := ParseWalletAuditPayload(asynq.NewTask(TypeWalletAudit, nil))
	require.NoError(t, err)
	assert.Empty(t, all.UserID)

	_, err = ParseWalletAuditPayload(asynq.NewTask(TypeWalletAudit, []byte("{")))
	assert.Error(t, err)
}

func TestRedisOptDefault(t *testing.T) {
	assert.Equal(t, "localhost:6379", RedisOpt("").Addr)
	assert.Equal(t, "redis:6379", RedisOpt("redis:6379").Addr)
}
