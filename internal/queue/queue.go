package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	QueueWallet     = "wallet"
	TypeWalletAudit = "wallet:audit"
)

// WalletAuditPayload selects one wallet; an empty UserID audits all of them.
type WalletAuditPayload struct {
	UserID string `json:"user_id,omitempty"`
}

func RedisOpt(addr string) asynq.RedisClientOpt {
	if addr == "" {
		addr = "localhost:6379"
	}
	return asynq.RedisClientOpt{Addr: addr}
}

func NewWalletAuditTask(p WalletAuditPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeWalletAudit, b, asynq.Queue(QueueWallet), asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

func ParseWalletAuditPayload(t *asynq.Task) (WalletAuditPayload, error) {
	var p WalletAuditPayload
	if len(t.Payload()) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return p, nil
}

type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(redisAddr))}
}

// EnqueueWalletAudit schedules an audit and returns the task id.
func (c *Client) EnqueueWalletAudit(ctx context.Context, uid string) (string, error) {
	task, err := NewWalletAuditTask(WalletAuditPayload{UserID: uid})
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Retention(24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info.ID, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
