package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/queue"
	"github.com/shinyyama/herald-backend/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditor struct {
	one     string
	all     int
	reports []service.AuditReport
	err     error
}

func (f *fakeAuditor) Audit(_ context.Context, uid string) (*service.AuditReport, error) {
	f.one = uid
	if f.err != nil {
		return nil, f.err
	}
	return &service.AuditReport{UserID: uid}, nil
}

func (f *fakeAuditor) AuditAll(context.Context) ([]service.AuditReport, error) {
	f.all++
	return f.reports, f.err
}

func newTestWorker(a Auditor, buf *bytes.Buffer) *Worker {
	return &Worker{auditor: a, logger: slog.New(slog.NewTextHandler(buf, nil))}
}

func TestHandleWalletAudit_SingleUser(t *testing.T) {
	var buf bytes.Buffer
	a := &fakeAuditor{}
	w := newTestWorker(a, &buf)

	task, err := queue.NewWalletAuditTask(queue.WalletAuditPayload{UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, w.HandleWalletAudit(context.Background(), task))
	assert.Equal(t, "u1", a.one)
	assert.Zero(t, a.all)
	assert.Contains(t, buf.String(), "wallet balanced")
}

func TestHandleWalletAudit_AllLogsDrift(t *testing.T) {
	var buf bytes.Buffer
	a := &fakeAuditor{reports: []service.AuditReport{{
		UserID: "u2",
		Drifts: []service.Drift{{TokenType: model.TokenTypePoints, Stored: decimal.NewFromInt(10), Ledger: decimal.NewFromInt(7)}},
	}}}
	w := newTestWorker(a, &buf)

	require.NoError(t, w.HandleWalletAudit(context.Background(), asynq.NewTask(queue.TypeWalletAudit, nil)))
	assert.Equal(t, 1, a.all)
	assert.Contains(t, buf.String(), "wallet drift")
	assert.Contains(t, buf.String(), "uid=u2")
	assert.Contains(t, buf.String(), "drifting=1")
}

func TestHandleWalletAudit_Errors(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWorker(&fakeAuditor{err: errors.New("db down")}, &buf)

	err := w.HandleWalletAudit(context.Background(), asynq.NewTask(queue.TypeWalletAudit, nil))
	assert.EqualError(t, err, "db down")

	err = w.HandleWalletAudit(context.Background(), asynq.NewTask(queue.TypeWalletAudit, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
