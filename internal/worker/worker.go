package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shinyyama/herald-backend/internal/queue"
	"github.com/shinyyama/herald-backend/internal/service"
)

// Auditor is the part of the wallet service the worker needs.
type Auditor interface {
	Audit(ctx context.Context, uid string) (*service.AuditReport, error)
	AuditAll(ctx context.Context) ([]service.AuditReport, error)
}

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	auditSpec string
	auditor   Auditor
	logger    *slog.Logger
}

// New builds the worker and its scheduler. auditSpec is a cron spec such as
// "@every 1h"; empty disables the periodic audit.
func New(redisAddr, auditSpec string, auditor Auditor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	opt := queue.RedisOpt(redisAddr)
	return &Worker{
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 2,
			Queues:      map[string]int{queue.QueueWallet: 1},
		}),
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		auditSpec: auditSpec,
		auditor:   auditor,
		logger:    logger.With("component", "worker"),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeWalletAudit, w.HandleWalletAudit)

	if w.auditSpec != "" {
		task, err := queue.NewWalletAuditTask(queue.WalletAuditPayload{})
		if err != nil {
			return err
		}
		if _, err := w.scheduler.Register(w.auditSpec, task); err != nil {
			return fmt.Errorf("register wallet audit: %w", err)
		}
	}

	w.logger.Info("starting worker", "queues", []string{queue.QueueWallet}, "audit_spec", w.auditSpec)
	if err := w.server.Start(mux); err != nil {
		return err
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return err
	}

	<-ctx.Done()

	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("worker stopped")
	return nil
}

// HandleWalletAudit compares stored balances to ledger sums and logs drift.
// Drift is reported, never repaired.
func (w *Worker) HandleWalletAudit(ctx context.Context, t *asynq.Task) error {
	p, err := queue.ParseWalletAuditPayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if p.UserID != "" {
		report, err := w.auditor.Audit(ctx, p.UserID)
		if err != nil {
			return err
		}
		w.logReport(*report)
		return nil
	}
	reports, err := w.auditor.AuditAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range reports {
		w.logReport(r)
	}
	w.logger.Info("wallet audit finished", "drifting", len(reports))
	return nil
}

func (w *Worker) logReport(r service.AuditReport) {
	if r.Balanced() {
		w.logger.Info("wallet balanced", "uid", r.UserID)
		return
	}
	for _, d := range r.Drifts {
		w.logger.Warn("wallet drift",
			"uid", r.UserID,
			"token_type", d.TokenType,
			"stored", d.Stored.String(),
			"ledger", d.Ledger.String())
	}
}
