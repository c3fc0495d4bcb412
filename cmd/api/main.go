package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/shinyyama/herald-backend/internal/config"
	"github.com/shinyyama/herald-backend/internal/db"
	"github.com/shinyyama/herald-backend/internal/handler"
	appmw "github.com/shinyyama/herald-backend/internal/middleware"
	"github.com/shinyyama/herald-backend/internal/queue"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/shinyyama/herald-backend/internal/server"
	"github.com/shinyyama/herald-backend/internal/storage"
	"github.com/shinyyama/herald-backend/internal/worker"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// Set with -ldflags at build time.
var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}

	bus := realtime.NewBus(logger)
	repos := repository.New(conn, bus)

	store, err := objectStore(ctx, cfg)
	if err != nil {
		return err
	}
	services := server.NewServices(repos, store, logger)

	verifier, err := appmw.NewVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	var audits handler.AuditQueue
	var w *worker.Worker
	if cfg.RedisAddr != "" {
		client := queue.NewClient(cfg.RedisAddr)
		defer client.Close()
		audits = client
		w = worker.New(cfg.RedisAddr, cfg.WalletAuditSpec, services.Wallets, logger)
	} else {
		logger.Warn("REDIS_ADDR not set; wallet audit worker disabled")
	}

	srv, err := server.New(cfg, server.Deps{
		Repos:    repos,
		Bus:      bus,
		Services: services,
		Verifier: verifier,
		Audits:   audits,
		Logger:   logger,
		SHA:      gitSHA,
		Build:    buildTime,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if w != nil {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}

// objectStore uses the configured bucket, or process memory when none is set.
func objectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.StorageBucket == "" {
		slog.Warn("STORAGE_BUCKET not set; avatars are kept in memory")
		return storage.NewMemory("local"), nil
	}
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return storage.NewGCS(client, cfg.StorageBucket), nil
}
