package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shinyyama/herald-backend/internal/config"
	"github.com/shinyyama/herald-backend/internal/db"
	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/shinyyama/herald-backend/internal/service"
	"github.com/shinyyama/herald-backend/internal/storage"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedUser struct {
	ID          string
	Username    string
	DisplayName string
	Points      int64
	Pending     int64
	Espees      string
}

var demoUsers = []seedUser{
	{ID: "demo-ada", Username: "ada", DisplayName: "Ada", Points: 2500, Pending: 40, Espees: "120"},
	{ID: "demo-grace", Username: "grace", DisplayName: "Grace", Points: 800, Espees: "35.5"},
	{ID: "demo-linus", Username: "linus", DisplayName: "Linus", Points: 150},
}

func main() {
	_ = godotenv.Load()
	if err := run(context.Background()); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	repos := repository.New(gdb, nil)
	canSeed, err := shouldSeed(ctx, repos)
	if err != nil {
		return err
	}
	if !canSeed {
		slog.Info("demo users already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	logger := slog.Default()
	profiles := service.NewProfileService(repos, storage.NewMemory("seed"), logger)
	wallets := service.NewWalletService(repos, logger)
	notifications := service.NewNotificationService(repos.Notifications, logger)
	messages := service.NewMessageService(repos)

	for _, u := range demoUsers {
		if _, err := profiles.Save(ctx, u.ID, service.ProfileInput{Username: u.Username, DisplayName: u.DisplayName}); err != nil &&
			!errors.Is(err, service.ErrUsernameTaken) {
			return fmt.Errorf("save profile %s: %w", u.Username, err)
		}
		if _, err := wallets.Earn(ctx, u.ID, u.Points, "welcome bonus"); err != nil {
			return fmt.Errorf("earn %s: %w", u.Username, err)
		}
		if u.Pending > 0 {
			if _, err := wallets.AccrueRewards(ctx, u.ID, u.Pending); err != nil {
				return fmt.Errorf("accrue %s: %w", u.Username, err)
			}
		}
		if u.Espees != "" {
			if err := grantEspees(ctx, repos, u.ID, decimal.RequireFromString(u.Espees)); err != nil {
				return fmt.Errorf("grant espees %s: %w", u.Username, err)
			}
		}
	}

	if _, err := wallets.Send(ctx, "demo-ada", "grace", 100); err != nil {
		return fmt.Errorf("demo transfer: %w", err)
	}
	notifications.Notify(ctx, &model.Notification{
		UserID:  "demo-linus",
		Type:    "system",
		Title:   "Welcome to Herald",
		Message: "Post something to earn your first points.",
	})
	for _, m := range []struct{ from, to, text string }{
		{"demo-ada", "demo-grace", "Sent you a few points for the stream!"},
		{"demo-grace", "demo-ada", "Thank you!"},
		{"demo-linus", "demo-ada", "Hi Ada, how do I convert points?"},
	} {
		if _, err := messages.Send(ctx, m.from, m.to, m.text); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}

	slog.Info("seed completed", "users", len(demoUsers))
	return nil
}

func shouldSeed(ctx context.Context, repos *repository.Repositories) (bool, error) {
	if strings.EqualFold(os.Getenv("FORCE_SEED"), "true") {
		return true, nil
	}
	_, err := repos.Profiles.FindByID(ctx, demoUsers[0].ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check demo users: %w", err)
	}
	return false, nil
}

// grantEspees credits espees with a matching ledger record so the wallet
// audits clean.
func grantEspees(ctx context.Context, repos *repository.Repositories, uid string, amount decimal.Decimal) error {
	return repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Wallets.Apply(ctx, uid, model.WalletDelta{Espees: amount}); err != nil {
			return err
		}
		return tx.Transactions.Create(ctx, &model.WalletTransaction{
			UserID:      uid,
			Type:        model.TransactionEarned,
			Amount:      amount,
			TokenType:   model.TokenTypeEspees,
			Description: "seed grant",
		})
	})
}
