package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shinyyama/herald-backend/internal/db"
	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepos(t *testing.T) (*repository.Repositories, *realtime.Bus) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	bus := realtime.NewBus(nil)
	return repository.New(gdb, bus), bus
}

func seedUser(t *testing.T, repos *repository.Repositories, id, username string, points int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repos.Profiles.Create(ctx, &model.Profile{ID: id, Username: username, DisplayName: username}))
	require.NoError(t, repos.DB().Create(&model.Wallet{UserID: id, HTTNPoints: points}).Error)
}

func mustWallet(t *testing.T, repos *repository.Repositories, id string) *model.Wallet {
	t.Helper()
	w, err := repos.Wallets.Get(context.Background(), id)
	require.NoError(t, err)
	return w
}

func ledger(t *testing.T, repos *repository.Repositories, id string) []model.WalletTransaction {
	t.Helper()
	var list []model.WalletTransaction
	require.NoError(t, repos.DB().Where("user_id = ?", id).Order("id ASC").Find(&list).Error)
	return list
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
