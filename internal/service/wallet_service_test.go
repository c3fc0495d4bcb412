package service

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletService_ConvertScenario(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 500)
	svc := NewWalletService(repos, nil)

	w, err := svc.Convert(context.Background(), "a", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.HTTNPoints)
	assert.True(t, w.HTTNTokens.Equal(dec("0.5")), "tokens = %s", w.HTTNTokens)
	assert.Equal(t, int64(1), w.Version)

	txs := ledger(t, repos, "a")
	require.Len(t, txs, 2)
	assert.Equal(t, model.TransactionConvertOut, txs[0].Type)
	assert.Equal(t, model.TokenTypePoints, txs[0].TokenType)
	assert.True(t, txs[0].Amount.Equal(dec("-500")))
	assert.Equal(t, model.TransactionConvertIn, txs[1].Type)
	assert.Equal(t, model.TokenTypeTokens, txs[1].TokenType)
	assert.True(t, txs[1].Amount.Equal(dec("0.5")))
}

func TestWalletService_ConvertArithmetic(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 5000)
	svc := NewWalletService(repos, nil)
	ctx := context.Background()

	w, err := svc.Convert(ctx, "a", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), w.HTTNPoints)
	assert.True(t, w.HTTNTokens.Equal(decimal.NewFromInt(1)))

	w, err = svc.Convert(ctx, "a", 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.HTTNPoints)
	assert.True(t, w.HTTNTokens.Equal(decimal.NewFromInt(4)))
}

func TestWalletService_ConvertRejected(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 300)
	svc := NewWalletService(repos, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		points int64
		want   error
	}{
		{"below minimum", 99, ErrBelowMinimum},
		{"zero", 0, ErrInvalidAmount},
		{"negative", -100, ErrInvalidAmount},
		{"over balance", 301, ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Convert(ctx, "a", tt.points)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	w := mustWallet(t, repos, "a")
	assert.Equal(t, int64(300), w.HTTNPoints)
	assert.Equal(t, int64(0), w.Version)
	assert.Empty(t, ledger(t, repos, "a"))
}

func TestWalletService_SendHappyPath(t *testing.T) {
	repos, bus := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 100)
	seedUser(t, repos, "b", "bob", 20)
	svc := NewWalletService(repos, nil)
	inbox := bus.Subscribe(repository.TableNotifications, realtime.Eq("user_id", "b"), realtime.Insert)

	w, err := svc.Send(context.Background(), "a", "@Bob", 40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), w.HTTNPoints)
	assert.Equal(t, int64(60), mustWallet(t, repos, "a").HTTNPoints)
	assert.Equal(t, int64(60), mustWallet(t, repos, "b").HTTNPoints)

	sent := ledger(t, repos, "a")
	require.Len(t, sent, 1)
	assert.Equal(t, model.TransactionSend, sent[0].Type)
	assert.True(t, sent[0].Amount.Equal(decimal.NewFromInt(-40)))
	recv := ledger(t, repos, "b")
	require.Len(t, recv, 1)
	assert.Equal(t, model.TransactionReceive, recv[0].Type)

	var notes []model.Notification
	require.NoError(t, repos.DB().Where("user_id = ?", "b").Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationTypeTransfer, notes[0].Type)
	assert.False(t, notes[0].Read)

	select {
	case ev := <-inbox.C():
		assert.Equal(t, notes[0].ID, ev.Record.(model.Notification).ID)
	default:
		t.Fatal("notification insert was not published after commit")
	}
}

func TestWalletService_SendRejectedWithoutWrites(t *testing.T) {
	repos, bus := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 100)
	seedUser(t, repos, "b", "bob", 0)
	require.NoError(t, repos.Profiles.Create(context.Background(), &model.Profile{ID: "c", Username: "carol"}))
	svc := NewWalletService(repos, nil)
	events := bus.Subscribe("wallets", realtime.Filter{})

	tests := []struct {
		name      string
		recipient string
		amount    int64
		want      error
		msg       string
	}{
		{"unknown user", "ghost", 10, ErrUserNotFound, "user not found"},
		{"self", "alice", 10, ErrSelfTransfer, ""},
		{"over balance", "bob", 101, ErrInsufficientBalance, ""},
		{"no recipient wallet", "carol", 10, ErrRecipientWalletNotFound, "recipient wallet not found"},
		{"zero", "bob", 0, ErrInvalidAmount, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), "a", tt.recipient, tt.amount)
			require.ErrorIs(t, err, tt.want)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
		})
	}

	a := mustWallet(t, repos, "a")
	assert.Equal(t, int64(100), a.HTTNPoints)
	assert.Equal(t, int64(0), a.Version)
	assert.Empty(t, ledger(t, repos, "a"))
	assert.Len(t, events.C(), 0)
}

func TestWalletService_ConcurrentSendsKeepTotals(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 1000)
	seedUser(t, repos, "b", "bob", 1000)
	svc := NewWalletService(repos, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Send(ctx, "a", "bob", 7)
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Send(ctx, "b", "alice", 3)
		}()
	}
	wg.Wait()

	a := mustWallet(t, repos, "a")
	b := mustWallet(t, repos, "b")
	assert.Equal(t, int64(1000-20*7+20*3), a.HTTNPoints)
	assert.Equal(t, int64(1000+20*7-20*3), b.HTTNPoints)
	assert.Equal(t, int64(40), a.Version)
}

func TestWalletService_PurchaseWritesRecordPerCurrency(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 500)
	require.NoError(t, repos.DB().Model(&model.Wallet{}).Where("user_id = ?", "a").Update("espees", dec("20")).Error)
	svc := NewWalletService(repos, nil)

	order, err := svc.Purchase(context.Background(), "a", []model.OrderItem{
		{ProductID: "tee", Name: "T-shirt", Quantity: 2, PricePoints: 100},
		{ProductID: "mug", Name: "Mug", Quantity: 1, PriceEspees: dec("7.5")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(200), order.TotalPoints)
	assert.True(t, order.TotalEspees.Equal(dec("7.5")))
	assert.Equal(t, model.OrderStatusPaid, order.Status)

	w := mustWallet(t, repos, "a")
	assert.Equal(t, int64(300), w.HTTNPoints)
	assert.True(t, w.Espees.Equal(dec("12.5")))

	txs := ledger(t, repos, "a")
	require.Len(t, txs, 2)
	assert.Equal(t, model.TokenTypePoints, txs[0].TokenType)
	assert.Equal(t, model.TokenTypeEspees, txs[1].TokenType)
	assert.True(t, txs[1].Amount.Equal(dec("-7.5")))

	stored, err := repos.Orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "tee", stored.Items[0].ProductID)
}

func TestWalletService_PurchaseRejected(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 50)
	svc := NewWalletService(repos, nil)
	ctx := context.Background()

	_, err := svc.Purchase(ctx, "a", nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
	_, err = svc.Purchase(ctx, "a", []model.OrderItem{{ProductID: "x", Quantity: 0, PricePoints: 1}})
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, err = svc.Purchase(ctx, "a", []model.OrderItem{{ProductID: "x", Quantity: 1, PricePoints: 51}})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// totals that would wrap int64 are rejected, not turned into a credit
	_, err = svc.Purchase(ctx, "a", []model.OrderItem{{ProductID: "x", Quantity: 3, PricePoints: 1 << 62}})
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, err = svc.Purchase(ctx, "a", []model.OrderItem{
		{ProductID: "x", Quantity: 1, PricePoints: math.MaxInt64 - 10},
		{ProductID: "y", Quantity: 1, PricePoints: 11},
	})
	assert.ErrorIs(t, err, ErrInvalidItem)
	assert.EqualValues(t, 50, mustWallet(t, repos, "a").HTTNPoints)
	assert.Empty(t, ledger(t, repos, "a"))

	var orders int64
	require.NoError(t, repos.DB().Model(&model.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestWalletService_DonateNotifiesHost(t *testing.T) {
	repos, _ := newTestRepos(t)
	seedUser(t, repos, "a", "alice", 100)
	seedUser(t, repos, "h", "host", 0)
	svc := NewWalletService(repos, nil)

	d, err := svc.Donate(context.Background(), "a", StreamDonationInput{StreamID: "s1", HostID: "h", Amount: 30, Message: "gg"})
	require.NoError(t, err)
	assert.NotZero(t, d.ID)
	assert.Equal(t, int64(70), mustWallet(t, repos, "a").HTTNPoints)
	assert.Equal(t, int64(30), mustWallet(t, repos, "h").HTTNPoints)

	var notes []model.Notification
	require.NoError(t, repos.DB().Where("user_id = ?", "h").Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationTypeTip, notes[0].Type)
	assert.Contains(t, notes[0].Message, "gg")

	_, err = svc.Donate(context.Background(), "a", StreamDonationInput{StreamID: "s1", HostID: "a", Amount: 1})
	assert.ErrorIs(t, err, ErrSelfTransfer)
}

func TestWalletService_EarnClaimAndAudit(t *testing.T) {
	repos, _ := newTestRepos(t)
	svc := NewWalletService(repos, nil)
	ctx := context.Background()

	w, err := svc.Earn(ctx, "new", 40, "post")
	require.NoError(t, err)
	assert.Equal(t, int64(40), w.HTTNPoints)

	_, err = svc.AccrueRewards(ctx, "new", 15)
	require.NoError(t, err)
	w, err = svc.ClaimRewards(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, int64(55), w.HTTNPoints)
	assert.Zero(t, w.PendingRewards)

	_, err = svc.Convert(ctx, "new", 50)
	assert.ErrorIs(t, err, ErrBelowMinimum)
	_, err = svc.DonateToCause(ctx, "new", "trees", 5)
	require.NoError(t, err)

	report, err := svc.Audit(ctx, "new")
	require.NoError(t, err)
	assert.True(t, report.Balanced(), "drifts: %+v", report.Drifts)

	// a direct write bypassing the ledger shows up as drift
	require.NoError(t, repos.DB().Model(&model.Wallet{}).Where("user_id = ?", "new").Update("httn_points", 999).Error)
	reports, err := svc.AuditAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "new", reports[0].UserID)
	assert.Equal(t, model.TokenTypePoints, reports[0].Drifts[0].TokenType)
}
