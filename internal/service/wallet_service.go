package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	// PointsPerToken is the fixed conversion rate from points to tokens.
	PointsPerToken = 1000
	// MinConversion is the smallest amount of points accepted by Convert.
	MinConversion = 100
)

type WalletService interface {
	Get(ctx context.Context, uid string) (*model.Wallet, error)
	Earn(ctx context.Context, uid string, amount int64, source string) (*model.Wallet, error)
	CompleteTask(ctx context.Context, uid, taskID string, reward int64) (*model.Wallet, error)
	Convert(ctx context.Context, uid string, points int64) (*model.Wallet, error)
	Send(ctx context.Context, uid, recipientUsername string, amount int64) (*model.Wallet, error)
	Purchase(ctx context.Context, uid string, items []model.OrderItem) (*model.Order, error)
	Donate(ctx context.Context, uid string, in StreamDonationInput) (*model.StreamDonation, error)
	DonateToCause(ctx context.Context, uid, causeID string, amount int64) (*model.CauseDonation, error)
	AccrueRewards(ctx context.Context, uid string, amount int64) (*model.Wallet, error)
	ClaimRewards(ctx context.Context, uid string) (*model.Wallet, error)
	ListTransactions(ctx context.Context, uid string, limit int) ([]model.WalletTransaction, error)
	Audit(ctx context.Context, uid string) (*AuditReport, error)
	AuditAll(ctx context.Context) ([]AuditReport, error)
}

type StreamDonationInput struct {
	StreamID string
	HostID   string
	Amount   int64
	Message  string
}

// Drift is one currency whose stored balance differs from its ledger sum.
type Drift struct {
	TokenType model.TokenType `json:"tokenType"`
	Stored    decimal.Decimal `json:"stored"`
	Ledger    decimal.Decimal `json:"ledger"`
}

type AuditReport struct {
	UserID string  `json:"userId"`
	Drifts []Drift `json:"drifts"`
}

func (r AuditReport) Balanced() bool {
	return len(r.Drifts) == 0
}

type walletService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

func NewWalletService(repos *repository.Repositories, logger *slog.Logger) WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &walletService{repos: repos, logger: logger.With("component", "wallet")}
}

// inTx runs fn in one database transaction, retrying on deadlocks and
// serialization failures.
func (s *walletService) inTx(ctx context.Context, op string, fn func(tx *repository.Repositories) error) error {
	var last error
	err := retry.Do(
		func() error {
			last = s.repos.Transaction(ctx, fn)
			return last
		},
		retry.Attempts(4),
		retry.Delay(25*time.Millisecond),
		retry.MaxDelay(500*time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("retrying wallet transaction", "op", op, "attempt", n+1, "error", err)
		}),
		retry.RetryIf(isRetryable),
	)
	if err == nil {
		return nil
	}
	if last != nil {
		return last
	}
	return err
}

func isRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1213 deadlock, 1205 lock wait timeout
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}

func record(uid string, typ model.TransactionType, amount decimal.Decimal, token model.TokenType, desc string, ref *string) *model.WalletTransaction {
	return &model.WalletTransaction{
		UserID:      uid,
		Type:        typ,
		Amount:      amount,
		TokenType:   token,
		Description: desc,
		ReferenceID: ref,
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *walletService) Get(ctx context.Context, uid string) (*model.Wallet, error) {
	w, err := s.repos.Wallets.Get(ctx, uid)
	if err != nil {
		return nil, notFound(err, ErrWalletNotFound)
	}
	return w, nil
}

func (s *walletService) Earn(ctx context.Context, uid string, amount int64, source string) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *model.Wallet
	err := s.inTx(ctx, "earn", func(tx *repository.Repositories) error {
		w, err := earn(ctx, tx, uid, amount, source, nil)
		out = w
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("points earned", "uid", uid, "amount", amount, "source", source)
	return out, nil
}

// CompleteTask records taskID as done for uid and credits reward in the same
// transaction. A second completion returns ErrTaskCompleted and credits nothing.
func (s *walletService) CompleteTask(ctx context.Context, uid, taskID string, reward int64) (*model.Wallet, error) {
	if reward <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *model.Wallet
	err := s.inTx(ctx, "task", func(tx *repository.Repositories) error {
		if err := tx.Tasks.Complete(ctx, uid, taskID); err != nil {
			if errors.Is(err, repository.ErrAlreadyCompleted) {
				return ErrTaskCompleted
			}
			return err
		}
		w, err := earn(ctx, tx, uid, reward, "task "+taskID, strPtr(taskID))
		out = w
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task completed", "uid", uid, "task_id", taskID, "reward", reward)
	return out, nil
}

func earn(ctx context.Context, tx *repository.Repositories, uid string, amount int64, source string, ref *string) (*model.Wallet, error) {
	if _, err := tx.Wallets.Ensure(ctx, uid); err != nil {
		return nil, err
	}
	w, err := tx.Wallets.Apply(ctx, uid, model.WalletDelta{Points: amount})
	if err != nil {
		return nil, err
	}
	desc := "Earned points"
	if source != "" {
		desc = "Earned points: " + source
	}
	if err := tx.Transactions.Create(ctx, record(uid, model.TransactionEarned, decimal.NewFromInt(amount), model.TokenTypePoints, desc, ref)); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *walletService) Convert(ctx context.Context, uid string, points int64) (*model.Wallet, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	if points < MinConversion {
		return nil, ErrBelowMinimum
	}
	tokens := decimal.NewFromInt(points).Div(decimal.NewFromInt(PointsPerToken))
	var out *model.Wallet
	err := s.inTx(ctx, "convert", func(tx *repository.Repositories) error {
		cur, err := tx.Wallets.Get(ctx, uid)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		if cur.HTTNPoints < points {
			return ErrInsufficientBalance
		}
		w, err := tx.Wallets.Apply(ctx, uid, model.WalletDelta{Points: -points, Tokens: tokens})
		if err != nil {
			return insufficient(err)
		}
		desc := fmt.Sprintf("Converted %d points to %s tokens", points, tokens.String())
		if err := tx.Transactions.Create(ctx, record(uid, model.TransactionConvertOut, decimal.NewFromInt(-points), model.TokenTypePoints, desc, nil)); err != nil {
			return err
		}
		if err := tx.Transactions.Create(ctx, record(uid, model.TransactionConvertIn, tokens, model.TokenTypeTokens, desc, nil)); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("points converted", "uid", uid, "points", points, "tokens", tokens.String())
	return out, nil
}

// Send transfers points to the user named recipientUsername. Every check runs
// before the first write; debit, credit, both ledger entries and the
// recipient's notification commit together.
func (s *walletService) Send(ctx context.Context, uid, recipientUsername string, amount int64) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	username := strings.TrimPrefix(strings.TrimSpace(recipientUsername), "@")
	if username == "" {
		return nil, ErrUserNotFound
	}
	var out *model.Wallet
	err := s.inTx(ctx, "send", func(tx *repository.Repositories) error {
		recipient, err := tx.Profiles.FindByUsername(ctx, username)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if recipient.ID == uid {
			return ErrSelfTransfer
		}
		sender, err := tx.Wallets.Get(ctx, uid)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		if sender.HTTNPoints < amount {
			return ErrInsufficientBalance
		}
		if _, err := tx.Wallets.Get(ctx, recipient.ID); err != nil {
			return notFound(err, ErrRecipientWalletNotFound)
		}

		debit := model.WalletDelta{Points: -amount}
		credit := model.WalletDelta{Points: amount}
		w, err := applyOrdered(ctx, tx, uid, debit, recipient.ID, credit)
		if err != nil {
			return err
		}

		senderName := uid
		if p, err := tx.Profiles.FindByID(ctx, uid); err == nil {
			senderName = p.DisplayName
			if senderName == "" {
				senderName = p.Username
			}
		}
		if err := tx.Transactions.Create(ctx, record(uid, model.TransactionSend, decimal.NewFromInt(-amount), model.TokenTypePoints,
			"Sent to @"+recipient.Username, strPtr(recipient.ID))); err != nil {
			return err
		}
		if err := tx.Transactions.Create(ctx, record(recipient.ID, model.TransactionReceive, decimal.NewFromInt(amount), model.TokenTypePoints,
			"Received from "+senderName, strPtr(uid))); err != nil {
			return err
		}
		n := &model.Notification{
			UserID:        recipient.ID,
			Type:          model.NotificationTypeTransfer,
			Title:         "You received HTTN points",
			Message:       fmt.Sprintf("%s sent you %d HTTN points", senderName, amount),
			ActorID:       strPtr(uid),
			ActorName:     senderName,
			ReferenceType: "wallet",
		}
		if err := tx.Notifications.Create(ctx, n); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("points sent", "uid", uid, "to", username, "amount", amount)
	return out, nil
}

// applyOrdered applies two deltas locking wallets in user id order, and
// returns the first user's wallet.
func applyOrdered(ctx context.Context, tx *repository.Repositories, a string, da model.WalletDelta, b string, db model.WalletDelta) (*model.Wallet, error) {
	if b < a {
		if _, err := tx.Wallets.Apply(ctx, b, db); err != nil {
			return nil, insufficient(err)
		}
		w, err := tx.Wallets.Apply(ctx, a, da)
		return w, insufficient(err)
	}
	w, err := tx.Wallets.Apply(ctx, a, da)
	if err != nil {
		return nil, insufficient(err)
	}
	if _, err := tx.Wallets.Apply(ctx, b, db); err != nil {
		return nil, insufficient(err)
	}
	return w, nil
}

func cartTotals(items []model.OrderItem) (int64, decimal.Decimal, error) {
	if len(items) == 0 {
		return 0, decimal.Zero, ErrEmptyCart
	}
	var points int64
	espees := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 || it.PricePoints < 0 || it.PriceEspees.IsNegative() {
			return 0, decimal.Zero, ErrInvalidItem
		}
		qty := int64(it.Quantity)
		if it.PricePoints > (math.MaxInt64-points)/qty {
			return 0, decimal.Zero, ErrInvalidItem
		}
		points += it.PricePoints * qty
		espees = espees.Add(it.PriceEspees.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return points, espees, nil
}

func (s *walletService) Purchase(ctx context.Context, uid string, items []model.OrderItem) (*model.Order, error) {
	points, espees, err := cartTotals(items)
	if err != nil {
		return nil, err
	}
	var order *model.Order
	err = s.inTx(ctx, "purchase", func(tx *repository.Repositories) error {
		cur, err := tx.Wallets.Get(ctx, uid)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		if cur.HTTNPoints < points || cur.Espees.LessThan(espees) {
			return ErrInsufficientBalance
		}
		if _, err := tx.Wallets.Apply(ctx, uid, model.WalletDelta{Points: -points, Espees: espees.Neg()}); err != nil {
			return insufficient(err)
		}
		o := &model.Order{
			UserID:      uid,
			Items:       items,
			TotalPoints: points,
			TotalEspees: espees,
			Status:      model.OrderStatusPaid,
		}
		if err := tx.Orders.Create(ctx, o); err != nil {
			return err
		}
		ref := strPtr(strconv.FormatUint(o.ID, 10))
		desc := fmt.Sprintf("Order #%d", o.ID)
		if points > 0 {
			if err := tx.Transactions.Create(ctx, record(uid, model.TransactionPurchase, decimal.NewFromInt(-points), model.TokenTypePoints, desc, ref)); err != nil {
				return err
			}
		}
		if espees.IsPositive() {
			if err := tx.Transactions.Create(ctx, record(uid, model.TransactionPurchase, espees.Neg(), model.TokenTypeEspees, desc, ref)); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order paid", "uid", uid, "order_id", order.ID, "points", points, "espees", espees.String())
	return order, nil
}

func (s *walletService) Donate(ctx context.Context, uid string, in StreamDonationInput) (*model.StreamDonation, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if in.HostID == uid {
		return nil, ErrSelfTransfer
	}
	var out *model.StreamDonation
	err := s.inTx(ctx, "donate", func(tx *repository.Repositories) error {
		if _, err := tx.Profiles.FindByID(ctx, in.HostID); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		donor, err := tx.Wallets.Get(ctx, uid)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		if donor.HTTNPoints < in.Amount {
			return ErrInsufficientBalance
		}
		if _, err := tx.Wallets.Get(ctx, in.HostID); err != nil {
			return notFound(err, ErrRecipientWalletNotFound)
		}
		if _, err := applyOrdered(ctx, tx, uid, model.WalletDelta{Points: -in.Amount}, in.HostID, model.WalletDelta{Points: in.Amount}); err != nil {
			return err
		}
		d := &model.StreamDonation{
			StreamID: in.StreamID,
			DonorID:  uid,
			HostID:   in.HostID,
			Amount:   in.Amount,
			Message:  in.Message,
		}
		if err := tx.Donations.CreateStream(ctx, d); err != nil {
			return err
		}
		ref := strPtr(in.StreamID)
		if err := tx.Transactions.Create(ctx, record(uid, model.TransactionDonation, decimal.NewFromInt(-in.Amount), model.TokenTypePoints, "Stream donation", ref)); err != nil {
			return err
		}
		if err := tx.Transactions.Create(ctx, record(in.HostID, model.TransactionDonationReceived, decimal.NewFromInt(in.Amount), model.TokenTypePoints, "Stream donation received", ref)); err != nil {
			return err
		}
		donorName := uid
		if p, err := tx.Profiles.FindByID(ctx, uid); err == nil && p.DisplayName != "" {
			donorName = p.DisplayName
		}
		msg := fmt.Sprintf("%s tipped %d HTTN points on your stream", donorName, in.Amount)
		if in.Message != "" {
			msg += ": " + in.Message
		}
		if err := tx.Notifications.Create(ctx, &model.Notification{
			UserID:        in.HostID,
			Type:          model.NotificationTypeTip,
			Title:         "New tip",
			Message:       msg,
			ActorID:       strPtr(uid),
			ActorName:     donorName,
			ReferenceID:   ref,
			ReferenceType: "stream",
		}); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stream donation", "uid", uid, "host", in.HostID, "stream", in.StreamID, "amount", in.Amount)
	return out, nil
}

func (s *walletService) DonateToCause(ctx context.Context, uid, causeID string, amount int64) (*model.CauseDonation, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *model.CauseDonation
	err := s.inTx(ctx, "donate_cause", func(tx *repository.Repositories) error {
		cur, err := tx.Wallets.Get(ctx, uid)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		if cur.HTTNPoints < amount {
			return ErrInsufficientBalance
		}
		if _, err := tx.Wallets.Apply(ctx, uid, model.WalletDelta{Points: -amount}); err != nil {
			return insufficient(err)
		}
		d := &model.CauseDonation{CauseID: causeID, DonorID: uid, Amount: amount}
		if err := tx.Donations.CreateCause(ctx, d); err != nil {
			return err
		}
		if err := tx.Transactions.Create(ctx, record(uid, model.TransactionDonation, decimal.NewFromInt(-amount), model.TokenTypePoints, "Cause donation", strPtr(causeID))); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cause donation", "uid", uid, "cause", causeID, "amount", amount)
	return out, nil
}

// AccrueRewards adds to the unclaimed balance. Pending rewards are not
// spendable, so no ledger entry is written until they are claimed.
func (s *walletService) AccrueRewards(ctx context.Context, uid string, amount int64) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *model.Wallet
	err := s.inTx(ctx, "accrue", func(tx *repository.Repositories) error {
		if _, err := tx.Wallets.Ensure(ctx, uid); err != nil {
			return err
		}
		w, err := tx.Wallets.Apply(ctx, uid, model.WalletDelta{PendingRewards: amount})
		out = w
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *walletService) ClaimRewards(ctx context.Context, uid string) (*model.Wallet, error) {
	var out *model.Wallet
	var claimed int64
	err := s.inTx(ctx, "claim", func(tx *repository.Repositories) error {
		cur, err := tx.Wallets.Get(ctx, uid)
		if err != nil {
			return notFound(err, ErrWalletNotFound)
		}
		if cur.PendingRewards <= 0 {
			out = cur
			return nil
		}
		claimed = cur.PendingRewards
		w, err := tx.Wallets.Apply(ctx, uid, model.WalletDelta{Points: claimed, PendingRewards: -claimed})
		if err != nil {
			return insufficient(err)
		}
		if err := tx.Transactions.Create(ctx, record(uid, model.TransactionClaim, decimal.NewFromInt(claimed), model.TokenTypePoints, "Claimed rewards", nil)); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed > 0 {
		s.logger.Info("rewards claimed", "uid", uid, "amount", claimed)
	}
	return out, nil
}

func (s *walletService) ListTransactions(ctx context.Context, uid string, limit int) ([]model.WalletTransaction, error) {
	return s.repos.Transactions.ListByUser(ctx, uid, limit)
}

// Audit compares each stored balance with the sum of the user's ledger.
func (s *walletService) Audit(ctx context.Context, uid string) (*AuditReport, error) {
	w, err := s.repos.Wallets.Get(ctx, uid)
	if err != nil {
		return nil, notFound(err, ErrWalletNotFound)
	}
	sums, err := s.repos.Transactions.SumByToken(ctx, uid)
	if err != nil {
		return nil, err
	}
	report := &AuditReport{UserID: uid, Drifts: []Drift{}}
	stored := []struct {
		typ model.TokenType
		val decimal.Decimal
	}{
		{model.TokenTypePoints, decimal.NewFromInt(w.HTTNPoints)},
		{model.TokenTypeTokens, w.HTTNTokens},
		{model.TokenTypeEspees, w.Espees},
	}
	for _, st := range stored {
		ledger := sums[st.typ]
		if !ledger.Equal(st.val) {
			report.Drifts = append(report.Drifts, Drift{TokenType: st.typ, Stored: st.val, Ledger: ledger})
		}
	}
	return report, nil
}

// AuditAll walks every wallet and returns the reports that show drift.
func (s *walletService) AuditAll(ctx context.Context) ([]AuditReport, error) {
	var (
		out   []AuditReport
		after string
	)
	for {
		ids, err := s.repos.Wallets.ListUserIDs(ctx, after, 200)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			r, err := s.Audit(ctx, id)
			if err != nil {
				return nil, err
			}
			if !r.Balanced() {
				s.logger.Warn("wallet ledger drift", "uid", id, "drifts", len(r.Drifts))
				out = append(out, *r)
			}
		}
		after = ids[len(ids)-1]
	}
	return out, nil
}
