package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/herald-backend/internal/realtime"
	"gorm.io/gorm"
)

var (
	ErrDBNotReady = errors.New("database not initialized")
	// ErrInsufficientFunds is returned when a guarded debit matched no row.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Repositories groups every table repository over one connection (or one
// transaction) and one event publisher.
type Repositories struct {
	db  *gorm.DB
	pub realtime.Publisher

	Profiles      ProfileRepository
	Notifications NotificationRepository
	Wallets       WalletRepository
	Transactions  TransactionRepository
	Messages      MessageRepository
	Posts         PostRepository
	Orders        OrderRepository
	Donations     DonationRepository
	Tasks         TaskRepository
}

func New(db *gorm.DB, pub realtime.Publisher) *Repositories {
	if pub == nil {
		pub = realtime.Nop{}
	}
	return &Repositories{
		db:            db,
		pub:           pub,
		Profiles:      NewProfileRepository(db),
		Notifications: NewNotificationRepository(db, pub),
		Wallets:       NewWalletRepository(db, pub),
		Transactions:  NewTransactionRepository(db, pub),
		Messages:      NewMessageRepository(db, pub),
		Posts:         NewPostRepository(db),
		Orders:        NewOrderRepository(db),
		Donations:     NewDonationRepository(db),
		Tasks:         NewTaskRepository(db),
	}
}

// Transaction runs fn against repositories bound to a single database
// transaction. Events published inside fn reach subscribers only after
// commit; a rollback discards them.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	buf := &realtime.Buffer{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx, buf))
	})
	if err != nil {
		buf.Discard()
		return err
	}
	buf.Flush(r.pub)
	return nil
}

// DB exposes the underlying handle for health checks and migrations.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}
