package service

import (
	"errors"

	"github.com/shinyyama/herald-backend/internal/repository"
	"gorm.io/gorm"
)

// The messages double as the toast text shown to the user.
var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrBelowMinimum            = errors.New("minimum conversion is 100 points")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrUserNotFound            = errors.New("user not found")
	ErrSelfTransfer            = errors.New("cannot send to yourself")
	ErrRecipientWalletNotFound = errors.New("recipient wallet not found")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrInvalidItem             = errors.New("invalid cart item")
	ErrEmptyContent            = errors.New("content is required")
	ErrTaskCompleted           = errors.New("task already completed")
)

func notFound(err error, as error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return as
	}
	return err
}

func insufficient(err error) error {
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return ErrInsufficientBalance
	}
	return err
}
