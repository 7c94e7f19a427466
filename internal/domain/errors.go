package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrMarketNotFound       = errors.New("market not found")
	ErrMarketInactive       = errors.New("market not active")
	ErrMarketNotFrozen      = errors.New("market not frozen")
	ErrInvalidOrderParams   = errors.New("invalid order parameters")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrOrderNotCancellable  = errors.New("order not cancellable")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidWalletAddress = errors.New("invalid wallet address")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientShares   = errors.New("insufficient shares")
	ErrRateLimited          = errors.New("rate limited")
	ErrLockHeld             = errors.New("lock already held")
	ErrNoTreasury           = errors.New("no treasury account configured")
)

// InsufficientBalanceError reports a buy order whose collateral requirement
// exceeds the available balance. It matches ErrInsufficientBalance under
// errors.Is.
type InsufficientBalanceError struct {
	RequiredCents  int64
	AvailableCents int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %d¢, available %d¢",
		e.RequiredCents, e.AvailableCents)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// InsufficientSharesError reports a sell order exceeding the user's held
// shares of the outcome. It matches ErrInsufficientShares under errors.Is.
type InsufficientSharesError struct {
	Required  int64
	Available int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares: required %d, available %d",
		e.Required, e.Available)
}

func (e *InsufficientSharesError) Is(target error) bool {
	return target == ErrInsufficientShares
}
