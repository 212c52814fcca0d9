package service

import (
	"errors"

	"giftledger/internal/infrastructure/lock"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrInvalidAmount         = errors.New("amount must be greater than 0")
	ErrInvalidCurrency       = errors.New("unknown currency code")
	ErrCardInactive          = errors.New("card inactive")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrOriginalSpendNotFound = errors.New("original spend not found")
	ErrAlreadyRefunded       = errors.New("already refunded")
)

// MySQL lock wait timeout and deadlock error numbers. Both mean the unit of
// work was rolled back without effect and is safe for the caller to retry.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// IsContention reports whether err is a transient lock conflict: either the
// per-card distributed lock could not be acquired or the store aborted the
// transaction on lock timeout / deadlock.
func IsContention(err error) bool {
	if errors.Is(err, lock.ErrLockFailed) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrLockWaitTimeout || mysqlErr.Number == mysqlErrDeadlock
	}
	return false
}
