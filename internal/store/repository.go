/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the ledger-service. By defining an interface,
 * we decouple the application's business logic from the specific database
 * implementation, making the code more modular and easier to test.
 *
 * The repository is the single source of truth for balances. Every balance
 * mutation goes through an atomic, conditionally guarded write; callers never
 * read-modify-write a balance themselves.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/lumenbank/ledger-service/internal/domain"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrUsernameTaken          = errors.New("username already exists")
	ErrAccountNumberTaken     = errors.New("account number already exists")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrTransferAlreadyApplied = errors.New("transfer already applied")
)

// Repository defines the set of methods for interacting with the account store.
type Repository interface {
	// User and account lifecycle
	GetUser(ctx context.Context, username string) (*domain.User, error)
	// CreateUserWithAccount writes the user and their first account as a single
	// all-or-nothing transaction. Partial state (user without account, or the
	// reverse) is never observable.
	CreateUserWithAccount(ctx context.Context, user *domain.User, account *domain.Account) error
	CreateAccount(ctx context.Context, account *domain.Account) error

	// Balance reads
	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListAccountsByHolder(ctx context.Context, holder string) ([]domain.Account, error)
	ListDefaultAccounts(ctx context.Context) ([]domain.DefaultAccount, error)
	// SetDefaultAccount unsets any prior default of the same holder and flags
	// the given account, in one transaction, so at most one default exists.
	SetDefaultAccount(ctx context.Context, holder, accountNumber string) error

	// Transfer application
	// ApplyTransfer atomically debits the source account and credits the
	// destination account, guarded by the current balance and keyed by the
	// request id. A previously applied request id returns
	// ErrTransferAlreadyApplied without touching any balance.
	ApplyTransfer(ctx context.Context, req domain.TransferRequest) error
	// RecordRejectedTransfer persists a terminal rejection for operator
	// follow-up. Recording the same request id twice is a no-op.
	RecordRejectedTransfer(ctx context.Context, rejected domain.RejectedTransfer) error
}
