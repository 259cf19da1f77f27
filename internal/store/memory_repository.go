/**
 * @description
 * This file provides an in-memory implementation of the `Repository` interface.
 * It mirrors the PostgreSQL implementation's semantics — atomic multi-record
 * writes, the balance >= amount guard, the request-id idempotency gate and
 * the one-default-per-holder constraint — behind a single mutex, so the
 * application and its tests can exercise the full transfer pipeline without
 * a database.
 */

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenbank/ledger-service/internal/domain"
)

// MemoryRepository is a mutex-guarded, map-backed Repository.
type MemoryRepository struct {
	mu        sync.Mutex
	users     map[string]domain.User
	accounts  map[string]domain.Account
	processed map[uuid.UUID]struct{}
	rejected  map[uuid.UUID]domain.RejectedTransfer
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:     make(map[string]domain.User),
		accounts:  make(map[string]domain.Account),
		processed: make(map[uuid.UUID]struct{}),
		rejected:  make(map[uuid.UUID]domain.RejectedTransfer),
	}
}

func (r *MemoryRepository) GetUser(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r *MemoryRepository) CreateUserWithAccount(ctx context.Context, user *domain.User, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Both uniqueness checks happen before either write, so a conflict on the
	// account number never leaves a dangling user behind.
	if _, exists := r.users[user.Username]; exists {
		return ErrUsernameTaken
	}
	if _, exists := r.accounts[account.AccountNumber]; exists {
		return ErrAccountNumberTaken
	}

	stored := *user
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.users[stored.Username] = stored
	r.accounts[account.AccountNumber] = withCreatedAt(*account)
	return nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[account.Holder]; !exists {
		return ErrUserNotFound
	}
	if _, exists := r.accounts[account.AccountNumber]; exists {
		return ErrAccountNumberTaken
	}
	r.accounts[account.AccountNumber] = withCreatedAt(*account)
	return nil
}

func (r *MemoryRepository) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryRepository) ListAccountsByHolder(ctx context.Context, holder string) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]domain.Account, 0)
	for _, account := range r.accounts {
		if account.Holder == holder {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (r *MemoryRepository) ListDefaultAccounts(ctx context.Context) ([]domain.DefaultAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]domain.DefaultAccount, 0)
	for _, account := range r.accounts {
		if account.IsDefault {
			entries = append(entries, domain.DefaultAccount{
				Holder:        account.Holder,
				AccountNumber: account.AccountNumber,
			})
		}
	}
	return entries, nil
}

func (r *MemoryRepository) SetDefaultAccount(ctx context.Context, holder, accountNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.accounts[accountNumber]
	if !ok || target.Holder != holder {
		return ErrAccountNotFound
	}

	for number, account := range r.accounts {
		if account.Holder == holder && account.IsDefault {
			account.IsDefault = false
			r.accounts[number] = account
		}
	}
	target.IsDefault = true
	r.accounts[accountNumber] = target
	return nil
}

func (r *MemoryRepository) ApplyTransfer(ctx context.Context, req domain.TransferRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.processed[req.RequestID]; done {
		return ErrTransferAlreadyApplied
	}

	from, ok := r.accounts[req.FromAccount]
	if !ok {
		return ErrAccountNotFound
	}
	to, ok := r.accounts[req.ToAccount]
	if !ok {
		return ErrAccountNotFound
	}
	if from.Balance < req.Amount {
		return ErrInsufficientFunds
	}

	from.Balance -= req.Amount
	to.Balance += req.Amount
	r.accounts[req.FromAccount] = from
	r.accounts[req.ToAccount] = to
	r.processed[req.RequestID] = struct{}{}
	return nil
}

func (r *MemoryRepository) RecordRejectedTransfer(ctx context.Context, rejected domain.RejectedTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rejected[rejected.RequestID]; exists {
		return nil
	}
	if rejected.RejectedAt.IsZero() {
		rejected.RejectedAt = time.Now().UTC()
	}
	r.rejected[rejected.RequestID] = rejected
	return nil
}

// RejectedTransfers returns the recorded dead letters, for tests that
// assert on terminal failures.
func (r *MemoryRepository) RejectedTransfers() []domain.RejectedTransfer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.RejectedTransfer, 0, len(r.rejected))
	for _, rejected := range r.rejected {
		out = append(out, rejected)
	}
	return out
}

func withCreatedAt(account domain.Account) domain.Account {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	return account
}
