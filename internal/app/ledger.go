/**
 * @description
 * This file contains the account and user lifecycle logic of the
 * ledger-service. The `LedgerService` struct owns signup and account
 * creation invariants and the balance read paths, delegating all persistence
 * to the store repository.
 *
 * Authorization is enforced here for every mutating operation: the acting
 * principal must equal the holder of the data being created or listed. The
 * default-account directory is the one read any principal may perform, since
 * it is needed to resolve transfer recipients.
 *
 * @dependencies
 * - context, errors, fmt, log, strings: Standard Go libraries.
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
)

var (
	ErrNotAccountHolder     = errors.New("principal does not own this resource")
	ErrInvalidUsername      = errors.New("username must not be empty")
	ErrInvalidPassword      = errors.New("password must not be empty")
	ErrInvalidAccountNumber = errors.New("account number must not be empty")
	ErrInvalidAccountType   = errors.New("unknown account type")
)

// LedgerService owns user/account creation and balance reads.
type LedgerService struct {
	repo        store.Repository
	signupBonus int64
}

// NewLedgerService creates a ledger service. signupBonus is the starting
// balance, in minor units, of the first account created at signup;
// additional accounts always start at zero.
func NewLedgerService(repo store.Repository, signupBonus int64) *LedgerService {
	return &LedgerService{repo: repo, signupBonus: signupBonus}
}

// CreateUser registers a new user together with their first account. The two
// records are written as one all-or-nothing transaction; the first account is
// a SAVINGS account carrying the signup bonus and is flagged as the holder's
// default receiving account.
func (s *LedgerService) CreateUser(ctx context.Context, username, password, accountNumber string) (*domain.User, *domain.Account, error) {
	username = strings.TrimSpace(username)
	accountNumber = strings.TrimSpace(accountNumber)
	if username == "" {
		return nil, nil, ErrInvalidUsername
	}
	if password == "" {
		return nil, nil, ErrInvalidPassword
	}
	if accountNumber == "" {
		return nil, nil, ErrInvalidAccountNumber
	}

	hash, err := HashCredential(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash credential: %w", err)
	}

	user := &domain.User{
		Username:       username,
		CredentialHash: hash,
	}
	account := &domain.Account{
		AccountNumber: accountNumber,
		Holder:        username,
		Type:          domain.AccountTypeSavings,
		Balance:       s.signupBonus,
		IsDefault:     true,
	}

	if err := s.repo.CreateUserWithAccount(ctx, user, account); err != nil {
		return nil, nil, err
	}

	log.Printf("level=info component=ledger msg=\"user created\" username=%s account=%s", username, accountNumber)
	return user, account, nil
}

// CreateAccount opens an additional account for the holder. The principal
// must be the holder; the account starts at zero balance and becomes the
// default only when the holder has no accounts yet.
func (s *LedgerService) CreateAccount(ctx context.Context, principal, holder, accountNumber string, accountType domain.AccountType) (*domain.Account, error) {
	if principal != holder {
		return nil, ErrNotAccountHolder
	}
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, ErrInvalidAccountNumber
	}
	if !accountType.Valid() {
		return nil, ErrInvalidAccountType
	}

	existing, err := s.repo.ListAccountsByHolder(ctx, holder)
	if err != nil {
		return nil, fmt.Errorf("list holder accounts: %w", err)
	}

	account := &domain.Account{
		AccountNumber: accountNumber,
		Holder:        holder,
		Type:          accountType,
		Balance:       0,
		IsDefault:     len(existing) == 0,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger msg=\"account created\" holder=%s account=%s type=%s", holder, accountNumber, accountType)
	return account, nil
}

// GetUser returns the user record, without its credential hash ever being
// serialized by the API layer.
func (s *LedgerService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.GetUser(ctx, username)
}

// ListAccounts returns every account of the holder. Only the holder may
// list their own accounts.
func (s *LedgerService) ListAccounts(ctx context.Context, principal, holder string) ([]domain.Account, error) {
	if principal != holder {
		return nil, ErrNotAccountHolder
	}
	return s.repo.ListAccountsByHolder(ctx, holder)
}

// DefaultAccounts returns the public directory of default accounts used to
// resolve "transfer to user X" into X's receiving account. It exposes no
// balances.
func (s *LedgerService) DefaultAccounts(ctx context.Context) ([]domain.DefaultAccount, error) {
	return s.repo.ListDefaultAccounts(ctx)
}

// SetDefaultAccount changes which of the principal's accounts receives
// transfers addressed to them. The store unsets the previous default in the
// same transaction.
func (s *LedgerService) SetDefaultAccount(ctx context.Context, principal, accountNumber string) error {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return ErrInvalidAccountNumber
	}
	return s.repo.SetDefaultAccount(ctx, principal, accountNumber)
}
