package app

import (
	"context"
	"errors"
	"testing"

	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
)

func TestCreateUser_OpensDefaultSavingsAccountWithBonus(t *testing.T) {
	repo := store.NewMemoryRepository()
	service := NewLedgerService(repo, 10000)

	user, account, err := service.CreateUser(context.Background(), "alice", "s3cret", "A1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("username = %q", user.Username)
	}
	if user.CredentialHash == "" || user.CredentialHash == "s3cret" {
		t.Fatal("credential must be stored hashed, never in the clear")
	}
	if account.Type != domain.AccountTypeSavings {
		t.Fatalf("first account type = %q, want SAVINGS", account.Type)
	}
	if account.Balance != 10000 {
		t.Fatalf("first account balance = %d, want signup bonus 10000", account.Balance)
	}
	if !account.IsDefault {
		t.Fatal("first account must be the default receiving account")
	}
}

func TestCreateUser_RejectsDuplicates(t *testing.T) {
	repo := store.NewMemoryRepository()
	service := NewLedgerService(repo, 0)

	if _, _, err := service.CreateUser(context.Background(), "alice", "pw", "A1"); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	if _, _, err := service.CreateUser(context.Background(), "alice", "pw", "A2"); !errors.Is(err, store.ErrUsernameTaken) {
		t.Fatalf("duplicate username: expected ErrUsernameTaken, got %v", err)
	}
	if _, _, err := service.CreateUser(context.Background(), "bob", "pw", "A1"); !errors.Is(err, store.ErrAccountNumberTaken) {
		t.Fatalf("duplicate account number: expected ErrAccountNumberTaken, got %v", err)
	}

	// The failed bob signup must not leave a user record behind.
	if _, err := repo.GetUser(context.Background(), "bob"); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("rejected signup leaked a user record: %v", err)
	}
}

func TestCreateUser_ValidatesInput(t *testing.T) {
	service := NewLedgerService(store.NewMemoryRepository(), 0)

	cases := []struct {
		name     string
		username string
		password string
		account  string
		wantErr  error
	}{
		{"blank username", "  ", "pw", "A1", ErrInvalidUsername},
		{"blank password", "alice", "", "A1", ErrInvalidPassword},
		{"blank account number", "alice", "pw", "  ", ErrInvalidAccountNumber},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := service.CreateUser(context.Background(), tc.username, tc.password, tc.account)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateAccount_AdditionalAccountsStartEmptyAndNonDefault(t *testing.T) {
	repo := store.NewMemoryRepository()
	service := NewLedgerService(repo, 10000)

	if _, _, err := service.CreateUser(context.Background(), "alice", "pw", "A1"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	account, err := service.CreateAccount(context.Background(), "alice", "alice", "A2", domain.AccountTypeChecking)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if account.Balance != 0 {
		t.Fatalf("additional account balance = %d, want 0", account.Balance)
	}
	if account.IsDefault {
		t.Fatal("additional account must not displace the existing default")
	}
}

func TestCreateAccount_RejectsOtherPrincipals(t *testing.T) {
	service := NewLedgerService(store.NewMemoryRepository(), 0)

	_, err := service.CreateAccount(context.Background(), "mallory", "alice", "A2", domain.AccountTypeChecking)
	if !errors.Is(err, ErrNotAccountHolder) {
		t.Fatalf("expected ErrNotAccountHolder, got %v", err)
	}
}

func TestCreateAccount_RejectsUnknownType(t *testing.T) {
	repo := store.NewMemoryRepository()
	service := NewLedgerService(repo, 0)
	if _, _, err := service.CreateUser(context.Background(), "alice", "pw", "A1"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err := service.CreateAccount(context.Background(), "alice", "alice", "A2", domain.AccountType("OFFSHORE"))
	if !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
}

func TestListAccounts_OnlyHolderMayList(t *testing.T) {
	repo := store.NewMemoryRepository()
	service := NewLedgerService(repo, 100)
	if _, _, err := service.CreateUser(context.Background(), "alice", "pw", "A1"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	accounts, err := service.ListAccounts(context.Background(), "alice", "alice")
	if err != nil {
		t.Fatalf("list own accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}

	if _, err := service.ListAccounts(context.Background(), "mallory", "alice"); !errors.Is(err, ErrNotAccountHolder) {
		t.Fatalf("expected ErrNotAccountHolder, got %v", err)
	}
}

func TestSetDefaultAccount_MovesTheSingleDefault(t *testing.T) {
	repo := store.NewMemoryRepository()
	service := NewLedgerService(repo, 100)
	if _, _, err := service.CreateUser(context.Background(), "alice", "pw", "A1"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := service.CreateAccount(context.Background(), "alice", "alice", "A2", domain.AccountTypeInvestment); err != nil {
		t.Fatalf("create second account: %v", err)
	}

	if err := service.SetDefaultAccount(context.Background(), "alice", "A2"); err != nil {
		t.Fatalf("set default: %v", err)
	}

	entries, err := service.DefaultAccounts(context.Background())
	if err != nil {
		t.Fatalf("default directory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("holder must have exactly one default, directory has %d entries", len(entries))
	}
	if entries[0].AccountNumber != "A2" {
		t.Fatalf("default account = %s, want A2", entries[0].AccountNumber)
	}
}

func TestSetDefaultAccount_RejectsForeignAccount(t *testing.T) {
	repo := store.NewMemoryRepository()
	service := NewLedgerService(repo, 100)
	if _, _, err := service.CreateUser(context.Background(), "alice", "pw", "A1"); err != nil {
		t.Fatalf("signup alice: %v", err)
	}
	if _, _, err := service.CreateUser(context.Background(), "bob", "pw", "B1"); err != nil {
		t.Fatalf("signup bob: %v", err)
	}

	if err := service.SetDefaultAccount(context.Background(), "bob", "A1"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for a foreign account, got %v", err)
	}
}
