/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * for users, accounts, and the processed/rejected transfer logs.
 *
 * Concurrency discipline: balances are only ever mutated through guarded
 * UPDATEs (`... AND balance >= $n`) inside a transaction, with a
 * `CHECK (balance >= 0)` constraint as the last line of defense. The
 * processed_transfers insert shares the same transaction as the balance
 * mutation, which is what turns at-least-once queue delivery into
 * exactly-once balance effects.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumenbank/ledger-service/internal/domain"
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetUser retrieves a user by their username.
func (r *PostgresRepository) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	query := `SELECT username, credential_hash, created_at FROM users WHERE username = $1`
	err := r.db.QueryRow(ctx, query, username).Scan(&user.Username, &user.CredentialHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUserWithAccount inserts the user and their first account in one transaction.
func (r *PostgresRepository) CreateUserWithAccount(ctx context.Context, user *domain.User, account *domain.Account) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin signup transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (username, credential_hash) VALUES ($1, $2)`,
		user.Username, user.CredentialHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (account_number, holder, account_type, balance, is_default)
		 VALUES ($1, $2, $3, $4, $5)`,
		account.AccountNumber, account.Holder, account.Type, account.Balance, account.IsDefault,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountNumberTaken
		}
		return fmt.Errorf("insert first account: %w", err)
	}

	return tx.Commit(ctx)
}

// CreateAccount inserts an additional account for an existing holder.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (account_number, holder, account_type, balance, is_default)
		 VALUES ($1, $2, $3, $4, $5)`,
		account.AccountNumber, account.Holder, account.Type, account.Balance, account.IsDefault,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountNumberTaken
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// GetAccount retrieves a single account by its number.
func (r *PostgresRepository) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT account_number, holder, account_type, balance, is_default, created_at
	          FROM accounts WHERE account_number = $1`
	err := r.db.QueryRow(ctx, query, accountNumber).Scan(
		&account.AccountNumber, &account.Holder, &account.Type,
		&account.Balance, &account.IsDefault, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListAccountsByHolder returns every account owned by the holder. The query
// is served by the accounts(holder) index, not by a table scan.
func (r *PostgresRepository) ListAccountsByHolder(ctx context.Context, holder string) ([]domain.Account, error) {
	query := `SELECT account_number, holder, account_type, balance, is_default, created_at
	          FROM accounts WHERE holder = $1`
	rows, err := r.db.Query(ctx, query, holder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.AccountNumber, &account.Holder, &account.Type,
			&account.Balance, &account.IsDefault, &account.CreatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// ListDefaultAccounts returns the public directory of default accounts,
// one entry per holder at most. This is the only directory-style read in
// the service and it stays small by construction.
func (r *PostgresRepository) ListDefaultAccounts(ctx context.Context) ([]domain.DefaultAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT holder, account_number FROM accounts WHERE is_default`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.DefaultAccount, 0)
	for rows.Next() {
		var entry domain.DefaultAccount
		if err := rows.Scan(&entry.Holder, &entry.AccountNumber); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SetDefaultAccount flags the given account as the holder's default.
// The prior default is unset in the same transaction, so the partial unique
// index on (holder) WHERE is_default never sees two flagged rows.
func (r *PostgresRepository) SetDefaultAccount(ctx context.Context, holder, accountNumber string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin default-account transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET is_default = FALSE WHERE holder = $1 AND is_default`,
		holder,
	); err != nil {
		return fmt.Errorf("unset prior default: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET is_default = TRUE WHERE account_number = $1 AND holder = $2`,
		accountNumber, holder,
	)
	if err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit(ctx)
}

// ApplyTransfer applies a debit/credit pair atomically, keyed by request id.
//
// The processed_transfers insert acts as the idempotency gate: a redelivered
// request id hits the ON CONFLICT arm, inserts nothing, and the whole
// transaction rolls back without touching a balance. The debit UPDATE is a
// conditional write on the current balance, so two transfers racing on the
// same account serialize on the row and the loser re-evaluates the guard
// against the committed balance.
func (r *PostgresRepository) ApplyTransfer(ctx context.Context, req domain.TransferRequest) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transfer transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO processed_transfers (request_id, from_account, to_account, amount)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (request_id) DO NOTHING`,
		req.RequestID, req.FromAccount, req.ToAccount, req.Amount,
	)
	if err != nil {
		return fmt.Errorf("mark transfer processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransferAlreadyApplied
	}

	tag, err = tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1
		 WHERE account_number = $2 AND balance >= $1`,
		req.Amount, req.FromAccount,
	)
	if err != nil {
		return fmt.Errorf("debit source account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing account from a failed balance guard.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`,
			req.FromAccount,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check source account: %w", err)
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrInsufficientFunds
	}

	tag, err = tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE account_number = $2`,
		req.Amount, req.ToAccount,
	)
	if err != nil {
		return fmt.Errorf("credit destination account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit(ctx)
}

// RecordRejectedTransfer persists a terminal dead-letter record.
func (r *PostgresRepository) RecordRejectedTransfer(ctx context.Context, rejected domain.RejectedTransfer) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO rejected_transfers (request_id, from_account, to_account, amount, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (request_id) DO NOTHING`,
		rejected.RequestID, rejected.FromAccount, rejected.ToAccount, rejected.Amount, rejected.Reason,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
