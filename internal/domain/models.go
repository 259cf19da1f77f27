/**
 * @description
 * This file defines the core domain models for the ledger-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit, which avoids floating-point inaccuracies with financial data.
 * - TransferRequest is a queue message, not a stored entity; the store only keeps
 *   its request_id once the transfer has been applied or rejected.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates the supported account categories.
type AccountType string

const (
	AccountTypeChecking   AccountType = "CHECKING"
	AccountTypeSavings    AccountType = "SAVINGS"
	AccountTypeInvestment AccountType = "INVESTMENT"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeInvestment:
		return true
	}
	return false
}

// User represents a registered account holder. The credential hash is opaque
// to this service and never leaves the store layer in API responses.
type User struct {
	Username       string    `json:"username"`
	CredentialHash string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Account represents a single ledger account owned by a user.
// A holder may have many accounts; at most one of them is the default,
// used as the implicit receiving account for transfers addressed to a user.
type Account struct {
	AccountNumber string      `json:"account_number"`
	Holder        string      `json:"holder"`
	Type          AccountType `json:"type"`
	Balance       int64       `json:"balance"` // minor currency units
	IsDefault     bool        `json:"is_default"`
	CreatedAt     time.Time   `json:"created_at"`
}

// DefaultAccount is one entry of the public default-account directory,
// used to resolve "transfer to user X" into X's receiving account.
type DefaultAccount struct {
	Holder        string `json:"holder"`
	AccountNumber string `json:"account_number"`
}

// TransferRequest is the message published to the transfer queue by the
// gateway and consumed by the processor. RequestID is the idempotency key:
// the queue delivers at-least-once, so the processor must apply each
// RequestID at most once.
type TransferRequest struct {
	RequestID   uuid.UUID `json:"request_id"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	FromHolder  string    `json:"from_holder"`
	ToHolder    string    `json:"to_holder"`
	Amount      int64     `json:"amount"` // minor currency units
	SubmittedAt time.Time `json:"submitted_at"`
}

// RejectedTransfer is the dead-letter payload published (and persisted)
// when a transfer fails terminally at apply time. The submitter already
// received an Accepted response, so this record is the only trace of the
// failure and must be operator-visible.
type RejectedTransfer struct {
	RequestID   uuid.UUID `json:"request_id"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	Amount      int64     `json:"amount"`
	Reason      string    `json:"reason"`
	RejectedAt  time.Time `json:"rejected_at"`
}

// SignupRequest is the DTO for the signup API endpoint.
type SignupRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	AccountNumber string `json:"account_number"`
}

// LoginRequest is the DTO for the login API endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateAccountRequest is the DTO for opening an additional account.
type CreateAccountRequest struct {
	AccountNumber string      `json:"account_number"`
	Type          AccountType `json:"type"`
}

// SubmitTransferRequest is the DTO for the transfer submission endpoint.
// FromHolder must match the authenticated principal; ToHolder names the
// receiving user (informational once ToAccount has been resolved).
type SubmitTransferRequest struct {
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	FromHolder  string `json:"from_holder"`
	ToHolder    string `json:"to_holder"`
	Amount      int64  `json:"amount"`
}

// Dead-letter reasons recorded for terminally rejected transfers.
const (
	RejectReasonInsufficientFunds = "insufficient_funds"
	RejectReasonUnknownAccount    = "unknown_account"
	RejectReasonMalformed         = "malformed_request"
)
