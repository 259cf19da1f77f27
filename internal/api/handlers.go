/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API
 * endpoints. Handlers parse incoming requests, call the application services
 * with the authenticated principal, and map application errors onto HTTP
 * status codes. They act as the bridge between the web layer and the
 * business logic layer.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenbank/ledger-service/internal/app"
	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
)

// LedgerHandlers holds the application services that handlers will use.
type LedgerHandlers struct {
	ledger  *app.LedgerService
	gateway *app.TransferGateway
	auth    *app.Authenticator
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(ledger *app.LedgerService, gateway *app.TransferGateway, auth *app.Authenticator) *LedgerHandlers {
	return &LedgerHandlers{ledger: ledger, gateway: gateway, auth: auth}
}

type signupResponse struct {
	Username string          `json:"username"`
	Account  *domain.Account `json:"account"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// transferAcceptedResponse is returned as soon as the transfer has been
// durably enqueued. The contract is "accepted for processing", never
// "completed": the final outcome is only observable through balances.
type transferAcceptedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Amount    int64  `json:"amount"`
}

// SignupHandler creates a user and their first account.
func (h *LedgerHandlers) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, account, err := h.ledger.CreateUser(r.Context(), req.Username, req.Password, req.AccountNumber)
	if err != nil {
		log.Printf("level=warn component=api endpoint=signup outcome=reject username=%s err=%v", req.Username, err)
		switch {
		case errors.Is(err, store.ErrUsernameTaken), errors.Is(err, store.ErrAccountNumberTaken):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, app.ErrInvalidUsername), errors.Is(err, app.ErrInvalidPassword), errors.Is(err, app.ErrInvalidAccountNumber):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, signupResponse{Username: user.Username, Account: account})
}

// LoginHandler exchanges credentials for a principal token.
func (h *LedgerHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Printf("level=error component=api endpoint=login msg=\"authentication failed\" err=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// MeHandler returns the authenticated principal's user record.
func (h *LedgerHandlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Could not get principal from context", http.StatusInternalServerError)
		return
	}

	user, err := h.ledger.GetUser(r.Context(), principal)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("level=error component=api endpoint=me username=%s err=%v", principal, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// CreateAccountHandler opens an additional account for the principal.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Could not get principal from context", http.StatusInternalServerError)
		return
	}

	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), principal, principal, req.AccountNumber, req.Type)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_account outcome=reject holder=%s err=%v", principal, err)
		switch {
		case errors.Is(err, store.ErrAccountNumberTaken):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, app.ErrInvalidAccountNumber), errors.Is(err, app.ErrInvalidAccountType):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, app.ErrNotAccountHolder):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

// ListAccountsHandler returns the principal's own accounts.
func (h *LedgerHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Could not get principal from context", http.StatusInternalServerError)
		return
	}

	accounts, err := h.ledger.ListAccounts(r.Context(), principal, principal)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_accounts holder=%s err=%v", principal, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, accounts)
}

// DefaultAccountsHandler returns the public default-account directory used
// to resolve transfer recipients. It exposes holders and account numbers
// only, never balances.
func (h *LedgerHandlers) DefaultAccountsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.DefaultAccounts(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=default_accounts err=%v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// SetDefaultAccountHandler changes the principal's receiving account.
func (h *LedgerHandlers) SetDefaultAccountHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Could not get principal from context", http.StatusInternalServerError)
		return
	}

	accountNumber := chi.URLParam(r, "accountNumber")
	if err := h.ledger.SetDefaultAccount(r.Context(), principal, accountNumber); err != nil {
		log.Printf("level=warn component=api endpoint=set_default_account outcome=reject holder=%s account=%s err=%v", principal, accountNumber, err)
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, app.ErrInvalidAccountNumber):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitTransferHandler validates and enqueues a transfer request. A 202
// response means the request is durably queued for asynchronous
// application, not that any balance has changed yet.
func (h *LedgerHandlers) SubmitTransferHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Could not get principal from context", http.StatusInternalServerError)
		return
	}

	var req domain.SubmitTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	transfer, err := h.gateway.SubmitTransfer(r.Context(), principal, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=submit_transfer outcome=reject principal=%s err=%v", principal, err)
		switch {
		case errors.Is(err, store.ErrInsufficientFunds):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrSelfTransfer), errors.Is(err, app.ErrInvalidAccountNumber):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, app.ErrNotAccountHolder):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, store.ErrAccountNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, app.ErrRateLimited):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, app.ErrPublishFailed):
			http.Error(w, "Transfer could not be accepted, try again", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, transferAcceptedResponse{
		RequestID: transfer.RequestID.String(),
		Status:    "accepted",
		Message:   "Transfer initiated",
		Amount:    transfer.Amount,
	})
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}
