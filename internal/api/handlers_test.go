package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumenbank/ledger-service/internal/app"
	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
)

type stubPublisher struct {
	published int
	failWith  error
}

func (p *stubPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.published++
	return nil
}

func (p *stubPublisher) Close() {}

type apiFixture struct {
	router    http.Handler
	repo      *store.MemoryRepository
	publisher *stubPublisher
	auth      *app.Authenticator
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	repo := store.NewMemoryRepository()
	publisher := &stubPublisher{}

	auth := app.NewAuthenticator(repo, "test-secret", time.Hour)
	ledger := app.NewLedgerService(repo, 10000)
	gateway := app.NewTransferGateway(repo, publisher, "bank.transfers", time.Second)

	handlers := NewLedgerHandlers(ledger, gateway, auth)
	return &apiFixture{
		router:    Routes(handlers, auth),
		repo:      repo,
		publisher: publisher,
		auth:      auth,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) signupAndLogin(t *testing.T, username, accountNumber string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/signup", "", domain.SignupRequest{
		Username: username, Password: "s3cret", AccountNumber: accountNumber,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", username, rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/auth/login", "", domain.LoginRequest{
		Username: username, Password: "s3cret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return login.Token
}

func TestSignup_CreatesUserAndDefaultAccount(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/signup", "", domain.SignupRequest{
		Username: "alice", Password: "s3cret", AccountNumber: "A1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Username string         `json:"username"`
		Account  domain.Account `json:"account"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Account.Balance != 10000 || !resp.Account.IsDefault {
		t.Fatalf("first account = %+v, want default with signup bonus", resp.Account)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("credential")) {
		t.Fatal("signup response must not leak credential material")
	}
}

func TestSignup_DuplicateUsernameConflicts(t *testing.T) {
	f := newAPIFixture(t)
	f.signupAndLogin(t, "alice", "A1")

	rec := f.do(t, http.MethodPost, "/auth/signup", "", domain.SignupRequest{
		Username: "alice", Password: "other", AccountNumber: "A2",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestLogin_WrongPasswordUnauthorized(t *testing.T) {
	f := newAPIFixture(t)
	f.signupAndLogin(t, "alice", "A1")

	rec := f.do(t, http.MethodPost, "/auth/login", "", domain.LoginRequest{
		Username: "alice", Password: "guess",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMe_ReturnsPrincipalWithoutCredentials(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signupAndLogin(t, "alice", "A1")

	rec := f.do(t, http.MethodGet, "/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var user domain.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("username = %q, want alice", user.Username)
	}
	if bytes.Contains(bytes.ToLower(rec.Body.Bytes()), []byte("hash")) {
		t.Fatal("profile response must not expose the credential hash")
	}
}

func TestAccounts_RequireAuthentication(t *testing.T) {
	f := newAPIFixture(t)

	if rec := f.do(t, http.MethodGet, "/accounts", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/accounts", "not.a.token", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestAccounts_ListReturnsOwnAccountsOnly(t *testing.T) {
	f := newAPIFixture(t)
	aliceToken := f.signupAndLogin(t, "alice", "A1")
	f.signupAndLogin(t, "bob", "B1")

	rec := f.do(t, http.MethodGet, "/accounts", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var accounts []domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Holder != "alice" {
		t.Fatalf("expected only alice's account, got %+v", accounts)
	}
}

func TestCreateAccount_SecondAccountIsNotDefault(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signupAndLogin(t, "alice", "A1")

	rec := f.do(t, http.MethodPost, "/accounts", token, domain.CreateAccountRequest{
		AccountNumber: "A2", Type: domain.AccountTypeChecking,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var account domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.Balance != 0 || account.IsDefault {
		t.Fatalf("second account = %+v, want zero balance and non-default", account)
	}
}

func TestDefaultAccountsDirectory_ExposesNoBalances(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signupAndLogin(t, "alice", "A1")
	f.signupAndLogin(t, "bob", "B1")

	rec := f.do(t, http.MethodGet, "/accounts/defaults", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var entries []domain.DefaultAccount
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode directory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("directory entries = %d, want 2", len(entries))
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("balance")) {
		t.Fatal("directory must not expose balances")
	}
}

func TestSetDefaultAccount_MovesDefault(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signupAndLogin(t, "alice", "A1")

	rec := f.do(t, http.MethodPost, "/accounts", token, domain.CreateAccountRequest{
		AccountNumber: "A2", Type: domain.AccountTypeInvestment,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create second account: status %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/accounts/A2/default", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set default: status = %d, want 204; body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPut, "/accounts/B1/default", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign account: status = %d, want 404", rec.Code)
	}
}

func TestSubmitTransfer_AcceptedForProcessing(t *testing.T) {
	f := newAPIFixture(t)
	aliceToken := f.signupAndLogin(t, "alice", "A1")
	f.signupAndLogin(t, "bob", "B1")

	rec := f.do(t, http.MethodPost, "/transfers", aliceToken, domain.SubmitTransferRequest{
		FromAccount: "A1", ToAccount: "B1", FromHolder: "alice", ToHolder: "bob", Amount: 2500,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "accepted" || resp.RequestID == "" {
		t.Fatalf("response = %+v, want accepted with request id", resp)
	}
	if f.publisher.published != 1 {
		t.Fatalf("published %d messages, want 1", f.publisher.published)
	}

	// Acceptance is asynchronous: no balance has moved yet.
	account, err := f.repo.GetAccount(context.Background(), "A1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance != 10000 {
		t.Fatalf("gateway must not mutate balances, got %d", account.Balance)
	}
}

func TestSubmitTransfer_ErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	aliceToken := f.signupAndLogin(t, "alice", "A1")
	f.signupAndLogin(t, "bob", "B1")

	cases := []struct {
		name string
		req  domain.SubmitTransferRequest
		want int
	}{
		{
			name: "insufficient funds",
			req:  domain.SubmitTransferRequest{FromAccount: "A1", ToAccount: "B1", FromHolder: "alice", Amount: 999999},
			want: http.StatusPaymentRequired,
		},
		{
			name: "non-positive amount",
			req:  domain.SubmitTransferRequest{FromAccount: "A1", ToAccount: "B1", FromHolder: "alice", Amount: -5},
			want: http.StatusBadRequest,
		},
		{
			name: "self transfer",
			req:  domain.SubmitTransferRequest{FromAccount: "A1", ToAccount: "A1", FromHolder: "alice", Amount: 100},
			want: http.StatusBadRequest,
		},
		{
			name: "foreign source account",
			req:  domain.SubmitTransferRequest{FromAccount: "B1", ToAccount: "A1", FromHolder: "alice", Amount: 100},
			want: http.StatusForbidden,
		},
		{
			name: "unknown source account",
			req:  domain.SubmitTransferRequest{FromAccount: "NOPE", ToAccount: "B1", FromHolder: "alice", Amount: 100},
			want: http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/transfers", aliceToken, tc.req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
	if f.publisher.published != 0 {
		t.Fatalf("rejected submissions published %d messages", f.publisher.published)
	}
}

func TestSubmitTransfer_BrokerOutageReturns503(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signupAndLogin(t, "alice", "A1")
	f.signupAndLogin(t, "bob", "B1")
	f.publisher.failWith = fmt.Errorf("channel closed")

	rec := f.do(t, http.MethodPost, "/transfers", token, domain.SubmitTransferRequest{
		FromAccount: "A1", ToAccount: "B1", FromHolder: "alice", Amount: 100,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
