/**
 * @description
 * This file implements the identity-provider boundary of the ledger-service.
 * Passwords are verified against bcrypt hashes held by the account store and
 * successful logins are exchanged for a signed HS256 token whose subject is
 * the username. Every downstream operation receives that principal as an
 * explicit argument; nothing reads it from ambient state.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Token signing and verification.
 * - golang.org/x/crypto/bcrypt: One-way credential verification.
 * - internal/store: Credential lookup.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumenbank/ledger-service/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator issues and verifies principal tokens.
type Authenticator struct {
	repo     store.Repository
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthenticator creates an Authenticator backed by the given repository.
func NewAuthenticator(repo store.Repository, secret string, tokenTTL time.Duration) *Authenticator {
	return &Authenticator{
		repo:     repo,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// Authenticate verifies the username/password pair and returns a signed
// token for the principal. A missing user and a wrong password are
// indistinguishable to the caller.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := a.repo.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.CredentialHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a token and returns the principal it names.
func (a *Authenticator) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidCredentials
	}
	return subject, nil
}

// HashCredential produces the stored one-way hash for a password.
func HashCredential(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
