/**
 * @description
 * This file contains the transfer gateway: the synchronous, validating front
 * of the asynchronous transfer pipeline. A passing request is stamped with a
 * fresh request id and published to the transfer queue; the gateway itself
 * never mutates a balance. Acceptance means "durably enqueued for
 * processing", not "applied".
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: Request id generation.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Queue producer.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
	"github.com/lumenbank/ledger-service/pkg/rabbitmq"
)

const transferRequestedKey = "transfer.requested"

var (
	ErrInvalidAmount = errors.New("transfer amount must be positive")
	ErrSelfTransfer  = errors.New("source and destination accounts must differ")
	ErrPublishFailed = errors.New("transfer could not be enqueued")
	ErrRateLimited   = errors.New("too many transfer submissions")
)

// RateLimiter is the distributed limiter consulted before accepting a
// transfer submission. A nil limiter disables limiting.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// TransferGateway validates and enqueues transfer requests.
type TransferGateway struct {
	repo           store.Repository
	producer       rabbitmq.Publisher
	exchange       string
	publishTimeout time.Duration

	limiter        RateLimiter
	limitPerMinute int
}

// NewTransferGateway creates a gateway publishing to the given exchange.
func NewTransferGateway(repo store.Repository, producer rabbitmq.Publisher, exchange string, publishTimeout time.Duration) *TransferGateway {
	return &TransferGateway{
		repo:           repo,
		producer:       producer,
		exchange:       exchange,
		publishTimeout: publishTimeout,
	}
}

// SetRateLimiter enables per-principal submission limiting.
func (g *TransferGateway) SetRateLimiter(limiter RateLimiter, limitPerMinute int) {
	g.limiter = limiter
	g.limitPerMinute = limitPerMinute
}

// SubmitTransfer validates the request against the caller's view of the
// ledger and publishes it. The balance check here is advisory: the cached
// balance may be stale, and the authoritative guard runs at apply time in
// the processor. Nothing is enqueued when validation fails.
func (g *TransferGateway) SubmitTransfer(ctx context.Context, principal string, req domain.SubmitTransferRequest) (*domain.TransferRequest, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.FromAccount == "" || req.ToAccount == "" {
		return nil, ErrInvalidAccountNumber
	}
	if req.FromAccount == req.ToAccount {
		return nil, ErrSelfTransfer
	}
	if req.FromHolder != principal {
		return nil, ErrNotAccountHolder
	}

	if g.limiter != nil && g.limitPerMinute > 0 {
		count, _, err := g.limiter.ConsumeRateLimit(ctx, "transfer_submit", principal, g.limitPerMinute, time.Minute)
		if err != nil {
			log.Printf("level=warn component=gateway msg=\"rate limiter unavailable; allowing request\" principal=%s err=%v", principal, err)
		} else if count > g.limitPerMinute {
			return nil, ErrRateLimited
		}
	}

	from, err := g.repo.GetAccount(ctx, req.FromAccount)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, store.ErrAccountNotFound
		}
		return nil, fmt.Errorf("read source account: %w", err)
	}
	if from.Holder != principal {
		return nil, ErrNotAccountHolder
	}
	if from.Balance <= req.Amount {
		return nil, store.ErrInsufficientFunds
	}

	transfer := domain.TransferRequest{
		RequestID:   uuid.New(),
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		FromHolder:  req.FromHolder,
		ToHolder:    req.ToHolder,
		Amount:      req.Amount,
		SubmittedAt: time.Now().UTC(),
	}

	publishCtx, cancel := context.WithTimeout(ctx, g.publishTimeout)
	defer cancel()

	// No retry here: a publish timeout does not imply the message was not
	// stored, so the caller gets a transient error and decides whether to
	// resubmit with a new request id.
	if err := g.producer.Publish(publishCtx, g.exchange, transferRequestedKey, transfer); err != nil {
		log.Printf("level=error component=gateway msg=\"transfer publish failed\" request_id=%s err=%v", transfer.RequestID, err)
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	log.Printf("level=info component=gateway msg=\"transfer accepted\" request_id=%s from=%s to=%s amount=%d",
		transfer.RequestID, transfer.FromAccount, transfer.ToAccount, transfer.Amount)
	return &transfer, nil
}
