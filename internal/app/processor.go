/**
 * @description
 * This file contains the transfer processor: the consumer side of the
 * asynchronous transfer pipeline. Each queue delivery moves through
 * RECEIVED -> VALIDATED -> APPLIED -> ACKNOWLEDGED, or terminates as
 * REJECTED and is dead-lettered. The queue delivers at-least-once, so the
 * store's request-id gate is what makes the balance effect exactly-once.
 *
 * The submitter already received an Accepted response by the time this code
 * runs, so apply-time failures are never surfaced to them; they are
 * persisted to rejected_transfers and published on the transfer.rejected
 * routing key for operator follow-up.
 *
 * @dependencies
 * - context, encoding/json, errors, log, time: Standard Go libraries.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Dead-letter publishing.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/ledger-service/internal/domain"
	"github.com/lumenbank/ledger-service/internal/store"
	"github.com/lumenbank/ledger-service/pkg/rabbitmq"
)

const transferRejectedKey = "transfer.rejected"

// TransferProcessor applies dequeued transfer requests to the account store.
type TransferProcessor struct {
	repo     store.Repository
	producer rabbitmq.Publisher
	exchange string
}

// NewTransferProcessor creates a processor that dead-letters to the given exchange.
func NewTransferProcessor(repo store.Repository, producer rabbitmq.Publisher, exchange string) *TransferProcessor {
	return &TransferProcessor{repo: repo, producer: producer, exchange: exchange}
}

// HandleMessage consumes one delivery. The return value drives the ack
// protocol: true removes the message from the queue, false re-queues it.
// True is returned only once the outcome is durable — either the store
// transaction committed, the request was already applied, or the rejection
// has been recorded.
func (p *TransferProcessor) HandleMessage(body []byte) bool {
	var req domain.TransferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Printf("level=warn component=processor msg=\"malformed transfer payload; dropping\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if req.RequestID == uuid.Nil || req.Amount <= 0 || req.FromAccount == "" || req.ToAccount == "" || req.FromAccount == req.ToAccount {
		// Invalid content is terminal; re-queuing could never fix it.
		log.Printf("level=warn component=processor msg=\"invalid transfer request; dead-lettering\" request_id=%s", req.RequestID)
		p.deadLetter(ctx, req, domain.RejectReasonMalformed)
		return true
	}

	err := p.repo.ApplyTransfer(ctx, req)
	switch {
	case err == nil:
		log.Printf("level=info component=processor msg=\"transfer applied\" request_id=%s from=%s to=%s amount=%d",
			req.RequestID, req.FromAccount, req.ToAccount, req.Amount)
		return true

	case errors.Is(err, store.ErrTransferAlreadyApplied):
		// Redelivery of an already-applied request: acknowledge without
		// re-applying. This is the idempotency path.
		log.Printf("level=info component=processor msg=\"duplicate delivery acknowledged\" request_id=%s", req.RequestID)
		return true

	case errors.Is(err, store.ErrInsufficientFunds):
		// The gateway's advisory check passed on a stale balance; funds were
		// spent in the meantime. Terminal rejection, no partial mutation.
		log.Printf("level=warn component=processor msg=\"transfer rejected\" request_id=%s reason=%s", req.RequestID, domain.RejectReasonInsufficientFunds)
		return p.deadLetter(ctx, req, domain.RejectReasonInsufficientFunds)

	case errors.Is(err, store.ErrAccountNotFound):
		log.Printf("level=warn component=processor msg=\"transfer rejected\" request_id=%s reason=%s", req.RequestID, domain.RejectReasonUnknownAccount)
		return p.deadLetter(ctx, req, domain.RejectReasonUnknownAccount)

	default:
		// Transient store failure: re-queue and let broker redelivery retry
		// against fresh state.
		log.Printf("level=error component=processor msg=\"transfer apply failed; re-queuing\" request_id=%s err=%v", req.RequestID, err)
		return false
	}
}

// deadLetter records the terminal rejection durably, then publishes it for
// operator tooling. The record is the source of truth; a failed publish is
// logged but does not resurrect the message.
func (p *TransferProcessor) deadLetter(ctx context.Context, req domain.TransferRequest, reason string) bool {
	rejected := domain.RejectedTransfer{
		RequestID:   req.RequestID,
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		Amount:      req.Amount,
		Reason:      reason,
		RejectedAt:  time.Now().UTC(),
	}

	if req.RequestID != uuid.Nil {
		if err := p.repo.RecordRejectedTransfer(ctx, rejected); err != nil {
			log.Printf("level=error component=processor msg=\"rejection record failed; re-queuing\" request_id=%s err=%v", req.RequestID, err)
			return false
		}
	}

	if p.producer != nil {
		if err := p.producer.Publish(ctx, p.exchange, transferRejectedKey, rejected); err != nil {
			log.Printf("level=warn component=processor msg=\"rejection event publish failed\" request_id=%s err=%v", req.RequestID, err)
		}
	}
	return true
}
