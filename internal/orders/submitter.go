package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-cart/internal/aws"
	"github.com/imrishuroy/go-storefront-cart/internal/checkout"
	"github.com/imrishuroy/go-storefront-cart/internal/idempotency"
	"github.com/imrishuroy/go-storefront-cart/internal/logging"
)

// ErrSubmissionInProgress is returned when another submission with the same
// idempotency key has not finished yet.
var ErrSubmissionInProgress = errors.New("submission with this idempotency key is in progress")

// Submitter persists checkouts to DynamoDB and enqueues them on SQS.
// It implements checkout.Submitter.
type Submitter struct {
	orders    *Store
	idem      *idempotency.Store
	publisher *aws.Publisher
	logger    *slog.Logger
	newID     func() string
}

var _ checkout.Submitter = (*Submitter)(nil)

func NewSubmitter(orders *Store, idem *idempotency.Store, publisher *aws.Publisher, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		orders:    orders,
		idem:      idem,
		publisher: publisher,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Submit writes the idempotency record and the order atomically, publishes
// order_placed and marks the key DONE unless the worker already has. A key already DONE replays the stored
// ack as a duplicate; a FAILED key is reclaimed and retried.
func (s *Submitter) Submit(ctx context.Context, o checkout.Order) (checkout.Ack, error) {
	orderID := s.newID()
	log := s.logger.With("idempotency_key", o.IdempotencyKey, "order_id", orderID)

	order := FromCheckout(orderID, o, s.orders.nowFunc().UTC())
	rec := s.idem.NewRecord(o.IdempotencyKey, orderID, o.SessionID)

	err := s.orders.CreateWithIdempotencyTransaction(ctx, s.idem.Table(), rec, order)
	if errors.Is(err, ErrIdempotencyConflict) {
		ack, done, rerr := s.resolveConflict(ctx, o.IdempotencyKey, order)
		if rerr != nil || done {
			return ack, rerr
		}
	} else if err != nil {
		return checkout.Ack{}, fmt.Errorf("create order: %w", err)
	}

	msg := aws.OrderPlacedMessage{
		OrderID:        orderID,
		IdempotencyKey: o.IdempotencyKey,
		SessionID:      o.SessionID,
		CorrelationID:  logging.RequestID(ctx),
	}
	if err := s.publisher.SendOrderPlaced(ctx, msg); err != nil {
		if merr := s.idem.MarkFailed(ctx, o.IdempotencyKey, fmt.Sprintf("sqs_send_failed: %v", err)); merr != nil {
			log.Error("mark idempotency failed", "error", merr)
		}
		return checkout.Ack{}, fmt.Errorf("enqueue order: %w", err)
	}

	ack := checkout.Ack{OrderID: orderID, Status: StatusPending}
	body, _ := json.Marshal(ack)
	switch err := s.idem.Acknowledge(ctx, o.IdempotencyKey, string(body), http.StatusCreated); {
	case errors.Is(err, idempotency.ErrConditionFailed):
		log.Debug("order outcome already recorded, keeping it")
	case err != nil:
		// the order is already queued; a retry with this key will see IN_PROGRESS
		log.Warn("mark idempotency done", "error", err)
	}

	log.Info("order enqueued", "items", len(order.Items))
	return ack, nil
}

// resolveConflict inspects an existing idempotency record. done reports that
// ack is final; otherwise the key was reclaimed and order has been written.
func (s *Submitter) resolveConflict(ctx context.Context, key string, order Order) (ack checkout.Ack, done bool, err error) {
	rec, err := s.idem.Get(ctx, key)
	if err != nil {
		return checkout.Ack{}, true, fmt.Errorf("idempotency check: %w", err)
	}
	if rec == nil {
		return checkout.Ack{}, true, fmt.Errorf("transaction failed without idempotency record for key %s", key)
	}

	switch rec.Status {
	case idempotency.StatusDone:
		ack = checkout.Ack{OrderID: rec.OrderID, Status: StatusPending}
		if rec.ResponseBody != "" {
			_ = json.Unmarshal([]byte(rec.ResponseBody), &ack)
		}
		ack.Duplicate = true
		return ack, true, nil
	case idempotency.StatusInProgress:
		return checkout.Ack{}, true, ErrSubmissionInProgress
	case idempotency.StatusFailed:
		if err := s.idem.Reclaim(ctx, key, order.OrderID); err != nil {
			if errors.Is(err, idempotency.ErrConditionFailed) {
				return checkout.Ack{}, true, ErrSubmissionInProgress
			}
			return checkout.Ack{}, true, err
		}
		if err := s.orders.Put(ctx, order); err != nil {
			_ = s.idem.MarkFailed(ctx, key, fmt.Sprintf("order_put_failed: %v", err))
			return checkout.Ack{}, true, err
		}
		return checkout.Ack{}, false, nil
	default:
		return checkout.Ack{}, true, fmt.Errorf("unknown idempotency status %q", rec.Status)
	}
}
