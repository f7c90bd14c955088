// Package checkout turns a session's cart and a submitted form into an order.
package checkout

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-cart/internal/cart"
	"github.com/imrishuroy/go-storefront-cart/internal/metrics"
	"github.com/imrishuroy/go-storefront-cart/internal/validation"
)

// Coordinator runs the checkout sequence: empty-cart guard, form validation,
// submission and, on acknowledgement, clearing the cart.
type Coordinator struct {
	validator FormValidator
	submitter Submitter
	logger    *slog.Logger
}

// NewCoordinator wires a Coordinator. A nil logger falls back to slog.Default.
func NewCoordinator(v FormValidator, s Submitter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{validator: v, submitter: s, logger: logger}
}

// Checkout submits the cart held by store. An empty idempotencyKey gets a
// fresh one, so only clients that resend the header are deduplicated.
// The cart is cleared only after the submitter acknowledges.
func (c *Coordinator) Checkout(ctx context.Context, sessionID string, store *cart.Store, input validation.OrderFormInput, idempotencyKey string) (Ack, error) {
	log := c.logger.With("session_id", sessionID)

	snap := store.Snapshot()
	if snap.Empty() {
		metrics.Checkouts.WithLabelValues("empty_cart").Inc()
		return Ack{}, ErrEmptyCart
	}

	form, err := c.validator.Validate(input)
	if err != nil {
		metrics.Checkouts.WithLabelValues("invalid_form").Inc()
		var fe validation.FieldErrors
		if errors.As(err, &fe) {
			return Ack{}, &ValidationError{Fields: fe}
		}
		return Ack{}, &ValidationError{Fields: validation.FieldErrors{"form": err.Error()}}
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	order := Order{
		IdempotencyKey: idempotencyKey,
		SessionID:      sessionID,
		Form:           form,
		Items:          snap.Items,
	}

	ack, err := c.submitter.Submit(ctx, order)
	if err != nil {
		metrics.Checkouts.WithLabelValues("submission_failed").Inc()
		log.Warn("order submission failed", "idempotency_key", idempotencyKey, "error", err)
		return Ack{}, &SubmissionError{Err: err}
	}

	store.Checkout()
	if ack.Duplicate {
		metrics.Checkouts.WithLabelValues("duplicate").Inc()
	} else {
		metrics.Checkouts.WithLabelValues("submitted").Inc()
	}
	log.Info("order submitted", "order_id", ack.OrderID, "items", len(order.Items), "duplicate", ack.Duplicate)
	return ack, nil
}
