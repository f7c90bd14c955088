package checkout

import (
	"context"

	"github.com/imrishuroy/go-storefront-cart/internal/cart"
	"github.com/imrishuroy/go-storefront-cart/internal/validation"
)

// Order is what gets handed to the submission collaborator.
type Order struct {
	IdempotencyKey string
	SessionID      string
	Form           validation.OrderForm
	Items          []cart.LineItem
}

// Ack is the submission collaborator's acknowledgement.
type Ack struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Submitter persists and enqueues an order.
type Submitter interface {
	Submit(ctx context.Context, o Order) (Ack, error)
}

// FormValidator checks the delivery/payment form.
type FormValidator interface {
	Validate(in validation.OrderFormInput) (validation.OrderForm, error)
}
