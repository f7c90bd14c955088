package orders

import (
	"time"

	"github.com/imrishuroy/go-storefront-cart/internal/checkout"
)

// Order statuses
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Line is one cart line as persisted with the order.
type Line struct {
	ItemID   string `dynamodbav:"item_id" json:"item_id"`
	Quantity int    `dynamodbav:"quantity" json:"quantity"`
}

// Address is the delivery address captured by the order form.
type Address struct {
	PostalCode   string `dynamodbav:"postal_code"`
	Street       string `dynamodbav:"street"`
	Number       string `dynamodbav:"number"`
	Complement   string `dynamodbav:"complement,omitempty"`
	Neighborhood string `dynamodbav:"neighborhood"`
	City         string `dynamodbav:"city"`
	State        string `dynamodbav:"state"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID        string    `dynamodbav:"order_id"` // PK
	IdempotencyKey string    `dynamodbav:"idempotency_key"`
	SessionID      string    `dynamodbav:"session_id,omitempty"`
	Status         string    `dynamodbav:"status"` // PENDING | PROCESSING | COMPLETED | FAILED
	PaymentMethod  string    `dynamodbav:"payment_method"`
	Address        Address   `dynamodbav:"address"`
	Items          []Line    `dynamodbav:"items"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	Attempts       int       `dynamodbav:"attempts,omitempty"`
}

// FromCheckout builds a PENDING order record for a submitted checkout.
func FromCheckout(orderID string, o checkout.Order, now time.Time) Order {
	lines := make([]Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, Line{ItemID: it.ID, Quantity: it.Quantity})
	}
	f := o.Form
	return Order{
		OrderID:        orderID,
		IdempotencyKey: o.IdempotencyKey,
		SessionID:      o.SessionID,
		Status:         StatusPending,
		PaymentMethod:  f.PaymentMethod,
		Address: Address{
			PostalCode:   f.PostalCode,
			Street:       f.Street,
			Number:       f.Number,
			Complement:   f.Complement,
			Neighborhood: f.Neighborhood,
			City:         f.City,
			State:        f.State,
		},
		Items:     lines,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
