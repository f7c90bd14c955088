package validation

import (
	"bytes"
	"encoding/json"
)

// Payment methods accepted at delivery.
const (
	PaymentCredit = "credit"
	PaymentDebit  = "debit"
	PaymentCash   = "cash"
)

// OrderFormInput is the checkout form as submitted by the shopper.
type OrderFormInput struct {
	PostalCode    PostalCode `json:"postalCode" validate:"required,number"`
	Street        string     `json:"street" validate:"required"`
	Number        string     `json:"number" validate:"required"`
	Complement    string     `json:"complement,omitempty"` // optional
	Neighborhood  string     `json:"neighborhood" validate:"required"`
	City          string     `json:"city" validate:"required"`
	State         string     `json:"state" validate:"required"` // two-letter code by convention, not enforced
	PaymentMethod string     `json:"paymentMethod" validate:"required,oneof=credit debit cash"`
}

// OrderForm is a validated delivery address and payment method. Only
// Validate produces one.
type OrderForm struct {
	PostalCode    string `json:"postalCode"`
	Street        string `json:"street"`
	Number        string `json:"number"`
	Complement    string `json:"complement,omitempty"`
	Neighborhood  string `json:"neighborhood"`
	City          string `json:"city"`
	State         string `json:"state"`
	PaymentMethod string `json:"paymentMethod"`
}

// PostalCode accepts the code as a JSON string or a JSON number; browser
// forms commonly send it as the latter. Any other scalar keeps its literal
// text so the numeric rule reports it against the field.
type PostalCode string

func (p *PostalCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*p = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PostalCode(s)
		return nil
	}
	*p = PostalCode(b)
	return nil
}
