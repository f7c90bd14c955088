package checkout

import (
	"errors"
	"fmt"

	"github.com/imrishuroy/go-storefront-cart/internal/validation"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with no line items.
	ErrEmptyCart = errors.New("at least one item is required in the cart")
	// ErrInvalidForm matches any *ValidationError.
	ErrInvalidForm = errors.New("invalid order form")
	// ErrSubmissionFailed matches any *SubmissionError.
	ErrSubmissionFailed = errors.New("order submission failed")
)

// ValidationError carries the per-field messages of a rejected form.
type ValidationError struct {
	Fields validation.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidForm, e.Fields.Error())
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidForm }

func (e *ValidationError) Unwrap() error { return e.Fields }

// SubmissionError wraps whatever the submitter returned.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSubmissionFailed, e.Err)
}

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmissionFailed }

func (e *SubmissionError) Unwrap() error { return e.Err }
