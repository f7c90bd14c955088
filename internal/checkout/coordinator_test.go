package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-cart/internal/cart"
	"github.com/imrishuroy/go-storefront-cart/internal/logging"
	"github.com/imrishuroy/go-storefront-cart/internal/validation"
)

type countingValidator struct {
	inner FormValidator
	calls int
}

func (v *countingValidator) Validate(in validation.OrderFormInput) (validation.OrderForm, error) {
	v.calls++
	return v.inner.Validate(in)
}

type fakeSubmitter struct {
	mu     sync.Mutex
	err    error
	ack    Ack
	orders []Order
}

func (s *fakeSubmitter) Submit(_ context.Context, o Order) (Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
	if s.err != nil {
		return Ack{}, s.err
	}
	return s.ack, nil
}

func validForm() validation.OrderFormInput {
	return validation.OrderFormInput{
		PostalCode:    "01310100",
		Street:        "Av. Paulista",
		Number:        "1000",
		Neighborhood:  "Bela Vista",
		City:          "São Paulo",
		State:         "SP",
		PaymentMethod: validation.PaymentDebit,
	}
}

func filledStore(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.NewStore()
	_, err := s.AddItem("a", 2)
	require.NoError(t, err)
	_, err = s.AddItem("b", 1)
	require.NoError(t, err)
	return s
}

func newCoordinator(sub Submitter) (*Coordinator, *countingValidator) {
	v := &countingValidator{inner: validation.New()}
	return NewCoordinator(v, sub, logging.Discard()), v
}

func TestCheckout_EmptyCartSkipsValidation(t *testing.T) {
	sub := &fakeSubmitter{}
	c, v := newCoordinator(sub)

	_, err := c.Checkout(context.Background(), "s1", cart.NewStore(), validation.OrderFormInput{}, "")

	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, v.calls, "validator must not run for an empty cart")
	assert.Empty(t, sub.orders)
}

func TestCheckout_InvalidForm(t *testing.T) {
	sub := &fakeSubmitter{}
	c, _ := newCoordinator(sub)
	store := filledStore(t)

	in := validForm()
	in.City = ""
	_, err := c.Checkout(context.Background(), "s1", store, in, "")

	require.ErrorIs(t, err, ErrInvalidForm)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"city"}, ve.Fields.Fields())
	assert.Empty(t, sub.orders)
	assert.Equal(t, 2, store.Len(), "cart must be untouched")
}

func TestCheckout_SubmissionFailureKeepsCart(t *testing.T) {
	boom := errors.New("queue down")
	sub := &fakeSubmitter{err: boom}
	c, _ := newCoordinator(sub)
	store := filledStore(t)
	before := store.Snapshot()

	_, err := c.Checkout(context.Background(), "s1", store, validForm(), "key-1")

	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, store.Snapshot())
	assert.Len(t, sub.orders, 1, "no retry")
}

func TestCheckout_SuccessClearsCart(t *testing.T) {
	sub := &fakeSubmitter{ack: Ack{OrderID: "o-1", Status: "PENDING"}}
	c, _ := newCoordinator(sub)
	store := filledStore(t)

	ack, err := c.Checkout(context.Background(), "s1", store, validForm(), "key-1")

	require.NoError(t, err)
	assert.Equal(t, "o-1", ack.OrderID)
	assert.Equal(t, 0, store.Len())

	require.Len(t, sub.orders, 1)
	got := sub.orders[0]
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, []cart.LineItem{{ID: "a", Quantity: 2}, {ID: "b", Quantity: 1}}, got.Items)
	assert.Equal(t, validation.PaymentDebit, got.Form.PaymentMethod)
}

func TestCheckout_GeneratesIdempotencyKey(t *testing.T) {
	sub := &fakeSubmitter{ack: Ack{OrderID: "o-2", Status: "PENDING"}}
	c, _ := newCoordinator(sub)

	_, err := c.Checkout(context.Background(), "s1", filledStore(t), validForm(), "")
	require.NoError(t, err)

	require.Len(t, sub.orders, 1)
	assert.NotEmpty(t, sub.orders[0].IdempotencyKey)
}
