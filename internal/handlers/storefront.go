// Package handlers exposes the storefront over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-cart/internal/cart"
	"github.com/imrishuroy/go-storefront-cart/internal/catalog"
	"github.com/imrishuroy/go-storefront-cart/internal/checkout"
	"github.com/imrishuroy/go-storefront-cart/internal/logging"
	"github.com/imrishuroy/go-storefront-cart/internal/money"
	"github.com/imrishuroy/go-storefront-cart/internal/orders"
	"github.com/imrishuroy/go-storefront-cart/internal/reconcile"
	"github.com/imrishuroy/go-storefront-cart/internal/session"
	"github.com/imrishuroy/go-storefront-cart/internal/validation"
)

const (
	// SessionHeader selects the cart a request operates on.
	SessionHeader = "X-Session-Id"
	// IdempotencyHeader deduplicates checkout submissions.
	IdempotencyHeader = "Idempotency-Key"

	sessionKey = "session"
)

// Catalog lists items for the storefront listing.
type Catalog interface {
	ListItems(ctx context.Context, filters map[string]string) ([]catalog.Item, error)
}

// CheckoutService submits a session's cart.
type CheckoutService interface {
	Checkout(ctx context.Context, sessionID string, store *cart.Store, input validation.OrderFormInput, idempotencyKey string) (checkout.Ack, error)
}

// HandlerConfig groups dependencies for the storefront routes.
type HandlerConfig struct {
	Catalog     Catalog
	Sessions    *session.Registry
	Checkout    CheckoutService
	ShippingFee money.Money
	// ViewTimeout bounds the reconciliation a cart view waits for. Zero
	// means the view never waits and may report pending.
	ViewTimeout time.Duration
}

type addItemRequest struct {
	ID       string `json:"id" binding:"required"`
	Quantity int    `json:"quantity"`
}

type handler struct {
	cfg HandlerConfig
}

// RegisterStorefrontRoutes registers the listing, cart and checkout routes.
func RegisterStorefrontRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &handler{cfg: cfg}

	r.GET("/items", h.listItems)

	s := r.Group("/", h.withSession)
	s.GET("/cart", h.viewCart)
	s.POST("/cart/items", h.addItem)
	s.POST("/cart/items/:id/increment", h.increment)
	s.POST("/cart/items/:id/decrement", h.decrement)
	s.DELETE("/cart/items/:id", h.remove)
	s.POST("/checkout", h.checkout)
}

// withSession resolves the caller's session from the header. Reads and no-op
// mutations never create one; the first item added does.
func (h *handler) withSession(c *gin.Context) {
	if id := c.GetHeader(SessionHeader); id != "" {
		if s, ok := h.cfg.Sessions.Get(id); ok {
			c.Header(SessionHeader, id)
			c.Set(sessionKey, s)
		}
	}
	c.Next()
}

// ensureSession returns the caller's session, registering it on first use.
func (h *handler) ensureSession(c *gin.Context) *session.Session {
	if s, ok := currentSession(c); ok {
		return s
	}
	id := c.GetHeader(SessionHeader)
	if id == "" {
		id = session.NewID()
	}
	s := h.cfg.Sessions.GetOrCreate(id)
	c.Header(SessionHeader, id)
	c.Set(sessionKey, s)
	return s
}

func currentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	return v.(*session.Session), true
}

func (h *handler) listItems(c *gin.Context) {
	filters := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			filters[k] = v[0]
		}
	}

	items, err := h.cfg.Catalog.ListItems(c.Request.Context(), filters)
	if err != nil {
		logging.From(c).Warn("list items failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "catalog_unavailable",
			"msg":   "could not load the menu, please try again",
			"items": []listingItem{},
		})
		return
	}

	out := make([]listingItem, 0, len(items))
	for _, it := range items {
		out = append(out, newListingItem(it))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *handler) viewCart(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusOK, newCartView("", cart.NewStore().Snapshot(), reconcile.State{}, h.cfg.ShippingFee))
		return
	}
	snap := s.Cart.Snapshot()
	st := s.Reconciler.State()

	if !snap.Empty() && h.cfg.ViewTimeout > 0 && needsPass(snap, st) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.ViewTimeout)
		st, _ = s.Reconciler.Run(ctx, snap)
		cancel()
	}

	c.JSON(http.StatusOK, newCartView(s.ID, snap, st, h.cfg.ShippingFee))
}

// needsPass reports whether the committed state does not yet describe snap,
// or describes it as faulted (a reload retries the catalog).
func needsPass(snap cart.Snapshot, st reconcile.State) bool {
	return st.CartVersion != snap.Version || st.Phase != reconcile.Resolved
}

func (h *handler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_line_item", "msg": cart.ErrInvalidQuantity.Error()})
		return
	}

	s := h.ensureSession(c)
	snap, err := s.Cart.AddItem(req.ID, req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_line_item", "msg": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, newSnapshotView(s.ID, snap))
}

func (h *handler) increment(c *gin.Context) {
	h.mutate(c, func(store *cart.Store) cart.Snapshot { return store.IncrementItemQuantity(c.Param("id")) })
}

func (h *handler) decrement(c *gin.Context) {
	h.mutate(c, func(store *cart.Store) cart.Snapshot { return store.DecrementItemQuantity(c.Param("id")) })
}

func (h *handler) remove(c *gin.Context) {
	h.mutate(c, func(store *cart.Store) cart.Snapshot { return store.RemoveItem(c.Param("id")) })
}

// mutate applies fn to the caller's cart. Without a session every per-item
// mutation is a no-op on an empty cart.
func (h *handler) mutate(c *gin.Context, fn func(*cart.Store) cart.Snapshot) {
	s, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusOK, newSnapshotView("", cart.NewStore().Snapshot()))
		return
	}
	c.JSON(http.StatusOK, newSnapshotView(s.ID, fn(s.Cart)))
}

func (h *handler) checkout(c *gin.Context) {
	in, err := validation.BindForm(c)
	if err != nil {
		return // BindForm already wrote a 400
	}

	sessionID, store := "", cart.NewStore()
	if s, ok := currentSession(c); ok {
		sessionID, store = s.ID, s.Cart
	}
	ack, err := h.cfg.Checkout.Checkout(c.Request.Context(), sessionID, store, in, c.GetHeader(IdempotencyHeader))

	var ve *checkout.ValidationError
	switch {
	case err == nil:
		status := http.StatusCreated
		if ack.Duplicate {
			status = http.StatusOK
		}
		c.JSON(status, ack)
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "empty_cart", "msg": err.Error()})
	case errors.As(err, &ve):
		validation.WriteFieldErrors(c, ve.Fields)
	case errors.Is(err, orders.ErrSubmissionInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "submission_in_progress", "msg": "this order is still being processed"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "submission_failed", "msg": "could not place the order, please try again"})
	}
}
