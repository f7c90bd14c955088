package handlers

import (
	"github.com/imrishuroy/go-storefront-cart/internal/cart"
	"github.com/imrishuroy/go-storefront-cart/internal/catalog"
	"github.com/imrishuroy/go-storefront-cart/internal/money"
	"github.com/imrishuroy/go-storefront-cart/internal/reconcile"
)

// Cart view statuses.
const (
	StatusPending = "pending"
	StatusError   = "error"
	StatusEmpty   = "empty"
	StatusReady   = "ready"
)

const (
	emptyCartNotice     = "your cart is empty"
	catalogErrorMessage = "could not load the items in your cart, please try again"
)

type listingItem struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Tags           []string    `json:"tags"`
	Price          money.Money `json:"price"`
	PriceFormatted string      `json:"price_formatted"`
	Image          string      `json:"image"`
}

func newListingItem(it catalog.Item) listingItem {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return listingItem{
		ID:             it.ID,
		Name:           it.Name,
		Description:    it.Description,
		Tags:           tags,
		Price:          it.Price,
		PriceFormatted: it.Price.Format(),
		Image:          it.ImageRef,
	}
}

type cartLine struct {
	listingItem
	Quantity          int         `json:"quantity"`
	Subtotal          money.Money `json:"subtotal"`
	SubtotalFormatted string      `json:"subtotal_formatted"`
}

type summaryView struct {
	ItemsTotal          money.Money `json:"items_total"`
	ItemsTotalFormatted string      `json:"items_total_formatted"`
	Shipping            money.Money `json:"shipping"`
	ShippingFormatted   string      `json:"shipping_formatted"`
	Total               money.Money `json:"total"`
	TotalFormatted      string      `json:"total_formatted"`
}

type cartView struct {
	SessionID string       `json:"session_id"`
	Version   uint64       `json:"version"`
	Status    string       `json:"status"`
	Message   string       `json:"message,omitempty"`
	Items     []cartLine   `json:"items"`
	Missing   []string     `json:"missing,omitempty"`
	Summary   *summaryView `json:"summary,omitempty"`
}

// newCartView renders the reconciled state of snap. A state committed for a
// different version than snap is shown as pending.
func newCartView(sessionID string, snap cart.Snapshot, st reconcile.State, fee money.Money) cartView {
	v := cartView{
		SessionID: sessionID,
		Version:   snap.Version,
		Items:     []cartLine{},
	}

	switch {
	case snap.Empty():
		v.Status = StatusEmpty
		v.Message = emptyCartNotice
		return v
	case st.CartVersion != snap.Version || st.Phase == reconcile.Pending:
		v.Status = StatusPending
		return v
	case st.Phase == reconcile.Faulted:
		v.Status = StatusError
		v.Message = catalogErrorMessage
		return v
	}

	v.Status = StatusReady
	v.Missing = st.Missing
	for _, it := range st.Items {
		v.Items = append(v.Items, cartLine{
			listingItem:       newListingItem(it.Item),
			Quantity:          it.Quantity,
			Subtotal:          it.Subtotal,
			SubtotalFormatted: it.Subtotal.FormatCurrency(),
		})
	}
	sum := reconcile.Summarize(st.Items, fee)
	v.Summary = &summaryView{
		ItemsTotal:          sum.ItemsTotal,
		ItemsTotalFormatted: sum.ItemsTotal.FormatCurrency(),
		Shipping:            sum.Shipping,
		ShippingFormatted:   sum.Shipping.FormatCurrency(),
		Total:               sum.Total,
		TotalFormatted:      sum.Total.FormatCurrency(),
	}
	return v
}

type snapshotView struct {
	SessionID string          `json:"session_id"`
	Version   uint64          `json:"version"`
	Items     []cart.LineItem `json:"items"`
}

func newSnapshotView(sessionID string, snap cart.Snapshot) snapshotView {
	items := snap.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return snapshotView{SessionID: sessionID, Version: snap.Version, Items: items}
}
