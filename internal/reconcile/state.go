// Package reconcile merges cart line items with live catalog details and
// aggregates the cart total.
package reconcile

import (
	"errors"

	"github.com/imrishuroy/go-storefront-cart/internal/catalog"
	"github.com/imrishuroy/go-storefront-cart/internal/money"
)

// ErrCatalogUnavailable marks a pass where the catalog could not serve any
// lookup of the batch.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

type Phase int

const (
	Pending Phase = iota
	Resolved
	Faulted
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// EnrichedItem is a catalog item merged with the quantity held in the cart.
type EnrichedItem struct {
	catalog.Item
	Quantity int         `json:"quantity"`
	Subtotal money.Money `json:"subtotal"`
}

func enrich(it catalog.Item, qty int) EnrichedItem {
	return EnrichedItem{Item: it, Quantity: qty, Subtotal: it.Price.Mul(qty)}
}

// State is the committed result of the latest reconciliation.
//
//	Pending                 a pass is in flight, nothing committed for CartVersion yet
//	Resolved(version, items)
//	Faulted(version, err)   Items is empty
type State struct {
	Phase       Phase
	CartVersion uint64
	Items       []EnrichedItem
	// Missing lists the ids left out because their lookup failed.
	Missing []string
	Err     error
}

// Summary is the price aggregation shown next to the cart.
type Summary struct {
	ItemsTotal money.Money `json:"items_total"`
	Shipping   money.Money `json:"shipping"`
	Total      money.Money `json:"total"`
}

// Summarize computes Σ price × quantity plus the shipping fee.
func Summarize(items []EnrichedItem, shippingFee money.Money) Summary {
	itemsTotal := money.Zero
	for _, it := range items {
		itemsTotal = itemsTotal.Add(it.Price.Mul(it.Quantity))
	}
	return Summary{
		ItemsTotal: itemsTotal,
		Shipping:   shippingFee,
		Total:      itemsTotal.Add(shippingFee),
	}
}
