// Package catalog reads purchasable items from the external catalog service
// and normalizes its payloads into Item.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/imrishuroy/go-storefront-cart/internal/money"
)

var ErrMalformedItem = errors.New("catalog: malformed item payload")

// Item is the canonical catalog entry. The cart only ever refers to it by ID.
type Item struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	Price       money.Money `json:"price"`
	ImageRef    string      `json:"image"`
}

// PlaceholderImage is the image reference used when the catalog has none.
func PlaceholderImage(id string) string {
	return "/assets/items/" + id + ".png"
}

// Field aliases seen in catalog payloads, preferred name first.
var (
	idKeys          = []string{"id", "_id"}
	nameKeys        = []string{"name", "nome", "title"}
	descriptionKeys = []string{"description", "descricao"}
	tagKeys         = []string{"tags", "tag"}
	priceKeys       = []string{"price", "preco"}
	imageKeys       = []string{"image", "imageRef", "image_url"}
)

// UnmarshalJSON accepts the catalog's inconsistent shapes and fills defaults
// for missing optional fields.
func (it *Item) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}

	id := decodeID(pick(raw, idKeys))
	if id == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedItem)
	}

	out := Item{
		ID:          id,
		Name:        decodeString(pick(raw, nameKeys)),
		Description: decodeString(pick(raw, descriptionKeys)),
		Tags:        decodeTags(pick(raw, tagKeys)),
		Price:       decodePrice(pick(raw, priceKeys)),
		ImageRef:    decodeString(pick(raw, imageKeys)),
	}
	if out.ImageRef == "" {
		out.ImageRef = PlaceholderImage(id)
	}
	*it = out
	return nil
}

func pick(raw map[string]json.RawMessage, keys []string) json.RawMessage {
	for _, k := range keys {
		if v, ok := raw[k]; ok && string(v) != "null" {
			return v
		}
	}
	return nil
}

func decodeID(b json.RawMessage) string {
	if b == nil {
		return ""
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

func decodeString(b json.RawMessage) string {
	if b == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func decodePrice(b json.RawMessage) money.Money {
	if b == nil {
		return money.Zero
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return money.Zero
	}
	return money.Parse(v)
}

// decodeTags accepts a list of strings, a single string or nothing, and
// returns a de-duplicated list in first-seen order.
func decodeTags(b json.RawMessage) []string {
	tags := []string{}
	if b == nil {
		return tags
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return tags
	}

	var raw []string
	switch t := v.(type) {
	case string:
		raw = []string{t}
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	seen := make(map[string]bool, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		tags = append(tags, s)
	}
	return tags
}
