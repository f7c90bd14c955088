package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when the catalog has no item for an id.
	ErrNotFound = errors.New("catalog: item not found")
	// ErrUnavailable is returned when the catalog cannot be reached or
	// answers with a server error.
	ErrUnavailable = errors.New("catalog: service unavailable")
)

// Client talks to the catalog service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit paces outgoing requests.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient returns a client for the catalog rooted at baseURL, e.g.
// "http://localhost:3000".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 0),
		tracer:  otel.Tracer("storefront/catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListItems fetches the item listing. filters are forwarded as query parameters.
func (c *Client) ListItems(ctx context.Context, filters map[string]string) ([]Item, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.list_items")
	defer span.End()

	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	endpoint := c.baseURL + "/items"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var raw []json.RawMessage
	if err := c.get(ctx, endpoint, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Item{}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list items: %w", err)
	}

	// One malformed entry must not hide the rest of the listing.
	items := make([]Item, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var it Item
		if err := json.Unmarshal(r, &it); err != nil {
			skipped++
			continue
		}
		items = append(items, it)
	}
	span.SetAttributes(
		attribute.Int("item.count", len(items)),
		attribute.Int("item.skipped", skipped),
	)
	return items, nil
}

// GetItem fetches a single item. It returns ErrNotFound when the catalog has
// no such item.
func (c *Client) GetItem(ctx context.Context, id string) (Item, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.get_item",
		trace.WithAttributes(attribute.String("item.id", id)),
	)
	defer span.End()

	var item Item
	if err := c.get(ctx, c.baseURL+"/items/"+url.PathEscape(id), &item); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// json-server style backends answer 200 with an empty body or null for
	// unknown ids.
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil || len(raw) == 0 || string(raw) == "null" {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
