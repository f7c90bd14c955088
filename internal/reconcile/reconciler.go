package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-storefront-cart/internal/cart"
	"github.com/imrishuroy/go-storefront-cart/internal/catalog"
	"github.com/imrishuroy/go-storefront-cart/internal/metrics"
)

// Lookup fetches one catalog item by id.
type Lookup interface {
	GetItem(ctx context.Context, id string) (catalog.Item, error)
}

// Reconciler keeps the enriched view of one cart. Passes are keyed by the
// cart snapshot version; only the most recently started pass may commit.
type Reconciler struct {
	lookup Lookup
	logger *slog.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	token    uint64
	latest   uint64
	cancel   context.CancelFunc
	inflight chan struct{} // closed when the running pass commits or is abandoned
	state    State
	changed  chan struct{}
}

func New(lookup Lookup, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		lookup:  lookup,
		logger:  logger,
		tracer:  otel.Tracer("storefront/reconcile"),
		state:   State{Phase: Resolved, Items: []EnrichedItem{}},
		changed: make(chan struct{}),
	}
}

// State returns the last committed state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Trigger starts a pass for snap in the background.
func (r *Reconciler) Trigger(snap cart.Snapshot) {
	go r.Run(context.Background(), snap)
}

// Run reconciles snap against the catalog. It returns the committed state and
// whether this call was the one that committed it. A pass started for an older
// snapshot than one already seen, or superseded by a later pass, commits nothing.
// A call for the version already being reconciled joins the running pass
// instead of restarting it, and takes over if that pass is abandoned.
func (r *Reconciler) Run(ctx context.Context, snap cart.Snapshot) (State, bool) {
	for {
		passCtx, token, running, ok := r.begin(ctx, snap)
		if !ok {
			metrics.ReconcilePasses.WithLabelValues("stale").Inc()
			return r.State(), false
		}
		if running == nil {
			return r.run(passCtx, token, snap)
		}

		select {
		case <-running:
		case <-ctx.Done():
			return r.State(), false
		}
		if st := r.State(); st.CartVersion != snap.Version || st.Phase != Pending {
			return st, false
		}
	}
}

func (r *Reconciler) run(ctx context.Context, token uint64, snap cart.Snapshot) (State, bool) {
	ctx, span := r.tracer.Start(ctx, "reconcile.pass",
		trace.WithAttributes(
			attribute.Int64("cart.version", int64(snap.Version)),
			attribute.Int("cart.items", len(snap.Items)),
		),
	)
	defer span.End()

	next, err := r.pass(ctx, snap)
	if err != nil {
		// Cancelled, either by a newer pass or by the caller: nothing to commit.
		r.abandon(token)
		span.SetAttributes(attribute.String("reconcile.outcome", "stale"))
		metrics.ReconcilePasses.WithLabelValues("stale").Inc()
		return r.State(), false
	}

	committed := r.commit(token, next)
	outcome := next.Phase.String()
	if !committed {
		outcome = "stale"
	}
	span.SetAttributes(attribute.String("reconcile.outcome", outcome))
	metrics.ReconcilePasses.WithLabelValues(outcome).Inc()
	return r.State(), committed
}

// Wait blocks until a state is committed after the call or ctx is done.
func (r *Reconciler) Wait(ctx context.Context) (State, error) {
	r.mu.Lock()
	ch := r.changed
	r.mu.Unlock()

	select {
	case <-ch:
		return r.State(), nil
	case <-ctx.Done():
		return r.State(), ctx.Err()
	}
}

// begin registers a pass for snap. When a pass for the same version is already
// running it returns that pass's done channel and starts nothing.
func (r *Reconciler) begin(ctx context.Context, snap cart.Snapshot) (context.Context, uint64, <-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.Version < r.latest {
		return ctx, 0, nil, false
	}
	if r.inflight != nil && snap.Version == r.latest {
		return ctx, 0, r.inflight, true
	}
	r.stop()
	ctx, cancel := context.WithCancel(ctx)
	r.token++
	r.latest = snap.Version
	r.cancel = cancel
	r.inflight = make(chan struct{})
	if r.state.CartVersion != snap.Version || r.state.Phase == Faulted {
		r.state = State{Phase: Pending, CartVersion: snap.Version, Items: []EnrichedItem{}}
	}
	return ctx, r.token, nil, true
}

func (r *Reconciler) commit(token uint64, next State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token != r.token {
		return false
	}
	r.stop()
	r.state = next
	close(r.changed)
	r.changed = make(chan struct{})
	return true
}

func (r *Reconciler) abandon(token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token == r.token {
		r.stop()
	}
}

// stop cancels the running pass and releases anyone joined to it. r.mu held.
func (r *Reconciler) stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.inflight != nil {
		close(r.inflight)
		r.inflight = nil
	}
}

type slot struct {
	item catalog.Item
	err  error
}

// pass runs one lookup per line item concurrently. Every goroutine writes only
// its own slot; results are merged after the join.
func (r *Reconciler) pass(ctx context.Context, snap cart.Snapshot) (State, error) {
	if snap.Empty() {
		return State{Phase: Resolved, CartVersion: snap.Version, Items: []EnrichedItem{}}, nil
	}

	slots := make([]slot, len(snap.Items))
	var g errgroup.Group
	for i, li := range snap.Items {
		i, li := i, li
		g.Go(func() error {
			it, err := r.lookup.GetItem(ctx, li.ID)
			slots[i] = slot{item: it, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	items := make([]EnrichedItem, 0, len(slots))
	missing := []string{}
	unavailable := 0
	for i, s := range slots {
		id := snap.Items[i].ID
		if s.err != nil {
			if errors.Is(s.err, catalog.ErrUnavailable) {
				unavailable++
			}
			missing = append(missing, id)
			metrics.CatalogLookupMisses.Inc()
			r.logger.Warn("cart item excluded from reconciliation",
				"item_id", id,
				"cart_version", snap.Version,
				"error", s.err,
			)
			continue
		}
		items = append(items, enrich(s.item, snap.Items[i].Quantity))
	}

	if unavailable == len(slots) {
		r.logger.Error("catalog unavailable for the whole cart",
			"cart_version", snap.Version,
			"items", len(slots),
		)
		return State{
			Phase:       Faulted,
			CartVersion: snap.Version,
			Items:       []EnrichedItem{},
			Missing:     missing,
			Err:         ErrCatalogUnavailable,
		}, nil
	}

	return State{Phase: Resolved, CartVersion: snap.Version, Items: items, Missing: missing}, nil
}
