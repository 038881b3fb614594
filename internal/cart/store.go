// Package cart holds the per-session cart state engine. A Store keeps the
// promotional gift in sync after every mutation and flushes to a persistence
// sink on a best-effort basis; the in-memory state is authoritative.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nainu25/ELEMENT-01/internal/domain"
	"github.com/nainu25/ELEMENT-01/internal/repository"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
	"github.com/nainu25/ELEMENT-01/pkg/logger"
)

const defaultFlushTimeout = 3 * time.Second

// Op names a cart mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update_quantity"
	OpToggle Op = "toggle"
	OpClear  Op = "clear"
	// OpSettle removes the lines a committed checkout paid for.
	OpSettle Op = "settle"
)

// Change is delivered to listeners after each mutation.
type Change struct {
	SessionID  string
	Op         Op
	State      domain.CartState
	Transition domain.Transition
}

// Listener observes committed mutations.
type Listener func(ctx context.Context, c Change)

// Option configures a Store.
type Option func(*Store)

// WithSink sets the persistence sink. Without one the store is memory-only.
func WithSink(sink repository.CartStateRepository) Option {
	return func(s *Store) { s.sink = sink }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithFlushTimeout bounds each save to the sink.
func WithFlushTimeout(d time.Duration) Option {
	return func(s *Store) { s.flushTimeout = d }
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns one session's CartState. All methods are safe for concurrent
// use; each mutation, including its sync, flush and listener calls, runs to
// completion before the next one starts.
type Store struct {
	mu     sync.Mutex
	state  domain.CartState
	loaded bool
	// unreadable is set after a failed load; flushes wait for the next
	// successful read. dirty marks mutations made in the meantime.
	unreadable bool
	dirty      bool

	sessionID    string
	promo        domain.Promotion
	sink         repository.CartStateRepository
	logger       *slog.Logger
	flushTimeout time.Duration
	now          func() time.Time

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// NewStore creates an empty store for sessionID.
func NewStore(sessionID string, promo domain.Promotion, opts ...Option) *Store {
	s := &Store{
		state:        domain.CartState{Items: []domain.LineItem{}},
		sessionID:    sessionID,
		promo:        promo,
		logger:       slog.Default(),
		flushTimeout: defaultFlushTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		listeners:    make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.loaded = true
	}
	return s
}

// SessionID returns the owning session.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Load reads the persisted cart until a read succeeds. A missing cart
// leaves the store empty. A failed read is logged, never returned: the store
// serves an empty cart and skips flushing so the saved cart is not
// overwritten, and the next Load retries. Lines added in the meantime are
// merged onto the persisted cart once it is read.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}

	state, err := s.sink.Get(ctx, s.sessionID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		s.loaded = true
		s.unreadable = false
		if s.dirty {
			s.dirty = false
			s.flush(ctx, s.state.Clone())
		}
		return
	case err != nil:
		s.unreadable = true
		sinkFailures.WithLabelValues("load").Inc()
		s.log(ctx).Warn("failed to load cart state, serving in-memory cart",
			slog.String("session_id", s.sessionID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.loaded = true
	s.unreadable = false

	loaded := state.Clone()
	items := loaded.Items
	if s.dirty {
		items = append(items, s.state.Items...)
		loaded.IsOpen = s.state.IsOpen
		loaded.UpdatedAt = s.state.UpdatedAt
	}
	loaded.Items, _ = s.promo.Sync(normalize(items, s.promo))
	s.state = loaded

	if s.dirty {
		s.dirty = false
		s.flush(ctx, s.state.Clone())
	}
}

// Subscribe registers l and returns a function that removes it. Listeners
// run synchronously under the store lock and must not call back into it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

// AddItem increments the line for p or appends it with quantity 1. Adding to
// an empty cart opens the panel. The gift is owned by the promotion, so
// adding it is a no-op.
func (s *Store) AddItem(ctx context.Context, p domain.Product) domain.CartState {
	if p.ID == s.promo.Gift.ID {
		return s.Snapshot()
	}
	return s.mutate(ctx, OpAdd, true, func(st *domain.CartState) {
		if len(st.Items) == 0 {
			st.IsOpen = true
		}
		if i := domain.FindItemIndex(st.Items, p.ID); i >= 0 {
			st.Items[i].Quantity++
			return
		}
		st.Items = append(st.Items, domain.NewLineItem(p, 1))
	})
}

// RemoveItem deletes the line for productID. Absent IDs are a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) domain.CartState {
	return s.mutate(ctx, OpRemove, true, func(st *domain.CartState) {
		if i := domain.FindItemIndex(st.Items, productID); i >= 0 {
			st.Items = append(st.Items[:i], st.Items[i+1:]...)
		}
	})
}

// UpdateQuantity sets the line's quantity to max(1, quantity). Absent IDs
// and the gift, whose quantity is fixed at 1, are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) domain.CartState {
	if productID == s.promo.Gift.ID {
		return s.Snapshot()
	}
	return s.mutate(ctx, OpUpdate, true, func(st *domain.CartState) {
		if i := domain.FindItemIndex(st.Items, productID); i >= 0 {
			st.Items[i].Quantity = max(1, quantity)
		}
	})
}

// ToggleCart sets the panel visibility to *open, or flips it when open is nil.
func (s *Store) ToggleCart(ctx context.Context, open *bool) domain.CartState {
	return s.mutate(ctx, OpToggle, false, func(st *domain.CartState) {
		if open != nil {
			st.IsOpen = *open
			return
		}
		st.IsOpen = !st.IsOpen
	})
}

// ClearCart removes every line, the gift included.
func (s *Store) ClearCart(ctx context.Context) domain.CartState {
	return s.mutate(ctx, OpClear, true, func(st *domain.CartState) {
		st.Items = []domain.LineItem{}
	})
}

// SettleCheckout removes what a committed checkout paid for: each paid line's
// quantity is subtracted from the matching cart line, and lines that reach
// zero are dropped. Anything added after the checkout snapshot was taken
// stays in the cart. With no concurrent change the cart ends up empty.
func (s *Store) SettleCheckout(ctx context.Context, paid []domain.LineItem) domain.CartState {
	return s.mutate(ctx, OpSettle, true, func(st *domain.CartState) {
		remaining := make([]domain.LineItem, 0, len(st.Items))
		for _, item := range st.Items {
			if i := domain.FindItemIndex(paid, item.ID); i >= 0 && !s.promo.IsGift(item) {
				item.Quantity -= paid[i].Quantity
				if item.Quantity <= 0 {
					continue
				}
			}
			remaining = append(remaining, item)
		}
		st.Items = remaining
	})
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Items returns a copy of the current line items.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneItems(s.state.Items)
}

// Subtotal sums every line, the gift included.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Subtotal(s.state.Items)
}

// IsEligibleForPromotion reports whether the non-gift subtotal is above the
// threshold.
func (s *Store) IsEligibleForPromotion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promo.Eligible(s.state.Items)
}

// ItemCount sums quantities over every line.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ItemCount(s.state.Items)
}

// LineCount returns the number of distinct lines.
func (s *Store) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Items)
}

// IsOpen reports the panel visibility flag.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsOpen
}

// Promotion returns the store's gift rule.
func (s *Store) Promotion() domain.Promotion {
	return s.promo
}

func (s *Store) mutate(ctx context.Context, op Op, resync bool, fn func(*domain.CartState)) domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)

	transition := domain.Unchanged
	if resync {
		s.state.Items, transition = s.promo.Sync(s.state.Items)
	}
	s.state.UpdatedAt = s.now()

	operationsTotal.WithLabelValues(string(op)).Inc()
	if transition != domain.Unchanged {
		promotionTransitions.WithLabelValues(transition.String()).Inc()
		s.log(ctx).Debug("promotional item synced",
			slog.String("session_id", s.sessionID),
			slog.String("transition", transition.String()),
		)
	}

	snapshot := s.state.Clone()
	if s.unreadable {
		s.dirty = true
	} else {
		s.flush(ctx, snapshot)
	}
	s.notify(ctx, Change{SessionID: s.sessionID, Op: op, State: snapshot, Transition: transition})
	return snapshot
}

// flush saves state to the sink. Failures are logged and counted only.
func (s *Store) flush(ctx context.Context, state domain.CartState) {
	if s.sink == nil {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flushTimeout)
	defer cancel()

	if err := s.sink.Save(flushCtx, s.sessionID, &state); err != nil {
		sinkFailures.WithLabelValues("save").Inc()
		s.log(ctx).Warn("failed to persist cart state",
			slog.String("session_id", s.sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Store) notify(ctx context.Context, c Change) {
	s.listenersMu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenersMu.Unlock()

	for _, l := range ls {
		c.State = c.State.Clone()
		l(ctx, c)
	}
}

func (s *Store) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// normalize repairs persisted items: duplicate IDs are merged, real lines are
// floored at quantity 1 and the gift is left for Sync to decide.
func normalize(items []domain.LineItem, promo domain.Promotion) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" || promo.IsGift(item) {
			continue
		}
		item.Quantity = max(1, item.Quantity)
		if i := domain.FindItemIndex(out, item.ID); i >= 0 {
			out[i].Quantity += item.Quantity
			continue
		}
		out = append(out, item)
	}
	return out
}
