package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nainu25/ELEMENT-01/internal/domain"
)

type entry struct {
	store    *Store
	lastSeen time.Time
	// refs counts callers holding store; Evict skips pinned entries.
	refs int
}

// Sessions maps session IDs to their Store. A store is created and loaded
// from the sink the first time its session is touched.
type Sessions struct {
	mu        sync.Mutex
	entries   map[string]*entry
	listeners []Listener

	promo  domain.Promotion
	opts   []Option
	logger *slog.Logger
	now    func() time.Time
}

// NewSessions creates a registry whose stores share promo and opts.
func NewSessions(promo domain.Promotion, logger *slog.Logger, opts ...Option) *Sessions {
	return &Sessions{
		entries: make(map[string]*entry),
		promo:   promo,
		opts:    append([]Option{WithLogger(logger)}, opts...),
		logger:  logger,
		now:     time.Now,
	}
}

// Subscribe attaches l to every store created after the call.
func (s *Sessions) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Acquire returns the loaded store for sessionID, creating it on first use.
// The store is pinned against eviction until release is called, so one
// session never has two live stores. release is safe to call more than once.
func (s *Sessions) Acquire(ctx context.Context, sessionID string) (store *Store, release func()) {
	s.mu.Lock()
	e, ok := s.entries[sessionID]
	if !ok {
		st := NewStore(sessionID, s.promo, s.opts...)
		for _, l := range s.listeners {
			st.Subscribe(l)
		}
		e = &entry{store: st}
		s.entries[sessionID] = e
		activeSessions.Inc()
	}
	e.refs++
	e.lastSeen = s.now()
	s.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			e.refs--
			e.lastSeen = s.now()
		})
	}

	e.store.Load(ctx)
	return e.store, release
}

// Len returns the number of stores held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Evict drops unpinned stores released more than idle ago. Evicted sessions
// are reloaded from the sink on their next request.
func (s *Sessions) Evict(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	var n int
	for id, e := range s.entries {
		if e.refs == 0 && e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	activeSessions.Sub(float64(n))
	return n
}

// RunEvictor calls Evict every interval until ctx is done.
func (s *Sessions) RunEvictor(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Evict(idle); n > 0 {
				s.logger.Debug("evicted idle cart sessions", slog.Int("count", n))
			}
		}
	}
}
