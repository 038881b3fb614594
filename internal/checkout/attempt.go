package checkout

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nainu25/ELEMENT-01/internal/domain"
)

// State is the lifecycle of one checkout attempt.
type State int

const (
	StateIdle State = iota
	StateReconciling
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReconciling:
		return "reconciling"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// Attempt records one Finalize call. Applied keeps every decrement written
// before a failure; they are not rolled back.
type Attempt struct {
	ID         string
	State      State
	Applied    []domain.StockChange
	Skipped    []domain.SkippedItem
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func newAttempt() *Attempt {
	return &Attempt{ID: uuid.New().String(), State: StateIdle}
}

func (a *Attempt) transition(to State) {
	switch {
	case a.State == StateIdle && to == StateReconciling:
	case a.State == StateReconciling && to.Terminal():
	default:
		panic(fmt.Sprintf("checkout: invalid transition %s -> %s", a.State, to))
	}
	a.State = to
}

// Duration is the time spent reconciling.
func (a *Attempt) Duration() time.Duration {
	if a.FinishedAt.IsZero() {
		return 0
	}
	return a.FinishedAt.Sub(a.StartedAt)
}
