package cart

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nainu25/ELEMENT-01/internal/domain"
	apperrors "github.com/nainu25/ELEMENT-01/pkg/errors"
)

// --- Mock Sink ---

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Get(ctx context.Context, sessionID string) (*domain.CartState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CartState), args.Error(1)
}

func (m *mockSink) Save(ctx context.Context, sessionID string, state *domain.CartState) error {
	args := m.Called(ctx, sessionID, state)
	return args.Error(0)
}

func (m *mockSink) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func product(id, price string) domain.Product {
	return domain.Product{ID: id, Name: strings.ToUpper(id), Price: decimal.RequireFromString(price)}
}

func newTestStore(opts ...Option) *Store {
	opts = append([]Option{WithLogger(newTestLogger())}, opts...)
	return NewStore("sess-1", domain.DefaultPromotion(), opts...)
}

func giftPresent(items []domain.LineItem) bool {
	return domain.FindItemIndex(items, domain.GiftID) >= 0
}

// --- Scenarios ---

func TestStore_AddFirstItemOpensPanel(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	state := s.AddItem(ctx, product("p1", "60"))

	assert.True(t, state.IsOpen)
	assert.Equal(t, "60", s.Subtotal().String())
	assert.False(t, giftPresent(state.Items))
	assert.False(t, s.IsEligibleForPromotion())
}

func TestStore_AddToNonEmptyCartKeepsPanelState(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "10"))
	closed := false
	s.ToggleCart(ctx, &closed)
	state := s.AddItem(ctx, product("p2", "10"))

	assert.False(t, state.IsOpen)
}

func TestStore_CrossingThresholdAddsGift(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "60"))
	state := s.AddItem(ctx, product("p2", "45"))

	require.Len(t, state.Items, 3)
	assert.Equal(t, domain.GiftID, state.Items[2].ID)
	assert.Equal(t, 3, s.ItemCount())
	assert.Equal(t, 3, s.LineCount())
	assert.Equal(t, "105", s.Subtotal().String())
	assert.True(t, s.IsEligibleForPromotion())
}

func TestStore_RemovingBelowThresholdDropsGift(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "60"))
	s.AddItem(ctx, product("p2", "45"))
	state := s.RemoveItem(ctx, "p2")

	require.Len(t, state.Items, 1)
	assert.Equal(t, "p1", state.Items[0].ID)
	assert.Equal(t, 1, s.ItemCount())
	assert.False(t, s.IsEligibleForPromotion())
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "60"))
	state := s.RemoveItem(ctx, "nope")

	assert.Len(t, state.Items, 1)
}

func TestStore_AddSameProductIncrements(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "20"))
	state := s.AddItem(ctx, product("p1", "20"))

	require.Len(t, state.Items, 1)
	assert.Equal(t, 2, state.Items[0].Quantity)
	assert.Equal(t, 2, s.ItemCount())
	assert.Equal(t, 1, s.LineCount())
}

func TestStore_UpdateQuantityFloorsAtOne(t *testing.T) {
	for _, q := range []int{0, -1, -100} {
		s := newTestStore()
		ctx := context.Background()
		s.AddItem(ctx, product("p1", "20"))
		s.AddItem(ctx, product("p1", "20"))

		state := s.UpdateQuantity(ctx, "p1", q)

		require.Len(t, state.Items, 1, "q=%d", q)
		assert.Equal(t, 1, state.Items[0].Quantity, "q=%d", q)
	}
}

func TestStore_UpdateQuantityResyncsGift(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "30"))
	state := s.UpdateQuantity(ctx, "p1", 4)
	assert.True(t, giftPresent(state.Items))

	state = s.UpdateQuantity(ctx, "p1", 3)
	assert.False(t, giftPresent(state.Items))
}

func TestStore_UpdateQuantityAbsentIsNoop(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "30"))
	state := s.UpdateQuantity(ctx, "p2", 5)

	require.Len(t, state.Items, 1)
	assert.Equal(t, 1, state.Items[0].Quantity)
}

func TestStore_GiftQuantityIsFixed(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "150"))
	s.UpdateQuantity(ctx, domain.GiftID, 5)
	state := s.AddItem(ctx, domain.Product{ID: domain.GiftID})

	i := domain.FindItemIndex(state.Items, domain.GiftID)
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, 1, state.Items[i].Quantity)
	assert.Equal(t, 2, s.ItemCount())
}

func TestStore_AddingGiftToEmptyCartIsNoop(t *testing.T) {
	s := newTestStore()

	state := s.AddItem(context.Background(), domain.Product{ID: domain.GiftID, Price: decimal.NewFromInt(500)})

	assert.Empty(t, state.Items)
	assert.False(t, state.IsOpen)
}

func TestStore_ToggleCart(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	assert.True(t, s.ToggleCart(ctx, nil).IsOpen)
	assert.False(t, s.ToggleCart(ctx, nil).IsOpen)

	open := true
	assert.True(t, s.ToggleCart(ctx, &open).IsOpen)
	assert.True(t, s.ToggleCart(ctx, &open).IsOpen)
	assert.True(t, s.IsOpen())
}

func TestStore_ClearCartRemovesGift(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "150"))
	state := s.ClearCart(ctx)

	assert.Empty(t, state.Items)
	assert.NotNil(t, state.Items)
	assert.True(t, s.Subtotal().IsZero())
}

func TestStore_SettleCheckoutRemovesOnlyPaidLines(t *testing.T) {
	ctx := context.Background()

	t.Run("unchanged cart ends empty", func(t *testing.T) {
		s := newTestStore()
		s.AddItem(ctx, product("a", "60"))
		s.AddItem(ctx, product("a", "60"))
		paid := s.Items()
		require.True(t, giftPresent(paid))

		state := s.SettleCheckout(ctx, paid)

		assert.Empty(t, state.Items)
	})

	t.Run("lines added after the snapshot stay", func(t *testing.T) {
		s := newTestStore()
		s.AddItem(ctx, product("a", "60"))
		s.AddItem(ctx, product("a", "60"))
		paid := s.Items()

		s.AddItem(ctx, product("b", "15"))
		s.AddItem(ctx, product("a", "60"))
		state := s.SettleCheckout(ctx, paid)

		require.Len(t, state.Items, 2)
		assert.Equal(t, "a", state.Items[0].ID)
		assert.Equal(t, 1, state.Items[0].Quantity)
		assert.Equal(t, "b", state.Items[1].ID)
		assert.Equal(t, 1, state.Items[1].Quantity)
		assert.False(t, giftPresent(state.Items))
	})

	t.Run("gift follows the remaining subtotal", func(t *testing.T) {
		s := newTestStore()
		s.AddItem(ctx, product("a", "60"))
		paid := s.Items()

		s.AddItem(ctx, product("b", "120"))
		state := s.SettleCheckout(ctx, paid)

		require.Len(t, state.Items, 2)
		assert.Equal(t, "b", state.Items[0].ID)
		assert.True(t, giftPresent(state.Items))
	})
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "10"))
	snap := s.Snapshot()
	snap.Items[0].Quantity = 50

	assert.Equal(t, 1, s.Items()[0].Quantity)
}

// --- Properties ---

func TestStore_RandomSequencesHoldInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	prices := map[string]string{"a": "12.50", "b": "40", "c": "0.99", "d": "75", "e": "100"}
	ids := []string{"a", "b", "c", "d", "e"}
	promo := domain.DefaultPromotion()

	for run := 0; run < 50; run++ {
		s := newTestStore()
		ctx := context.Background()

		for step := 0; step < 40; step++ {
			id := ids[r.IntN(len(ids))]
			switch r.IntN(4) {
			case 0, 1:
				s.AddItem(ctx, product(id, prices[id]))
			case 2:
				s.RemoveItem(ctx, id)
			case 3:
				s.UpdateQuantity(ctx, id, r.IntN(7)-3)
			}

			items := s.Items()
			seen := map[string]bool{}
			for _, it := range items {
				assert.False(t, seen[it.ID], "duplicate line %s", it.ID)
				seen[it.ID] = true
				assert.GreaterOrEqual(t, it.Quantity, 1)
			}
			assert.Equal(t, promo.Eligible(items), giftPresent(items))

			again, tr := promo.Sync(items)
			assert.Equal(t, domain.Unchanged, tr)
			assert.Equal(t, items, again)
		}
	}
}

func TestStore_QuantityEqualsAddCount(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	s := newTestStore()
	ctx := context.Background()
	counts := map[string]int{}

	for i := 0; i < 100; i++ {
		id := []string{"x", "y", "z"}[r.IntN(3)]
		counts[id]++
		s.AddItem(ctx, product(id, "1"))
	}

	for _, it := range s.Items() {
		if it.ID == domain.GiftID {
			continue
		}
		assert.Equal(t, counts[it.ID], it.Quantity, it.ID)
	}
}

// --- Persistence ---

func TestStore_FlushesEveryMutation(t *testing.T) {
	sink := new(mockSink)
	sink.On("Save", mock.Anything, "sess-1", mock.AnythingOfType("*domain.CartState")).Return(nil)
	s := newTestStore(WithSink(sink))
	ctx := context.Background()

	s.AddItem(ctx, product("p1", "60"))
	s.AddItem(ctx, product("p2", "45"))
	s.ToggleCart(ctx, nil)

	sink.AssertNumberOfCalls(t, "Save", 3)
	last := sink.Calls[2].Arguments.Get(2).(*domain.CartState)
	assert.Len(t, last.Items, 3)
}

func TestStore_SinkFailureIsOnlyAWarning(t *testing.T) {
	sink := new(mockSink)
	sink.On("Save", mock.Anything, "sess-1", mock.Anything).Return(errors.New("redis: connection refused"))

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s := NewStore("sess-1", domain.DefaultPromotion(), WithSink(sink), WithLogger(l))

	state := s.AddItem(context.Background(), product("p1", "60"))

	require.Len(t, state.Items, 1)
	assert.Equal(t, 1, s.LineCount())
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "failed to persist cart state")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestStore_FlushOutlivesCanceledRequest(t *testing.T) {
	sink := new(mockSink)
	sink.On("Save", mock.Anything, "sess-1", mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			assert.NoError(t, ctx.Err())
		}).
		Return(nil)
	s := newTestStore(WithSink(sink), WithFlushTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.AddItem(ctx, product("p1", "1"))

	sink.AssertExpectations(t)
}

func TestStore_LoadRestoresAndResyncs(t *testing.T) {
	sink := new(mockSink)
	ctx := context.Background()
	stored := &domain.CartState{
		Items: []domain.LineItem{
			domain.NewLineItem(product("p1", "60"), 1),
			domain.NewLineItem(product("p1", "60"), 1),
			domain.NewLineItem(product("p2", "10"), 0),
			domain.DefaultGift(),
		},
		IsOpen: true,
	}
	sink.On("Get", ctx, "sess-1").Return(stored, nil).Once()
	s := newTestStore(WithSink(sink))

	s.Load(ctx)
	s.Load(ctx)

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, domain.GiftID, items[2].ID)
	assert.True(t, s.IsOpen())
	sink.AssertExpectations(t)
}

func TestStore_LoadDropsGiftBelowThreshold(t *testing.T) {
	sink := new(mockSink)
	ctx := context.Background()
	stored := &domain.CartState{Items: []domain.LineItem{
		domain.NewLineItem(product("p1", "20"), 1),
		domain.DefaultGift(),
	}}
	sink.On("Get", ctx, "sess-1").Return(stored, nil)
	s := newTestStore(WithSink(sink))

	s.Load(ctx)

	assert.Equal(t, 1, s.LineCount())
}

func TestStore_LoadFailureStartsEmpty(t *testing.T) {
	tests := map[string]error{
		"not found": apperrors.NotFound("cart", "sess-1"),
		"backend":   errors.New("redis down"),
	}
	for name, loadErr := range tests {
		t.Run(name, func(t *testing.T) {
			sink := new(mockSink)
			ctx := context.Background()
			sink.On("Get", ctx, "sess-1").Return(nil, loadErr)
			s := newTestStore(WithSink(sink))

			s.Load(ctx)

			assert.Empty(t, s.Items())
			assert.False(t, s.IsOpen())
		})
	}
}

func TestStore_LoadFailureDefersFlushAndRetries(t *testing.T) {
	sink := new(mockSink)
	ctx := context.Background()
	stored := &domain.CartState{Items: []domain.LineItem{
		domain.NewLineItem(product("p1", "60"), 1),
	}}
	sink.On("Get", mock.Anything, "sess-1").Return(nil, errors.New("redis: i/o timeout")).Once()
	sink.On("Get", mock.Anything, "sess-1").Return(stored, nil).Once()
	sink.On("Save", mock.Anything, "sess-1", mock.AnythingOfType("*domain.CartState")).Return(nil)
	s := newTestStore(WithSink(sink))

	s.Load(ctx)
	s.AddItem(ctx, product("p2", "50"))
	sink.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)

	s.Load(ctx)

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, "p2", items[1].ID)
	assert.Equal(t, domain.GiftID, items[2].ID)
	assert.True(t, s.IsOpen())

	sink.AssertNumberOfCalls(t, "Get", 2)
	sink.AssertNumberOfCalls(t, "Save", 1)
	saved := sink.Calls[len(sink.Calls)-1].Arguments.Get(2).(*domain.CartState)
	assert.Len(t, saved.Items, 3)

	s.AddItem(ctx, product("p2", "50"))
	sink.AssertNumberOfCalls(t, "Save", 2)
}

// --- Notification ---

func TestStore_SubscribeReceivesChanges(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	var got []Change
	unsubscribe := s.Subscribe(func(_ context.Context, c Change) {
		got = append(got, c)
	})

	s.AddItem(ctx, product("p1", "120"))
	s.RemoveItem(ctx, "p1")
	unsubscribe()
	s.ClearCart(ctx)

	require.Len(t, got, 2)
	assert.Equal(t, OpAdd, got[0].Op)
	assert.Equal(t, domain.GiftAdded, got[0].Transition)
	assert.Len(t, got[0].State.Items, 2)
	assert.Equal(t, OpRemove, got[1].Op)
	assert.Equal(t, domain.GiftRemoved, got[1].Transition)
	assert.Equal(t, "sess-1", got[1].SessionID)
}

func TestStore_ConcurrentMutationsSerialize(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				s.AddItem(ctx, product("p1", "1"))
			}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}

	assert.Equal(t, 500, s.Items()[0].Quantity)
	assert.True(t, giftPresent(s.Items()))
}
