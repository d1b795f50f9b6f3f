package ledger

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/pkg/models"
)

func newLedger(t *testing.T, opts ...Option) (*Ledger, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	l, err := New(context.Background(), store, opts...)
	require.NoError(t, err)
	return l, store
}

func TestPayThenUnpayRoundTrips(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	l.Set(ctx, 1234.56)

	before := l.Decimal()
	require.NoError(t, l.Add(ctx, 500))
	assert.Equal(t, 1734.56, l.Total())
	require.NoError(t, l.Subtract(ctx, 500))
	assert.True(t, before.Equal(l.Decimal()))
}

func TestRoundTripIsExactForFractionalAmounts(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	for _, amount := range []float64{0.1, 0.2, 0.3, 108.72, 19.99} {
		require.NoError(t, l.Add(ctx, amount))
	}
	for _, amount := range []float64{19.99, 0.3, 108.72, 0.1, 0.2} {
		require.NoError(t, l.Subtract(ctx, amount))
	}
	assert.True(t, l.Decimal().IsZero())
}

func TestRejectsInvalidChanges(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	for _, amount := range []float64{-1, math.NaN(), math.Inf(1), MaxChange + 1} {
		err := l.Add(ctx, amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v", amount)
		assert.ErrorIs(t, l.Subtract(ctx, amount), ErrInvalidAmount)
	}
	assert.Equal(t, 0.0, l.Total())
}

func TestSetOutOfRangeResetsToZero(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	l.Set(ctx, 42)
	l.Set(ctx, MaxTotal+1)
	assert.Equal(t, 0.0, l.Total())

	l.Set(ctx, 42)
	l.Set(ctx, -3)
	assert.Equal(t, 0.0, l.Total())
}

func TestSubtractClampsAtZero(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	require.NoError(t, l.Add(ctx, 10))
	require.NoError(t, l.Subtract(ctx, 25))
	assert.Equal(t, 0.0, l.Total())
}

func TestReconcileRecomputesFromPaidInvoices(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	l.Set(ctx, 999)

	paidAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	drift := l.Reconcile(ctx, []models.Invoice{
		{ID: "1", TotalAmount: 100, Status: "paid"},
		{ID: "2", TotalAmount: 50.5, PaidDate: &paidAt},
		{ID: "3", TotalAmount: 70, Status: "pending"},
		{ID: "4", TotalAmount: MaxChange * 2, Status: "paid"},
	})

	assert.Equal(t, 150.5, l.Total())
	assert.Equal(t, 999.0, drift.Previous)
	assert.Equal(t, 150.5, drift.Current)
	assert.Equal(t, -848.5, drift.Delta)
	assert.Equal(t, 1, drift.Skipped)
	assert.True(t, drift.HasDrift())
}

func TestChangesArePersistedAndRestored(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	require.NoError(t, l.Add(ctx, 12.5))

	raw, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12.5", raw)

	restored, err := New(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 12.5, restored.Total())

	require.NoError(t, restored.Reset(ctx))
	_, ok, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidPersistedValueStartsAtZero(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, "not-a-number"))

	l, err := New(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 0.0, l.Total())
}

func TestOnChangeReceivesEveryTotal(t *testing.T) {
	ctx := context.Background()
	var seen []float64
	l, _ := newLedger(t, WithOnChange(func(total float64) { seen = append(seen, total) }))

	require.NoError(t, l.Add(ctx, 500))
	require.NoError(t, l.Subtract(ctx, 200))
	require.NoError(t, l.Reset(ctx))
	assert.Equal(t, []float64{500, 300, 0}, seen)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Save(context.Context, string) error { return errors.New("disk full") }

func TestPersistFailureKeepsInMemoryTotal(t *testing.T) {
	l, err := New(context.Background(), &failingStore{})
	require.NoError(t, err)
	require.NoError(t, l.Add(context.Background(), 10))
	assert.Equal(t, 10.0, l.Total())
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "total_spend.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "250.75"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"vendorsync_total_spend": "250.75"`)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "250.75", v)

	require.NoError(t, reopened.Clear(ctx))
	_, ok, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestRedisStore runs against a real server when REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	store := NewRedisStoreWithClient(client, "vendorsync_test_total_spend")
	require.NoError(t, store.Clear(ctx))

	l, err := New(ctx, store)
	require.NoError(t, err)
	require.NoError(t, l.Add(ctx, 500))

	v, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "500", v)

	require.NoError(t, l.Reset(ctx))
	_, ok, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
