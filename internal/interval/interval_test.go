package interval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/internal/testutil"
	"github.com/dwsmith1983/clearmail/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testConfig = types.IntervalConfig{
	Collection:      "settings",
	Document:        "schedule",
	Field:           "refreshInterval",
	RefreshInterval: 600,
}

func setup(t *testing.T) (*Resolver, *testutil.MockStore, *testutil.FixedClock) {
	t.Helper()
	mock := testutil.NewMockStore()
	clock := testutil.NewFixedClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	r := New(testConfig, provider.NewStaticConnector(mock), WithClock(clock.Now))
	return r, mock, clock
}

func TestRunInterval_CachedWithinTTL(t *testing.T) {
	r, mock, clock := setup(t)
	mock.Put("settings", "schedule", map[string]any{"refreshInterval": int64(120)})
	ctx := context.Background()

	assert.Equal(t, 120, r.RunInterval(ctx))
	clock.Advance(4 * time.Minute)
	mock.Put("settings", "schedule", map[string]any{"refreshInterval": int64(60)})
	assert.Equal(t, 120, r.RunInterval(ctx))

	assert.Equal(t, int64(1), mock.Gets())
}

func TestRunInterval_RefetchesAfterTTL(t *testing.T) {
	r, mock, clock := setup(t)
	mock.Put("settings", "schedule", map[string]any{"refreshInterval": int64(120)})
	ctx := context.Background()

	require.Equal(t, 120, r.RunInterval(ctx))
	mock.Put("settings", "schedule", map[string]any{"refreshInterval": int64(60)})
	clock.Advance(DefaultTTL)

	assert.Equal(t, 60, r.RunInterval(ctx))
	assert.Equal(t, int64(2), mock.Gets())
}

func TestRunInterval_FetchFailureUsesDefaultAndKeepsCache(t *testing.T) {
	r, mock, clock := setup(t)
	mock.Put("settings", "schedule", map[string]any{"refreshInterval": int64(120)})
	ctx := context.Background()

	require.Equal(t, 120, r.RunInterval(ctx))
	clock.Advance(DefaultTTL + time.Second)
	mock.SetGetErr(errors.New("unavailable"))

	assert.Equal(t, 600, r.RunInterval(ctx))

	r.mu.Lock()
	assert.Equal(t, map[string]any{"refreshInterval": int64(120)}, r.template)
	assert.Equal(t, clock.Now().Add(-DefaultTTL-time.Second), r.fetchedAt)
	r.mu.Unlock()

	// Still expired, so the next call fetches again.
	mock.SetGetErr(nil)
	assert.Equal(t, 120, r.RunInterval(ctx))
	assert.Equal(t, int64(3), mock.Gets())
}

func TestRunInterval_InvalidValueIsCached(t *testing.T) {
	r, mock, _ := setup(t)
	mock.Put("settings", "schedule", map[string]any{"refreshInterval": "soon"})
	ctx := context.Background()

	assert.Equal(t, 600, r.RunInterval(ctx))
	assert.Equal(t, 600, r.RunInterval(ctx))
	assert.Equal(t, int64(1), mock.Gets())
}

func TestRunInterval_MissingDocumentIsCached(t *testing.T) {
	r, mock, _ := setup(t)
	ctx := context.Background()

	assert.Equal(t, 600, r.RunInterval(ctx))
	assert.Equal(t, 600, r.RunInterval(ctx))
	assert.Equal(t, int64(1), mock.Gets())
}

func TestRunInterval_StoreInitFailure(t *testing.T) {
	conn := provider.NewConnector(func(context.Context) (provider.DocumentStore, error) {
		return nil, errors.New("no credentials")
	}, nil)
	r := New(testConfig, conn)

	assert.Equal(t, 600, r.RunInterval(context.Background()))
}

func TestRunInterval_NoConnector(t *testing.T) {
	r := New(types.IntervalConfig{Field: "x"}, nil)
	assert.Equal(t, DefaultSeconds, r.RunInterval(context.Background()))
}

// blockingStore holds GetDocument until released so concurrent callers overlap.
type blockingStore struct {
	*testutil.MockStore
	release chan struct{}
	calls   atomic.Int64
}

func (b *blockingStore) GetDocument(ctx context.Context, collection, document string) (map[string]any, error) {
	b.calls.Add(1)
	<-b.release
	return b.MockStore.GetDocument(ctx, collection, document)
}

func TestRunInterval_ConcurrentCallersShareFetch(t *testing.T) {
	mock := testutil.NewMockStore()
	mock.Put("settings", "schedule", map[string]any{"refreshInterval": 90})
	store := &blockingStore{MockStore: mock, release: make(chan struct{})}
	r := New(testConfig, provider.NewStaticConnector(store))

	const n = 16
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.RunInterval(context.Background())
		}()
	}
	testutil.WaitFor(t, time.Second, func() bool { return store.calls.Load() >= 1 }, "first fetch")
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, 90, got)
	}
	assert.Equal(t, int64(1), store.calls.Load())
}

// ctxStore fails reads whose context is already done.
type ctxStore struct {
	*testutil.MockStore
}

func (c ctxStore) GetDocument(ctx context.Context, collection, document string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.MockStore.GetDocument(ctx, collection, document)
}

func TestRunInterval_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	mock := testutil.NewMockStore()
	mock.Put("settings", "schedule", map[string]any{"refreshInterval": 90})
	r := New(testConfig, provider.NewStaticConnector(ctxStore{MockStore: mock}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 90, r.RunInterval(ctx))
	assert.Equal(t, 90, r.RunInterval(context.Background()))
	assert.Equal(t, int64(1), mock.Gets())
}

// deadlineStore blocks until its context expires.
type deadlineStore struct {
	*testutil.MockStore
}

func (d deadlineStore) GetDocument(ctx context.Context, _, _ string) (map[string]any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunInterval_FetchTimeoutUsesDefault(t *testing.T) {
	store := deadlineStore{MockStore: testutil.NewMockStore()}
	r := New(testConfig, provider.NewStaticConnector(store), WithFetchTimeout(20*time.Millisecond))

	start := time.Now()
	assert.Equal(t, 600, r.RunInterval(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{300, 300, true},
		{int64(45), 45, true},
		{int32(7), 7, true},
		{float64(120), 120, true},
		{"  900 ", 900, true},
		{1.5, 0, false},
		{0, 0, false},
		{-5, 0, false},
		{"-5", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{true, 0, false},
		{float64(1 << 40), 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSeconds(tt.in)
		assert.Equal(t, tt.ok, ok, "%#v", tt.in)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}
}

func TestDefault(t *testing.T) {
	assert.Equal(t, 600, New(testConfig, nil).Default())
	assert.Equal(t, DefaultSeconds, New(types.IntervalConfig{}, nil).Default())
}
