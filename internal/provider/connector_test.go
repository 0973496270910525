package provider_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/clearmail/internal/provider"
	"github.com/dwsmith1983/clearmail/internal/testutil"
)

func TestConnector_OpensOnce(t *testing.T) {
	var opens atomic.Int32
	store := testutil.NewMockStore()
	c := provider.NewConnector(func(context.Context) (provider.DocumentStore, error) {
		opens.Add(1)
		return store, nil
	}, nil)

	var wg sync.WaitGroup
	got := make([]provider.DocumentStore, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Store(context.Background())
			assert.NoError(t, err)
			got[i] = s
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for _, s := range got {
		assert.Same(t, store, s)
	}
}

func TestConnector_FailedOpenIsRetried(t *testing.T) {
	calls := 0
	store := testutil.NewMockStore()
	c := provider.NewConnector(func(context.Context) (provider.DocumentStore, error) {
		calls++
		if calls == 1 {
			return nil, &provider.ConfigError{Provider: "firestore", Err: errors.New("no credentials")}
		}
		return store, nil
	}, nil)

	_, err := c.Store(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsConfigError(err))

	s, err := c.Store(context.Background())
	require.NoError(t, err)
	assert.Same(t, store, s)
	assert.Equal(t, 2, calls)
}

func TestConnector_Close(t *testing.T) {
	store := testutil.NewMockStore()
	c := provider.NewStaticConnector(store)

	require.NoError(t, c.Close())
	assert.True(t, store.Closed())
	_, err := c.Store(context.Background())
	assert.Error(t, err)
}

func TestConnector_NilOpener(t *testing.T) {
	_, err := provider.NewConnector(nil, nil).Store(context.Background())
	assert.Error(t, err)
}

func TestStringField(t *testing.T) {
	doc := map[string]any{"ts": " 2026-01-01T00:00:00Z ", "empty": "", "num": 3}

	v, ok := provider.StringField(doc, "ts")
	assert.True(t, ok)
	assert.Equal(t, "2026-01-01T00:00:00Z", v)

	_, ok = provider.StringField(doc, "empty")
	assert.False(t, ok)
	_, ok = provider.StringField(doc, "num")
	assert.False(t, ok)
	_, ok = provider.StringField(doc, "missing")
	assert.False(t, ok)
}
