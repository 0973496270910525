// Package providertest provides shared conformance tests for
// provider.DocumentStore implementations. Call RunAll from a test function to
// verify a store satisfies the full behavioral contract.
package providertest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/clearmail/internal/provider"
)

// RunAll runs the complete document store conformance suite as subtests.
func RunAll(t *testing.T, store provider.DocumentStore) {
	t.Helper()

	collection := fmt.Sprintf("ct-%d", time.Now().UnixNano())

	t.Run("MissingDocument", func(t *testing.T) { TestMissingDocument(t, store, collection) })
	t.Run("MergeCreatesDocument", func(t *testing.T) { TestMergeCreatesDocument(t, store, collection) })
	t.Run("MergePreservesFields", func(t *testing.T) { TestMergePreservesFields(t, store, collection) })
	t.Run("MergeOverwritesField", func(t *testing.T) { TestMergeOverwritesField(t, store, collection) })
	t.Run("NumericField", func(t *testing.T) { TestNumericField(t, store, collection) })
}

// TestMissingDocument verifies GetDocument returns ErrNotFound for absent documents.
func TestMissingDocument(t *testing.T, store provider.DocumentStore, collection string) {
	_, err := store.GetDocument(context.Background(), collection, "does-not-exist")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

// TestMergeCreatesDocument verifies MergeFields creates a new document.
func TestMergeCreatesDocument(t *testing.T, store provider.DocumentStore, collection string) {
	ctx := context.Background()

	err := store.MergeFields(ctx, collection, "create", map[string]any{"lastTimestamp": "2026-03-01T10:00:00.000Z"})
	require.NoError(t, err)

	doc, err := store.GetDocument(ctx, collection, "create")
	require.NoError(t, err)
	v, ok := provider.StringField(doc, "lastTimestamp")
	assert.True(t, ok)
	assert.Equal(t, "2026-03-01T10:00:00.000Z", v)
}

// TestMergePreservesFields verifies fields not named in a merge survive it.
func TestMergePreservesFields(t *testing.T, store provider.DocumentStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.MergeFields(ctx, collection, "preserve", map[string]any{"a": "1"}))
	require.NoError(t, store.MergeFields(ctx, collection, "preserve", map[string]any{"b": "2"}))

	doc, err := store.GetDocument(ctx, collection, "preserve")
	require.NoError(t, err)
	a, _ := provider.StringField(doc, "a")
	b, _ := provider.StringField(doc, "b")
	assert.Equal(t, "1", a)
	assert.Equal(t, "2", b)
}

// TestMergeOverwritesField verifies a merge replaces an existing field value.
func TestMergeOverwritesField(t *testing.T, store provider.DocumentStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.MergeFields(ctx, collection, "overwrite", map[string]any{"lastTimestamp": "old"}))
	require.NoError(t, store.MergeFields(ctx, collection, "overwrite", map[string]any{"lastTimestamp": "new"}))

	doc, err := store.GetDocument(ctx, collection, "overwrite")
	require.NoError(t, err)
	v, _ := provider.StringField(doc, "lastTimestamp")
	assert.Equal(t, "new", v)
}

// TestNumericField verifies numbers survive a round trip in some printable form.
func TestNumericField(t *testing.T, store provider.DocumentStore, collection string) {
	ctx := context.Background()

	require.NoError(t, store.MergeFields(ctx, collection, "numeric", map[string]any{"refreshInterval": 300}))

	doc, err := store.GetDocument(ctx, collection, "numeric")
	require.NoError(t, err)
	assert.Equal(t, "300", fmt.Sprint(doc["refreshInterval"]))
}
