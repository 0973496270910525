// Package testutil provides shared test utilities for clearmail.
package testutil

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/dwsmith1983/clearmail/internal/provider"
)

// Compile-time interface satisfaction check.
var _ provider.DocumentStore = (*MockStore)(nil)

// MockStore is an in-memory DocumentStore with injectable failures.
type MockStore struct {
	mu   sync.Mutex
	docs map[string]map[string]any // key: "collection/document"

	// GetErr and MergeErr, when set, are returned by every call.
	GetErr   error
	MergeErr error

	gets   atomic.Int64
	merges atomic.Int64
	closed atomic.Bool
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{docs: make(map[string]map[string]any)}
}

func docKey(collection, document string) string {
	return collection + "/" + document
}

// Put seeds a document.
func (m *MockStore) Put(collection, document string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey(collection, document)] = maps.Clone(fields)
}

// Doc returns a copy of a document, or nil.
func (m *MockStore) Doc(collection, document string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.docs[docKey(collection, document)])
}

func (m *MockStore) GetDocument(_ context.Context, collection, document string) (map[string]any, error) {
	m.gets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	doc, ok := m.docs[docKey(collection, document)]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return maps.Clone(doc), nil
}

func (m *MockStore) MergeFields(_ context.Context, collection, document string, fields map[string]any) error {
	m.merges.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MergeErr != nil {
		return m.MergeErr
	}
	key := docKey(collection, document)
	doc, ok := m.docs[key]
	if !ok {
		doc = make(map[string]any)
		m.docs[key] = doc
	}
	maps.Copy(doc, fields)
	return nil
}

func (m *MockStore) Close() error {
	m.closed.Store(true)
	return nil
}

// SetGetErr sets the error returned by GetDocument.
func (m *MockStore) SetGetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetErr = err
}

// Gets returns the number of GetDocument calls.
func (m *MockStore) Gets() int64 { return m.gets.Load() }

// Merges returns the number of MergeFields calls.
func (m *MockStore) Merges() int64 { return m.merges.Load() }

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool { return m.closed.Load() }
