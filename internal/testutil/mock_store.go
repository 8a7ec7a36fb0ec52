// Package testutil provides testing utilities for the catalog
// harvester.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockStore is a configurable mock storefront server speaking the
// paginated products API.
type MockStore struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	pathCounts   map[string]int
}

// NewMockStore creates a mock storefront. Paths without a handler
// answer with an empty products page.
func NewMockStore() *MockStore {
	mock := &MockStore{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"products":[]}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockStore) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStore) Close() {
	m.server.Close()
}

// Reset clears all request tracking.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
}

// SetHandler sets a custom handler for a path.
func (m *MockStore) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetCatalog serves the given products from path with real limit/page
// pagination, the same contract as the live storefront.
func (m *MockStore) SetCatalog(path string, products []json.RawMessage) {
	m.SetHandler(path, catalogHandler(products))
}

// catalogHandler slices the product set according to limit/page query
// parameters.
func catalogHandler(products []json.RawMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 || limit > 250 {
			limit = 250
		}
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page <= 0 {
			page = 1
		}

		start := (page - 1) * limit
		end := start + limit
		if start > len(products) {
			start = len(products)
		}
		if end > len(products) {
			end = len(products)
		}

		body, _ := json.Marshal(struct {
			Products []json.RawMessage `json:"products"`
		}{Products: products[start:end]})

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// AlwaysStatus makes a path answer every request with the given status.
func (m *MockStore) AlwaysStatus(path string, status int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

// FailThenServe fails the first failures requests to path with status,
// then serves the catalog normally.
func (m *MockStore) FailThenServe(path string, failures, status int, products []json.RawMessage) {
	var mu sync.Mutex
	served := 0
	serve := catalogHandler(products)

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		served++
		fail := served <= failures
		mu.Unlock()

		if fail {
			w.WriteHeader(status)
			return
		}
		serve(w, r)
	})
}

// RequestCount returns the total number of requests received.
func (m *MockStore) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests received for one path.
func (m *MockStore) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// Product builds a minimal raw product record for catalog fixtures.
func Product(id int64, title string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%d,"title":%q,"handle":"item-%d","tags":"tops","variants":[{"title":"M","price":"1500.0"}],"images":[]}`,
		id, title, id))
}

// Products builds n sequential product fixtures starting at firstID.
func Products(firstID int64, n int) []json.RawMessage {
	out := make([]json.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		id := firstID + int64(i)
		out = append(out, Product(id, fmt.Sprintf("Item %d", id)))
	}
	return out
}
