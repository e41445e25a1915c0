// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/desertthunder/shelfreq/internal/models"
)

// MockCatalog is a test double for [services.Catalog]
type MockCatalog struct {
	mu sync.Mutex

	Unconfigured bool
	Items        []models.CatalogEntry
	Err          error
	// Hook runs inside FetchAllItems before returning, e.g. to block or panic.
	Hook  func(ctx context.Context)
	calls int
}

func (m *MockCatalog) Configured() bool { return !m.Unconfigured }

func (m *MockCatalog) FetchAllItems(ctx context.Context) ([]models.CatalogEntry, error) {
	m.mu.Lock()
	m.calls++
	hook, items, err := m.Hook, m.Items, m.Err
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err != nil {
		return nil, err
	}
	return append([]models.CatalogEntry{}, items...), nil
}

// Calls returns how many times FetchAllItems ran.
func (m *MockCatalog) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetItems replaces the catalog contents between runs.
func (m *MockCatalog) SetItems(items []models.CatalogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items = items
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)
