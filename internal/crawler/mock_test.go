package crawler

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"sjsage522/communitysync/helpers"
)

// MockFetcher serves canned pages by URL for testing
type MockFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]error
	requests []string
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		pages:    make(map[string]string),
		failures: make(map[string]error),
	}
}

func (m *MockFetcher) Add(url, html string) *MockFetcher {
	m.pages[url] = html
	return m
}

func (m *MockFetcher) Fail(url string, err error) *MockFetcher {
	m.failures[url] = err
	return m
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, url)
	if err, ok := m.failures[url]; ok {
		return nil, err
	}
	if html, ok := m.pages[url]; ok {
		return strings.NewReader(html), nil
	}
	return nil, errors.New("unexpected status code: 404")
}

func (m *MockFetcher) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// mockFailures implements helpers.FailureRecorder without touching disk
type mockFailures struct {
	ids []string
}

func (m *mockFailures) LogError(identifier string, err error) {
	m.ids = append(m.ids, identifier)
}

func (m *mockFailures) Failures() []helpers.Failure {
	out := make([]helpers.Failure, len(m.ids))
	for i, id := range m.ids {
		out[i] = helpers.Failure{Identifier: id}
	}
	return out
}
