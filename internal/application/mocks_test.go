package application_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// --- Mock implementations ---

// memStore is an in-memory CredentialStore with injectable failures.
type memStore struct {
	mu        sync.Mutex
	values    map[string]string
	getErr    error
	setErr    error
	deleteErr error
	deletes   int

	// onSet, if set, runs before each Set is applied.
	onSet func()
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	if m.onSet != nil {
		m.onSet()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.values[key], nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.values, key)
	return nil
}

// stubListings is a ListingService whose behaviour is supplied per test.
type stubListings struct {
	mu       sync.Mutex
	login    func(ctx context.Context, username, password string) (model.Credential, error)
	fetch    func(ctx context.Context, req model.PageRequest) (model.PageResult, error)
	requests []model.PageRequest
	resets   int
}

func (s *stubListings) Login(ctx context.Context, username, password string) (model.Credential, error) {
	return s.login(ctx, username, password)
}

func (s *stubListings) FetchPage(ctx context.Context, req model.PageRequest) (model.PageResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.fetch(ctx, req)
}

func (s *stubListings) ResetCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

func (s *stubListings) resetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// recordingRecorder captures fetch and login outcomes.
type recordingRecorder struct {
	mu      sync.Mutex
	fetches []string
	logins  []string
}

func (r *recordingRecorder) RecordFetch(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, outcome)
}

func (r *recordingRecorder) RecordLogin(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, outcome)
}

func (r *recordingRecorder) fetchOutcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fetches...)
}

// --- Helper functions ---

// makePage builds a page of n listings with the given total.
func makePage(page, perPage, n, total int) model.PageResult {
	items := make([]model.ListingRecord, 0, n)
	for i := range n {
		id := int64((page-1)*perPage + i + 1)
		items = append(items, model.ListingRecord{
			ID:    id,
			Brand: "Toyota",
			Model: fmt.Sprintf("Model %d", id),
			URL:   fmt.Sprintf("https://example.com/cars/%d", id),
		})
	}
	return model.PageResult{Items: items, Total: total, Page: page, PerPage: perPage}
}
