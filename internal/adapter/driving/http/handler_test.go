package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/carsensor/internal/adapter/driving/http"
	"github.com/ericfisherdev/carsensor/internal/application"
	"github.com/ericfisherdev/carsensor/internal/domain/model"
	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
)

// --- Mock implementations ---

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type mockListings struct {
	loginErr error
	fetchErr error
	result   model.PageResult

	// fetch, if set, replaces the canned result and error.
	fetch func(req model.PageRequest) (model.PageResult, error)

	mu      sync.Mutex
	lastReq model.PageRequest
}

func (m *mockListings) Login(_ context.Context, _, _ string) (model.Credential, error) {
	if m.loginErr != nil {
		return "", m.loginErr
	}
	return "tok", nil
}

func (m *mockListings) FetchPage(_ context.Context, req model.PageRequest) (model.PageResult, error) {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.fetch != nil {
		return m.fetch(req)
	}
	if m.fetchErr != nil {
		return model.PageResult{}, m.fetchErr
	}
	return m.result, nil
}

// --- Helper functions ---

func setupMux(t *testing.T, listings *mockListings, authenticated bool) (http.Handler, *application.Core) {
	t.Helper()
	store := &memStore{values: map[string]string{}}
	session := application.NewSessionStore(store, slog.Default())
	if authenticated {
		require.NoError(t, session.Establish(context.Background(), "tok"))
	}
	core := application.NewCore(session, listings, 20, nil, slog.Default())
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("carsensor_fetch_total 0\n"))
	})
	h := httphandler.NewHandler(core, metrics, slog.Default())
	return httphandler.NewServeMux(h, slog.Default()), core
}

func do(t *testing.T, mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func twoItemPage() model.PageResult {
	year := 2019
	price := int64(1980000)
	return model.PageResult{
		Items: []model.ListingRecord{
			{ID: 1, Brand: "Toyota", Model: "Prius", Year: &year, Price: &price, URL: "https://example.com/1"},
			{ID: 2, Brand: "Honda", Model: "Fit", URL: "https://example.com/2"},
		},
		Total:   42,
		Page:    2,
		PerPage: 20,
	}
}

// --- Tests ---

func TestSession(t *testing.T) {
	for _, authenticated := range []bool{false, true} {
		mux, _ := setupMux(t, &mockListings{}, authenticated)

		rec := do(t, mux, http.MethodGet, "/api/v1/session", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, authenticated, decode[httphandler.SessionResponse](t, rec).Authenticated)
	}
}

func TestLogin_Success(t *testing.T) {
	mux, core := setupMux(t, &mockListings{}, false)

	rec := do(t, mux, http.MethodPost, "/api/v1/login", `{"username":"alice","password":"secret"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, core.IsAuthenticated(context.Background()))
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		loginErr   error
		wantStatus int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"missing password", `{"username":"alice"}`, nil, http.StatusBadRequest},
		{"rejected", `{"username":"alice","password":"x"}`, driven.ErrUnauthorized, http.StatusUnauthorized},
		{"service down", `{"username":"alice","password":"x"}`, errors.New("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, core := setupMux(t, &mockListings{loginErr: tt.loginErr}, false)

			rec := do(t, mux, http.MethodPost, "/api/v1/login", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, core.IsAuthenticated(context.Background()))
		})
	}
}

func TestLogout(t *testing.T) {
	mux, core := setupMux(t, &mockListings{}, true)

	assert.Equal(t, http.StatusNoContent, do(t, mux, http.MethodPost, "/api/v1/logout", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, mux, http.MethodPost, "/api/v1/logout", "").Code)
	assert.False(t, core.IsAuthenticated(context.Background()))
}

func TestListListings_Unauthenticated(t *testing.T) {
	listings := &mockListings{result: twoItemPage()}
	mux, _ := setupMux(t, listings, false)

	rec := do(t, mux, http.MethodGet, "/api/v1/listings?page=1", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "login", body["redirect"])
	assert.Zero(t, listings.lastReq.Page, "guard must reject before fetching")
}

func TestListListings_Success(t *testing.T) {
	listings := &mockListings{result: twoItemPage()}
	mux, _ := setupMux(t, listings, true)

	rec := do(t, mux, http.MethodGet, "/api/v1/listings?page=2&brand=toyota&min_price=1000000&max_year=2020", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.PageResponse](t, rec)
	assert.Equal(t, "loaded", resp.State)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 42, resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
	assert.True(t, resp.HasNext)
	assert.True(t, resp.HasPrevious)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "¥1,980,000", resp.Items[0].PriceDisplay)
	assert.Nil(t, resp.Items[1].Year)
	assert.Equal(t, "—", resp.Items[1].PriceDisplay)

	assert.Equal(t, 2, listings.lastReq.Page)
	assert.Equal(t, 20, listings.lastReq.PerPage)
	assert.Equal(t, "toyota", listings.lastReq.Filter.Brand)
	require.NotNil(t, listings.lastReq.Filter.MinPrice)
	assert.Equal(t, int64(1000000), *listings.lastReq.Filter.MinPrice)
	require.NotNil(t, listings.lastReq.Filter.MaxYear)
	assert.Equal(t, 2020, *listings.lastReq.Filter.MaxYear)
}

func TestListListings_DefaultsToFirstPage(t *testing.T) {
	listings := &mockListings{result: model.PageResult{Items: []model.ListingRecord{}, Page: 1, PerPage: 20}}
	mux, _ := setupMux(t, listings, true)

	rec := do(t, mux, http.MethodGet, "/api/v1/listings", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.PageResponse](t, rec)
	assert.Equal(t, 1, listings.lastReq.Page)
	assert.Equal(t, 0, resp.TotalPages)
	assert.NotNil(t, resp.Items)
}

func TestListListings_BadQuery(t *testing.T) {
	for _, target := range []string{
		"/api/v1/listings?page=0",
		"/api/v1/listings?page=abc",
		"/api/v1/listings?min_price=cheap",
		"/api/v1/listings?max_year=-1",
	} {
		mux, _ := setupMux(t, &mockListings{}, true)

		rec := do(t, mux, http.MethodGet, target, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListListings_SessionExpired(t *testing.T) {
	mux, core := setupMux(t, &mockListings{fetchErr: driven.ErrUnauthorized}, true)

	rec := do(t, mux, http.MethodGet, "/api/v1/listings?page=2", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "login", body["redirect"])
	assert.Equal(t, "Session expired, please log in again", body["error"])
	assert.False(t, core.IsAuthenticated(context.Background()))

	select {
	case <-core.Redirects():
		t.Fatal("redirect signal should be consumed by the HTTP response")
	default:
	}
}

func TestListListings_Transient(t *testing.T) {
	mux, core := setupMux(t, &mockListings{fetchErr: errors.New("502 from upstream")}, true)

	rec := do(t, mux, http.MethodGet, "/api/v1/listings", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[httphandler.PageResponse](t, rec)
	assert.Equal(t, "failed", resp.State)
	assert.Equal(t, "Failed to load cars", resp.Error)
	assert.True(t, core.IsAuthenticated(context.Background()))
}

func TestListListings_ConcurrentFiltersStayWithTheirRequest(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var brands []string
	listings := &mockListings{
		fetch: func(req model.PageRequest) (model.PageResult, error) {
			mu.Lock()
			brands = append(brands, req.Filter.Brand)
			mu.Unlock()
			if req.Filter.Brand == "toyota" {
				started <- struct{}{}
				<-gate
			}
			return model.PageResult{
				Items:   []model.ListingRecord{{ID: 1, Brand: req.Filter.Brand, URL: "https://example.com/1"}},
				Total:   1,
				Page:    req.Page,
				PerPage: req.PerPage,
			}, nil
		},
	}
	mux, _ := setupMux(t, listings, true)

	stale := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/listings?brand=toyota", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		stale <- rec
	}()
	<-started

	rec := do(t, mux, http.MethodGet, "/api/v1/listings?brand=honda", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[httphandler.PageResponse](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "honda", page.Items[0].Brand)

	close(gate)
	first := <-stale
	assert.Equal(t, http.StatusConflict, first.Code, "a superseded request must not answer with another request's result")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"toyota", "honda"}, brands)
}

func TestHealth(t *testing.T) {
	mux, _ := setupMux(t, &mockListings{}, false)

	rec := do(t, mux, http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[httphandler.HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsRoute(t *testing.T) {
	mux, _ := setupMux(t, &mockListings{}, false)

	rec := do(t, mux, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "carsensor_fetch_total")
}

func TestRequestIDIsPropagated(t *testing.T) {
	mux, _ := setupMux(t, &mockListings{}, false)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestLogin_CrossOriginRejected(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
	}{
		{"foreign origin", "Origin", "https://evil.example"},
		{"fetch metadata", "Sec-Fetch-Site", "cross-site"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, core := setupMux(t, &mockListings{}, false)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"username":"alice","password":"secret"}`))
			req.Header.Set(tt.header, tt.value)
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.False(t, core.IsAuthenticated(context.Background()))
		})
	}
}

func TestLogin_SameOriginAllowed(t *testing.T) {
	mux, core := setupMux(t, &mockListings{}, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"username":"alice","password":"secret"}`))
	req.Header.Set("Origin", "http://"+req.Host)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, core.IsAuthenticated(context.Background()))
}
