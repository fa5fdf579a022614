// Package carsapi implements the ListingService port against the CarSensor
// REST API.
package carsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// ErrMalformedResponse is returned when a 2xx response does not decode into
// the documented payload, or violates its invariants.
var ErrMalformedResponse = errors.New("malformed response")

// Compile-time interface satisfaction check.
var _ driven.ListingService = (*Client)(nil)

// Options tunes the client transport stack. Zero values select defaults.
type Options struct {
	// Timeout bounds each request end to end. Default 20s.
	Timeout time.Duration
	// RateLimit is the maximum request rate in requests per second, with a
	// burst of the same size. Zero or negative disables limiting.
	RateLimit float64
	// Transport is the innermost round tripper. Default http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client implements the driven.ListingService port over HTTP.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	cache   *sessionCache
	logger  *slog.Logger
}

// NewClient creates a CarSensor API client with the following transport stack:
//  1. rate limiter (client-side throttle, waits rather than failing)
//  2. auth (bearer credential from creds, X-Request-ID, User-Agent)
//  3. httpcache (ETag/Last-Modified conditional requests, reset on logout)
//  4. revalidation (every cached response is revalidated before use)
//  5. opts.Transport
func NewClient(baseURL string, creds driven.CredentialSource, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parsing base URL %q: scheme must be http or https", baseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cache := newSessionCache()
	cacheTransport := httpcache.NewTransport(cache)
	cacheTransport.Transport = &revalidateTransport{next: opts.Transport}
	cacheTransport.MarkCachedResponses = true

	var rt http.RoundTripper = &authTransport{next: cacheTransport, creds: creds}
	if opts.RateLimit > 0 {
		burst := max(int(opts.RateLimit), 1)
		rt = &rateLimitTransport{next: rt, limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), burst)}
	}

	return &Client{
		http:    &http.Client{Transport: rt, Timeout: opts.Timeout},
		baseURL: u,
		cache:   cache,
		logger:  opts.Logger,
	}, nil
}

// ResetCache drops every cached response. Called when the session ends.
func (c *Client) ResetCache() {
	c.cache.Reset()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges username and password for an access token.
// A 401 response is reported as driven.ErrUnauthorized.
func (c *Client) Login(ctx context.Context, username, password string) (model.Credential, error) {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("marshaling login request: %w", err)
	}

	// Login is the one call made before a credential exists.
	req, err := http.NewRequestWithContext(withAnonymous(ctx), http.MethodPost, c.endpoint("/api/login", nil), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out loginResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("login: %w: empty access_token", ErrMalformedResponse)
	}
	return model.Credential(out.AccessToken), nil
}

type carJSON struct {
	ID    int64   `json:"id"`
	Brand string  `json:"brand"`
	Model string  `json:"model"`
	Year  *int    `json:"year"`
	Price *int64  `json:"price"`
	Color *string `json:"color"`
	URL   string  `json:"url"`
}

type carsResponse struct {
	Items   []carJSON `json:"items"`
	Total   int       `json:"total"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
}

// FetchPage retrieves one page of listings. A 401 response is reported as
// driven.ErrUnauthorized; every other failure is returned wrapped.
func (c *Client) FetchPage(ctx context.Context, pr model.PageRequest) (model.PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/cars", pageQuery(pr)), nil)
	if err != nil {
		return model.PageResult{}, fmt.Errorf("creating cars request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var out carsResponse
	if err := c.do(req, &out); err != nil {
		return model.PageResult{}, fmt.Errorf("fetching cars page %d: %w", pr.Page, err)
	}

	if err := validatePage(out); err != nil {
		return model.PageResult{}, fmt.Errorf("fetching cars page %d: %w", pr.Page, err)
	}

	return mapPage(out), nil
}

// do executes req and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("carsapi call",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"from_cache", resp.Header.Get(httpcache.XFromCache) == "1",
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return driven.ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// pageQuery builds the query string for a page request. Unset filter fields
// are omitted.
func pageQuery(pr model.PageRequest) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(pr.Page))
	q.Set("per_page", strconv.Itoa(pr.PerPage))

	f := pr.Filter
	if f.Brand != "" {
		q.Set("brand", f.Brand)
	}
	if f.Model != "" {
		q.Set("model", f.Model)
	}
	if f.Color != "" {
		q.Set("color", f.Color)
	}
	if f.MinPrice != nil {
		q.Set("min_price", strconv.FormatInt(*f.MinPrice, 10))
	}
	if f.MaxPrice != nil {
		q.Set("max_price", strconv.FormatInt(*f.MaxPrice, 10))
	}
	if f.MinYear != nil {
		q.Set("min_year", strconv.Itoa(*f.MinYear))
	}
	if f.MaxYear != nil {
		q.Set("max_year", strconv.Itoa(*f.MaxYear))
	}
	return q
}

// validatePage rejects payloads that break the page invariants.
func validatePage(p carsResponse) error {
	switch {
	case p.Page < 1:
		return fmt.Errorf("%w: page %d", ErrMalformedResponse, p.Page)
	case p.PerPage < 1:
		return fmt.Errorf("%w: per_page %d", ErrMalformedResponse, p.PerPage)
	case p.Total < 0:
		return fmt.Errorf("%w: total %d", ErrMalformedResponse, p.Total)
	case len(p.Items) > p.PerPage:
		return fmt.Errorf("%w: %d items exceed per_page %d", ErrMalformedResponse, len(p.Items), p.PerPage)
	}
	return nil
}

func mapPage(p carsResponse) model.PageResult {
	items := make([]model.ListingRecord, 0, len(p.Items))
	for _, car := range p.Items {
		items = append(items, model.ListingRecord{
			ID:    car.ID,
			Brand: car.Brand,
			Model: car.Model,
			Year:  car.Year,
			Price: car.Price,
			Color: car.Color,
			URL:   car.URL,
		})
	}
	return model.PageResult{
		Items:   items,
		Total:   p.Total,
		Page:    p.Page,
		PerPage: p.PerPage,
	}
}
