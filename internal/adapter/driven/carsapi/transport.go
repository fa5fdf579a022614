package carsapi

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
)

const userAgent = "carsensor-client/1.0"

// sessionCache is an httpcache.Cache whose contents can be dropped in one step
// when the session ends, so no cached page outlives the credential it was
// fetched with.
type sessionCache struct {
	mu    sync.RWMutex
	inner *httpcache.MemoryCache
}

var _ httpcache.Cache = (*sessionCache)(nil)

func newSessionCache() *sessionCache {
	return &sessionCache{inner: httpcache.NewMemoryCache()}
}

func (c *sessionCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.Get(key)
}

func (c *sessionCache) Set(key string, resp []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.inner.Set(key, resp)
}

func (c *sessionCache) Delete(key string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.inner.Delete(key)
}

// Reset discards every cached response.
func (c *sessionCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner = httpcache.NewMemoryCache()
}

// anonymousKey marks a request context whose request is sent without a
// credential.
type anonymousKey struct{}

func withAnonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

// authTransport attaches the current bearer credential, a request ID, and the
// client user agent to every outgoing request. A non-anonymous request with no
// credential held fails with driven.ErrUnauthorized and is never sent.
type authTransport struct {
	next  http.RoundTripper
	creds driven.CredentialSource
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var cred string
	if t.creds != nil && req.Context().Value(anonymousKey{}) == nil {
		c, ok := t.creds.CurrentCredential(req.Context())
		if !ok {
			if req.Body != nil {
				_ = req.Body.Close()
			}
			return nil, driven.ErrUnauthorized
		}
		cred = c.Value()
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", userAgent)
	if r.Header.Get("X-Request-ID") == "" {
		r.Header.Set("X-Request-ID", uuid.NewString())
	}
	if cred != "" {
		r.Header.Set("Authorization", "Bearer "+cred)
	}
	return t.next.RoundTrip(r)
}

// rateLimitTransport blocks each request until the limiter grants a token or
// the request context is done.
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// revalidateTransport sits below the cache and marks every response no-cache,
// so a cached page is never served without asking the server first. The
// server must see each fetch to report an expired credential.
type revalidateTransport struct {
	next http.RoundTripper
}

func (t *revalidateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	cc := resp.Header.Get("Cache-Control")
	if !strings.Contains(cc, "no-store") && !strings.Contains(cc, "no-cache") {
		resp.Header.Set("Cache-Control", "no-cache")
	}
	return resp, nil
}
