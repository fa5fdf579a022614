package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
)

// cacheResetter is implemented by ListingService adapters that keep response
// caches which must not outlive a session.
type cacheResetter interface {
	ResetCache()
}

// Core is the caller-facing surface presentation code uses: session queries,
// login and logout, page fetches, the retrieval state, route decisions, and
// redirect signals.
type Core struct {
	Session  *SessionStore
	Listings *ListingRetriever
	Guard    *RouteGuard

	api      driven.ListingService
	recorder Recorder
	logger   *slog.Logger

	// loginMu serialises login exchanges so two logins never race on the
	// credential slot.
	loginMu sync.Mutex
}

// NewCore wires the session store, retriever, and guard around api.
func NewCore(session *SessionStore, api driven.ListingService, perPage int, recorder Recorder, logger *slog.Logger) *Core {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Core{
		Session:  session,
		Listings: NewListingRetriever(api, session, perPage, recorder, logger),
		Guard:    NewRouteGuard(session),
		api:      api,
		recorder: recorder,
		logger:   logger,
	}
}

// IsAuthenticated reports whether a credential is held.
func (c *Core) IsAuthenticated(ctx context.Context) bool {
	return c.Session.IsAuthenticated(ctx)
}

// Decide returns the route decision for a protected view.
func (c *Core) Decide(ctx context.Context) model.Decision {
	return c.Guard.Decide(ctx)
}

// Login performs the login exchange and, on success, establishes the returned
// credential. Failures return a *model.LoginError and leave any stored
// session untouched.
func (c *Core) Login(ctx context.Context, username, password string) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	cred, err := c.api.Login(ctx, username, password)
	if err != nil {
		kind, outcome := model.ErrorKindTransient, OutcomeTransient
		if errors.Is(err, driven.ErrUnauthorized) {
			kind, outcome = model.ErrorKindLoginFailed, OutcomeLoginFailed
		}
		c.recorder.RecordLogin(outcome)
		c.logger.Info("login failed", "username", username, "kind", kind)
		return &model.LoginError{Kind: kind, Err: err}
	}

	// A new session starts from a clean slate. Fetches still in flight under
	// the old credential are discarded before the new one is stored.
	c.Listings.Reset()
	c.resetCache()

	if err := c.Session.Establish(ctx, cred); err != nil {
		c.recorder.RecordLogin(OutcomeTransient)
		return &model.LoginError{Kind: model.ErrorKindTransient, Err: err}
	}

	c.recorder.RecordLogin(OutcomeSuccess)
	c.logger.Info("login succeeded", "username", username)
	return nil
}

// Logout clears the credential and resets retrieval state. It is idempotent.
func (c *Core) Logout(ctx context.Context) error {
	c.Listings.Reset()
	c.resetCache()
	return c.Session.Clear(ctx)
}

// FetchPage fetches page through the retriever. See ListingRetriever.FetchPage.
func (c *Core) FetchPage(ctx context.Context, page int) (model.RetrievalState, error) {
	return c.Listings.FetchPage(ctx, page)
}

// FetchFiltered fetches page with filter. See ListingRetriever.FetchFiltered.
func (c *Core) FetchFiltered(ctx context.Context, page int, filter model.Filter) (model.RetrievalState, error) {
	return c.Listings.FetchFiltered(ctx, page, filter)
}

// State returns the current retrieval state.
func (c *Core) State() model.RetrievalState {
	return c.Listings.State()
}

// Redirects delivers redirect instructions raised by the retriever.
func (c *Core) Redirects() <-chan model.Redirect {
	return c.Listings.Redirects()
}

func (c *Core) resetCache() {
	if r, ok := c.api.(cacheResetter); ok {
		r.ResetCache()
	}
}
