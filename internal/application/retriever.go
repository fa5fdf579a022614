package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
)

var (
	// ErrInvalidPage is returned by FetchPage for a page number below 1.
	ErrInvalidPage = errors.New("page must be >= 1")

	// ErrSuperseded is returned with the current state when a fetch's
	// response was discarded because a newer fetch or session replaced it.
	ErrSuperseded = errors.New("fetch superseded")
)

// sessionClearer is the slice of SessionStore the retriever depends on.
type sessionClearer interface {
	Generation() uint64
	ClearGeneration(ctx context.Context, gen uint64) (bool, error)
}

// ListingRetriever drives paginated fetches and owns the RetrievalState.
//
// Each fetch is tagged with a sequence number taken when it starts. When a
// response arrives it is applied only if its sequence is still the latest;
// otherwise it is discarded. Superseded transport calls are not aborted.
//
// The retriever never clamps page numbers and never retries.
type ListingRetriever struct {
	listings driven.ListingService
	session  sessionClearer
	perPage  int
	recorder Recorder
	logger   *slog.Logger

	mu     sync.Mutex
	seq    uint64
	state  model.RetrievalState
	filter model.Filter

	redirects chan model.Redirect
}

// NewListingRetriever creates a retriever fetching perPage listings per page.
// perPage is fixed for the retriever's lifetime.
func NewListingRetriever(
	listings driven.ListingService,
	session sessionClearer,
	perPage int,
	recorder Recorder,
	logger *slog.Logger,
) *ListingRetriever {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingRetriever{
		listings:  listings,
		session:   session,
		perPage:   perPage,
		recorder:  recorder,
		logger:    logger,
		state:     model.IdleState(),
		redirects: make(chan model.Redirect, 1),
	}
}

// PerPage returns the fixed page size.
func (r *ListingRetriever) PerPage() int {
	return r.perPage
}

// State returns the current retrieval state.
func (r *ListingRetriever) State() model.RetrievalState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Filter returns the filter applied to subsequent fetches.
func (r *ListingRetriever) Filter() model.Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

// SetFilter replaces the filter for subsequent fetches. It does not fetch.
// Callers that share the retriever across requests should use FetchFiltered
// instead so the filter and the fetch cannot interleave with another caller.
func (r *ListingRetriever) SetFilter(f model.Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = f
}

// Redirects delivers a redirect instruction each time a fetch finds the
// session expired. At most one instruction is pending at a time.
func (r *ListingRetriever) Redirects() <-chan model.Redirect {
	return r.redirects
}

// Reset returns the retriever to Idle and discards any in-flight result.
func (r *ListingRetriever) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.state = model.IdleState()
}

// FetchPage fetches page with the current filter and blocks until the
// response arrives. It returns the state after the response was applied or,
// if a newer fetch started in the meantime, the current state and
// ErrSuperseded with the stale response discarded.
//
// Callers must clamp page to [1, max(TotalPages, 1)] beforehand; a page below
// 1 returns ErrInvalidPage without touching state.
func (r *ListingRetriever) FetchPage(ctx context.Context, page int) (model.RetrievalState, error) {
	return r.fetch(ctx, page, nil)
}

// FetchFiltered replaces the filter and fetches page with it as one step.
// The request is built from filter even if another caller changes the
// filter before the response arrives.
func (r *ListingRetriever) FetchFiltered(ctx context.Context, page int, filter model.Filter) (model.RetrievalState, error) {
	return r.fetch(ctx, page, &filter)
}

func (r *ListingRetriever) fetch(ctx context.Context, page int, filter *model.Filter) (model.RetrievalState, error) {
	if page < 1 {
		return r.State(), fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}

	// The session generation is read before the retriever lock so the two
	// locks are never nested in this direction.
	gen := r.session.Generation()

	r.mu.Lock()
	if filter != nil {
		r.filter = *filter
	}
	r.seq++
	seq := r.seq
	req := model.PageRequest{Page: page, PerPage: r.perPage, Filter: r.filter}
	// Entering Loading drops any previous error or result.
	r.state = model.RetrievalState{Status: model.StatusLoading, Page: page}
	r.mu.Unlock()

	start := time.Now()
	result, err := r.listings.FetchPage(ctx, req)
	latency := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	if seq != r.seq {
		r.logger.Debug("discarding superseded page result", "page", page, "seq", seq, "latest", r.seq)
		r.recorder.RecordFetch(OutcomeSuperseded, latency)
		return r.state, ErrSuperseded
	}

	switch {
	case err == nil:
		r.state = model.RetrievalState{Status: model.StatusLoaded, Result: &result, Page: page}
		r.recorder.RecordFetch(OutcomeLoaded, latency)

	case errors.Is(err, driven.ErrUnauthorized):
		// The credential must go even if the caller has already given up.
		cleared, clearErr := r.session.ClearGeneration(context.WithoutCancel(ctx), gen)
		if clearErr != nil {
			r.logger.Error("failed to clear expired session", "error", clearErr)
		}
		if !cleared {
			// A new session replaced the one this request ran under.
			r.state = model.IdleState()
			r.recorder.RecordFetch(OutcomeSuperseded, latency)
			r.logger.Debug("discarding rejection from replaced session", "page", page, "generation", gen)
			return r.state, ErrSuperseded
		}
		r.state = model.RetrievalState{Status: model.StatusFailed, Err: model.ErrorKindSessionExpired, Page: page}
		r.recorder.RecordFetch(OutcomeSessionExpired, latency)
		r.logger.Info("session expired during fetch", "page", page)
		r.signalRedirect()

	default:
		r.state = model.RetrievalState{Status: model.StatusFailed, Err: model.ErrorKindTransient, Page: page}
		r.recorder.RecordFetch(OutcomeTransient, latency)
		r.logger.Warn("page fetch failed", "page", page, "error", err)
	}

	return r.state, nil
}

// signalRedirect queues a login redirect without blocking. If one is already
// pending it is left in place.
func (r *ListingRetriever) signalRedirect() {
	select {
	case r.redirects <- model.Redirect{Target: model.LoginTarget, Reason: model.ErrorKindSessionExpired}:
	default:
	}
}
