// Package httphandler is the local HTTP surface over the listing client core.
package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/carsensor/internal/application"
	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	core    *application.Core
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil, in which case /metrics is
// not served.
func NewHandler(core *application.Core, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{core: core, metrics: metrics, logger: logger}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/session", h.Session)
	mux.HandleFunc("POST /api/v1/login", h.Login)
	mux.HandleFunc("POST /api/v1/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/listings", h.ListListings)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, sameOriginMiddleware(mux))
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Session reports whether a credential is currently held.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: h.core.IsAuthenticated(r.Context())})
}

// Login exchanges a username and password for a credential and stores it.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	err := h.core.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var loginErr *model.LoginError
		if errors.As(err, &loginErr) && loginErr.Kind == model.ErrorKindLoginFailed {
			writeError(w, http.StatusUnauthorized, loginErr.Kind.Message())
			return
		}
		h.logger.Error("login exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "login service unavailable")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Logout clears the stored credential. It succeeds even when no session exists.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.core.Logout(r.Context()); err != nil {
		// The session reads as unauthenticated regardless; report the storage fault.
		h.logger.Error("failed to clear credential", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListListings fetches one page of listings. Unauthenticated callers and
// callers whose session expires during the fetch are redirected to login.
func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if d := h.core.Decide(ctx); !d.Allow {
		writeRedirect(w, "not authenticated", d.Redirect)
		return
	}

	query := r.URL.Query()
	page := 1
	if v := query.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page number")
			return
		}
		page = n
	}

	filter, err := parseFilter(query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.core.FetchFiltered(ctx, page, filter)
	switch {
	case errors.Is(err, application.ErrSuperseded):
		// A newer fetch replaced this one before it completed. Its state may
		// already hold the newer request's result, so none is returned.
		writeError(w, http.StatusConflict, "superseded by a newer request")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case state.Status == model.StatusLoaded:
		writeJSON(w, http.StatusOK, toPageResponse(state))
	case state.Err == model.ErrorKindSessionExpired:
		h.drainRedirect()
		writeRedirect(w, state.Err.Message(), model.LoginTarget)
	default:
		writeJSON(w, http.StatusBadGateway, toPageResponse(state))
	}
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// drainRedirect consumes a pending redirect signal. The HTTP response already
// carries the redirect, so the signal must not linger for another surface.
func (h *Handler) drainRedirect() {
	select {
	case <-h.core.Redirects():
	default:
	}
}

// parseFilter reads listing filters from query parameters. Absent parameters
// leave the corresponding filter field unset.
func parseFilter(q url.Values) (model.Filter, error) {
	f := model.Filter{
		Brand: strings.TrimSpace(q.Get("brand")),
		Model: strings.TrimSpace(q.Get("model")),
		Color: strings.TrimSpace(q.Get("color")),
	}

	var err error
	if f.MinPrice, err = optionalInt64(q, "min_price"); err != nil {
		return model.Filter{}, err
	}
	if f.MaxPrice, err = optionalInt64(q, "max_price"); err != nil {
		return model.Filter{}, err
	}
	if f.MinYear, err = optionalInt(q, "min_year"); err != nil {
		return model.Filter{}, err
	}
	if f.MaxYear, err = optionalInt(q, "max_year"); err != nil {
		return model.Filter{}, err
	}
	return f, nil
}

func optionalInt64(q url.Values, key string) (*int64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &n, nil
}

func optionalInt(q url.Values, key string) (*int, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &n, nil
}
