package application

import (
	"context"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// authenticator is the slice of SessionStore the guard depends on.
type authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// RouteGuard decides whether a protected view may render. It holds no state
// of its own; every decision reads the live session.
type RouteGuard struct {
	session authenticator
}

// NewRouteGuard creates a RouteGuard over session.
func NewRouteGuard(session authenticator) *RouteGuard {
	return &RouteGuard{session: session}
}

// Decide returns Allow when a credential is held, otherwise a redirect to the
// login entry point. The caller performs the navigation.
func (g *RouteGuard) Decide(ctx context.Context) model.Decision {
	if g.session.IsAuthenticated(ctx) {
		return model.Decision{Allow: true}
	}
	return model.Decision{Redirect: model.LoginTarget}
}
