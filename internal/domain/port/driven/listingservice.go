package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// ErrUnauthorized is returned by ListingService when the remote service
// rejects the request's credentials (HTTP 401).
var ErrUnauthorized = errors.New("unauthorized")

// ListingService defines the driven port for the remote listing service.
// Any error other than ErrUnauthorized is treated as transient by callers.
type ListingService interface {
	// Login exchanges a username and password for an access token.
	Login(ctx context.Context, username, password string) (model.Credential, error)

	// FetchPage retrieves one page of listings. The adapter attaches the
	// current credential; callers never pass it explicitly.
	FetchPage(ctx context.Context, req model.PageRequest) (model.PageResult, error)
}

// CredentialSource supplies the credential the transport attaches to outgoing
// requests. ok is false when no credential is held.
type CredentialSource interface {
	CurrentCredential(ctx context.Context) (cred model.Credential, ok bool)
}
