package driven

import (
	"context"
	"errors"
)

// ErrStorageUnavailable is returned by CredentialStore operations when the
// backing storage cannot be read or written.
var ErrStorageUnavailable = errors.New("credential storage unavailable")

// CredentialStore defines the driven port for durable credential persistence.
// Values cross this boundary as plaintext; adapters may encrypt at rest.
type CredentialStore interface {
	// Set stores or replaces the value for key. The write is atomic: a
	// concurrent Get observes either the old value or the new one.
	Set(ctx context.Context, key, value string) error

	// Get retrieves the value for key.
	// Returns ("", nil) if no value exists for that key.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes the value for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
