package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
)

// credentialKey is the single storage key the session credential lives under.
const credentialKey = "access_token"

// Compile-time interface satisfaction check.
var _ driven.CredentialSource = (*SessionStore)(nil)

// SessionStore is the single source of truth for whether the client holds a
// credential. Every read goes to the backing CredentialStore, so a credential
// written or removed by another process is observed on the next query.
//
// Establish and Clear hold the write lock for the duration of the storage
// call; readers hold the read lock, so no reader observes a write in progress.
type SessionStore struct {
	mu     sync.RWMutex
	store  driven.CredentialStore
	logger *slog.Logger

	// revoked is set when Clear could not delete the stored credential. It
	// forces the unauthenticated state until the next successful Establish
	// or Clear.
	revoked bool

	// gen changes on every Establish and Clear so callers can tell whether
	// the session they acted under is still the current one.
	gen uint64
}

// NewSessionStore creates a SessionStore backed by store.
func NewSessionStore(store driven.CredentialStore, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{store: store, logger: logger}
}

// Establish persists cred as the active credential. The credential's contents
// are not validated; the remote service decides validity on the next request.
func (s *SessionStore) Establish(ctx context.Context, cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, credentialKey, cred.Value()); err != nil {
		return fmt.Errorf("%w: establish session: %v", driven.ErrStorageUnavailable, err)
	}
	s.revoked = false
	s.gen++
	s.logger.Info("session established")
	return nil
}

// Clear removes the persisted credential. Clearing an empty store is a no-op.
// If storage cannot be written, the store still reports unauthenticated from
// then on and the error is returned for logging.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// Generation identifies the current session. It changes on every Establish
// and Clear.
func (s *SessionStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// ClearGeneration clears the session only if it is still generation gen, so a
// rejection observed under an old credential cannot remove a newer one. It
// reports whether the clear was attempted.
func (s *SessionStore) ClearGeneration(ctx context.Context, gen uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		s.logger.Debug("skipping clear for replaced session", "generation", gen, "current", s.gen)
		return false, nil
	}
	return true, s.clearLocked(ctx)
}

func (s *SessionStore) clearLocked(ctx context.Context) error {
	s.gen++
	if err := s.store.Delete(ctx, credentialKey); err != nil {
		s.revoked = true
		return fmt.Errorf("%w: clear session: %v", driven.ErrStorageUnavailable, err)
	}
	s.revoked = false
	s.logger.Info("session cleared")
	return nil
}

// IsAuthenticated reports whether a credential is currently persisted.
// It never performs network I/O and never fails: an unreadable store is
// reported as unauthenticated.
func (s *SessionStore) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.CurrentCredential(ctx)
	return ok
}

// CurrentCredential returns the persisted credential for attaching to
// outgoing requests. ok is false when none is held or storage is unreadable.
func (s *SessionStore) CurrentCredential(ctx context.Context) (model.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.revoked {
		return "", false
	}

	value, err := s.store.Get(ctx, credentialKey)
	if err != nil {
		s.logger.Warn("credential storage unreadable, treating session as unauthenticated", "error", err)
		return "", false
	}
	if value == "" {
		return "", false
	}
	return model.Credential(value), true
}
