// Package file implements the CredentialStore port on a single JSON file in
// the user's config directory.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialFile)(nil)

// CredentialFile stores credentials as a JSON object in one file. Writes go
// through a temp file and rename, so a concurrent reader in another process
// never sees a partially written file.
type CredentialFile struct {
	mu   sync.Mutex
	path string
}

// NewCredentialFile creates a CredentialFile at path. The parent directory is
// created with 0700 permissions if it does not exist.
func NewCredentialFile(path string) (*CredentialFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}
	return &CredentialFile{path: path}, nil
}

// Set stores or replaces the value for key.
func (f *CredentialFile) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

// Get retrieves the value for key.
// Returns ("", nil) if the file or the key does not exist.
func (f *CredentialFile) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Delete removes the value for key. The file is removed once empty.
func (f *CredentialFile) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)

	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove credential file: %w", err)
		}
		return nil
	}
	return f.write(values)
}

func (f *CredentialFile) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	values := map[string]string{}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode credential file %s: %w", f.path, err)
	}
	return values, nil
}

func (f *CredentialFile) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	// Tokens are secrets; keep the file owner-only regardless of umask.
	if err := os.Chmod(f.path, 0o600); err != nil {
		return fmt.Errorf("chmod credential file: %w", err)
	}
	return nil
}
