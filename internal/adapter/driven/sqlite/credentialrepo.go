package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/carsensor/internal/domain/port/driven"
)

// ErrEncryptionKeyNotSet is returned by Get when the stored value was written
// encrypted but the repo was constructed without a key.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set CARSENSOR_SECRET_KEY")

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// With a key, values are encrypted with AES-256-GCM before write and
// decrypted after read. Without one they are stored as-is.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores plaintext.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to store values unencrypted.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &CredentialRepo{db: db, key: key}, nil
}

// Set stores or replaces the value for key. INSERT OR REPLACE runs as a single
// statement, so readers see either the previous row or the new one.
func (r *CredentialRepo) Set(ctx context.Context, key, value string) error {
	stored, encrypted := value, false
	if r.key != nil {
		var err error
		stored, err = r.encrypt(value)
		if err != nil {
			return err
		}
		encrypted = true
	}

	const query = `INSERT OR REPLACE INTO credentials (key, value, encrypted, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	_, err := r.db.Writer.ExecContext(ctx, query, key, stored, encrypted)
	if err != nil {
		return fmt.Errorf("set credential %q: %w", key, err)
	}
	return nil
}

// Get retrieves the value for key.
// Returns ("", nil) if no value exists for that key.
func (r *CredentialRepo) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value, encrypted FROM credentials WHERE key = ?`
	var (
		stored    string
		encrypted bool
	)
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&stored, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", key, err)
	}

	if !encrypted {
		return stored, nil
	}
	if r.key == nil {
		return "", ErrEncryptionKeyNotSet
	}

	plaintext, err := r.decrypt(stored)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %q: %w", key, err)
	}
	return plaintext, nil
}

// Delete removes the value for key.
func (r *CredentialRepo) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM credentials WHERE key = ?`
	_, err := r.db.Writer.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete credential %q: %w", key, err)
	}
	return nil
}

func (r *CredentialRepo) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// encrypt returns a base64-encoded string containing the nonce (12 bytes)
// prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
