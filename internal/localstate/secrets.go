package localstate

import (
	"errors"
	"fmt"

	"github.com/systmms/kapsel/internal/secure"
	"github.com/zalando/go-keyring"
)

// ErrSecretNotFound is returned by a SecretStore for a missing entry.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore is the encrypted section of the local state.
type SecretStore interface {
	Get(name string) (string, error)
	Set(name, value string) error
	Delete(name string) error
}

// KeyringStore keeps secrets in the OS keyring under one service per project.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store for the project in the absolute directory dir.
func NewKeyringStore(dir string) *KeyringStore {
	return &KeyringStore{service: "kapsel:" + dir}
}

// Service returns the keyring service name.
func (k *KeyringStore) Service() string {
	return k.service
}

// Get reads a secret.
func (k *KeyringStore) Get(name string) (string, error) {
	v, err := keyring.Get(k.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("keyring read failed: %w", err)
	}
	return v, nil
}

// Set writes a secret.
func (k *KeyringStore) Set(name, value string) error {
	if err := keyring.Set(k.service, name, value); err != nil {
		return fmt.Errorf("keyring write failed: %w", err)
	}
	return nil
}

// Delete removes a secret; deleting a missing secret is not an error.
func (k *KeyringStore) Delete(name string) error {
	if err := keyring.Delete(k.service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete failed: %w", err)
	}
	return nil
}

// GetSecret returns the encrypted value for name. Values are served from the
// in-memory cache once read.
func (f *File) GetSecret(name string) (string, bool) {
	if buf, ok := f.cache[name]; ok {
		v, err := buf.Reveal()
		if err == nil {
			return v, v != ""
		}
	}
	if f.secrets == nil {
		return "", false
	}
	v, err := f.secrets.Get(name)
	if err != nil || v == "" {
		return "", false
	}
	f.remember(name, v)
	return v, true
}

// SetSecret stores an encrypted value. The value stays available for the rest
// of this run even if the secret store rejects it; the error tells the caller
// the value was not persisted.
func (f *File) SetSecret(name, value string) error {
	f.remember(name, value)
	if f.secrets == nil {
		return fmt.Errorf("no encrypted storage available for %s", name)
	}
	return f.secrets.Set(name, value)
}

// UnsetSecret removes an encrypted value.
func (f *File) UnsetSecret(name string) error {
	if buf, ok := f.cache[name]; ok {
		buf.Destroy()
		delete(f.cache, name)
	}
	if f.secrets == nil {
		return nil
	}
	return f.secrets.Delete(name)
}

func (f *File) remember(name, value string) {
	if old, ok := f.cache[name]; ok {
		old.Destroy()
	}
	buf, err := secure.NewSecureString(value)
	if err != nil {
		return
	}
	f.cache[name] = buf
}
