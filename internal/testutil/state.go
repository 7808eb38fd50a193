package testutil

import (
	"errors"
	"sync"
)

// errSecretNotFound mirrors localstate.ErrSecretNotFound without importing it.
var errSecretNotFound = errors.New("secret not found")

// MemorySecrets is an in-memory localstate.SecretStore.
type MemorySecrets struct {
	mu     sync.Mutex
	values map[string]string

	// SetErr makes every Set fail, simulating a locked keyring.
	SetErr error
}

// NewMemorySecrets creates an empty store.
func NewMemorySecrets() *MemorySecrets {
	return &MemorySecrets{values: make(map[string]string)}
}

// Get implements localstate.SecretStore.
func (m *MemorySecrets) Get(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	if !ok {
		return "", errSecretNotFound
	}
	return v, nil
}

// Set implements localstate.SecretStore.
func (m *MemorySecrets) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[name] = value
	return nil
}

// Delete implements localstate.SecretStore.
func (m *MemorySecrets) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
	return nil
}

// Value returns a stored secret for assertions.
func (m *MemorySecrets) Value(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	return v, ok
}
