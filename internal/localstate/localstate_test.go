package localstate_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/kapsel/internal/localstate"
	"github.com/systmms/kapsel/pkg/requirement"
)

var _ requirement.LocalState = (*localstate.File)(nil)

type mapStore struct {
	values map[string]string
	setErr error
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string]string)}
}

func (m *mapStore) Get(name string) (string, error) {
	v, ok := m.values[name]
	if !ok {
		return "", localstate.ErrSecretNotFound
	}
	return v, nil
}

func (m *mapStore) Set(name, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[name] = value
	return nil
}

func (m *mapStore) Delete(name string) error {
	delete(m.values, name)
	return nil
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f, err := localstate.Load(dir, nil)
	require.NoError(t, err)

	_, ok := f.GetValue("variables", "FOO")
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(dir, localstate.Filename), f.Path())

	// nothing changed, nothing written
	require.NoError(t, f.Save())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, localstate.Filename), []byte("variables: [unclosed"), 0600))

	_, err := localstate.Load(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), localstate.Filename)
}

func TestSetValueRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f, err := localstate.Load(dir, nil)
	require.NoError(t, err)

	f.SetValue("bar", "variables", "FOO")
	f.SetValue("/tmp/data.csv", "downloads", "DATA")
	require.NoError(t, f.Save())

	info, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := localstate.Load(dir, nil)
	require.NoError(t, err)

	v, ok := reloaded.GetValue("variables", "FOO")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	v, ok = reloaded.GetValue("downloads", "DATA")
	require.True(t, ok)
	assert.Equal(t, "/tmp/data.csv", v)
}

func TestUnsetValuePrunesEmptySections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f, err := localstate.Load(dir, nil)
	require.NoError(t, err)

	f.SetValue("bar", "variables", "FOO")
	require.NoError(t, f.Save())

	f.UnsetValue("variables", "FOO")
	_, ok := f.GetValue("variables")
	assert.False(t, ok)

	// empty state removes the file
	require.NoError(t, f.Save())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestUnsetMissingValueIsNoop(t *testing.T) {
	t.Parallel()

	f, err := localstate.Load(t.TempDir(), nil)
	require.NoError(t, err)

	f.UnsetValue("variables", "NOPE")
	require.NoError(t, f.Save())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestServiceRunState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f, err := localstate.Load(dir, nil)
	require.NoError(t, err)

	assert.Empty(t, f.ServiceRunState("REDIS_URL"))

	f.SetServiceRunState("REDIS_URL", map[string]interface{}{"port": 6380, "pid": 4242})
	require.NoError(t, f.Save())

	reloaded, err := localstate.Load(dir, nil)
	require.NoError(t, err)
	state := reloaded.ServiceRunState("REDIS_URL")
	assert.Equal(t, 6380, state["port"])
	assert.Equal(t, []string{"REDIS_URL"}, reloaded.ServiceRunStateNames())

	reloaded.SetServiceRunState("REDIS_URL", nil)
	assert.Empty(t, reloaded.ServiceRunStateNames())
}

func TestSecretsNeverReachTheFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newMapStore()
	f, err := localstate.Load(dir, store)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.SetSecret("DB_PASSWORD", "hunter2"))
	f.SetValue("plain", "variables", "FOO")
	require.NoError(t, f.Save())

	raw, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.Equal(t, "hunter2", store.values["DB_PASSWORD"])

	v, ok := f.GetSecret("DB_PASSWORD")
	require.True(t, ok)
	assert.Equal(t, "hunter2", v)

	require.NoError(t, f.UnsetSecret("DB_PASSWORD"))
	_, ok = f.GetSecret("DB_PASSWORD")
	assert.False(t, ok)
}

func TestSecretKeptInMemoryWhenStoreFails(t *testing.T) {
	t.Parallel()

	store := newMapStore()
	store.setErr = errors.New("keyring locked")
	f, err := localstate.Load(t.TempDir(), store)
	require.NoError(t, err)
	defer f.Close()

	err = f.SetSecret("API_SECRET", "s3cr3t")
	require.Error(t, err)

	v, ok := f.GetSecret("API_SECRET")
	require.True(t, ok)
	assert.Equal(t, "s3cr3t", v)
}

func TestSecretReadFromStore(t *testing.T) {
	t.Parallel()

	store := newMapStore()
	store.values["TOKEN_SECRET"] = "abc"
	f, err := localstate.Load(t.TempDir(), store)
	require.NoError(t, err)
	defer f.Close()

	v, ok := f.GetSecret("TOKEN_SECRET")
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	// served from cache after the store forgets it
	delete(store.values, "TOKEN_SECRET")
	v, ok = f.GetSecret("TOKEN_SECRET")
	require.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store := localstate.NewKeyringStore("/home/user/project")
	assert.Equal(t, "kapsel:/home/user/project", store.Service())

	_, err := store.Get("DB_PASSWORD")
	assert.ErrorIs(t, err, localstate.ErrSecretNotFound)

	require.NoError(t, store.Set("DB_PASSWORD", "pw"))
	v, err := store.Get("DB_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "pw", v)

	require.NoError(t, store.Delete("DB_PASSWORD"))
	require.NoError(t, store.Delete("DB_PASSWORD"))
	_, err = store.Get("DB_PASSWORD")
	assert.ErrorIs(t, err, localstate.ErrSecretNotFound)
}
