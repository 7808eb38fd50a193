package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/prepare"
	"github.com/systmms/kapsel/internal/project"
	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/internal/testutil"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestApplyEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		env      map[string]string
		wantDir  string
		wantMode string
	}{
		{
			name:     "fills_unset_fields",
			env:      map[string]string{EnvDirectory: "/srv/app", EnvMode: "check"},
			wantDir:  "/srv/app",
			wantMode: "check",
		},
		{
			name:     "flags_win",
			cfg:      Config{Directory: "here", Mode: "ask"},
			env:      map[string]string{EnvDirectory: "/srv/app", EnvMode: "check"},
			wantDir:  "here",
			wantMode: "ask",
		},
		{
			name: "empty_values_ignored",
			env:  map[string]string{EnvDirectory: "", EnvMode: ""},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			cfg.ApplyEnvironment(lookupFrom(tt.env))
			assert.Equal(t, tt.wantDir, cfg.Directory)
			assert.Equal(t, tt.wantMode, cfg.Mode)
		})
	}
}

func TestUIMode(t *testing.T) {
	t.Parallel()

	mode, err := (&Config{}).UIMode()
	require.NoError(t, err)
	assert.Equal(t, prepare.DefaultUIMode, mode)

	mode, err = (&Config{Mode: "production_defaults"}).UIMode()
	require.NoError(t, err)
	assert.Equal(t, prepare.UIModeProductionDefaults, mode)

	_, err = (&Config{Mode: "yolo"}).UIMode()
	var cfgErr kerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "mode", cfgErr.Field)
	assert.Contains(t, cfgErr.Suggestion, "development_defaults_or_ask")
}

func TestLoadProject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, project.Filename),
		[]byte("env_specs:\n  default: {}\n  py2: {}\n"), 0644))

	p, err := (&Config{Directory: dir}).LoadProject(providers.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, dir, p.Dir())

	_, err = (&Config{Directory: dir, EnvSpec: "py3"}).LoadProject(providers.NewRegistry())
	var cfgErr kerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Available env specs: default, py2", cfgErr.Suggestion)

	_, err = (&Config{Directory: filepath.Join(dir, "missing")}).LoadProject(providers.NewRegistry())
	var projErr kerrors.ProjectError
	assert.ErrorAs(t, err, &projErr)
}

func TestOpenStateUsesConfiguredSecrets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	secrets := testutil.NewMemorySecrets()
	cfg := &Config{Directory: dir, Secrets: secrets}
	p, err := cfg.LoadProject(providers.NewRegistry())
	require.NoError(t, err)

	state, err := cfg.OpenState(p)
	require.NoError(t, err)
	defer state.Close()
	require.NoError(t, state.SetSecret("DB_PASSWORD", "pw"))

	v, ok := secrets.Value("DB_PASSWORD")
	require.True(t, ok)
	assert.Equal(t, "pw", v)
}

func TestOpenStateInvalidFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kapsel-local.yml"), []byte("a: [\n"), 0600))
	cfg := &Config{Directory: dir, Secrets: testutil.NewMemorySecrets()}
	p, err := cfg.LoadProject(providers.NewRegistry())
	require.NoError(t, err)

	_, err = cfg.OpenState(p)
	var userErr kerrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Failed to read the local state", userErr.Message)
}

func TestPrepareOptions(t *testing.T) {
	t.Parallel()

	opts, err := (&Config{Mode: "check"}).PrepareOptions()
	require.NoError(t, err)
	assert.Equal(t, prepare.UIModeCheck, opts.Mode)
	assert.NotNil(t, opts.Logger)
	assert.Nil(t, opts.Metrics)

	assert.Equal(t, "py2", (&Config{EnvSpec: "py2"}).Overrides().EnvSpecName)
	assert.NoError(t, (&Config{}).WriteMetrics())
}
