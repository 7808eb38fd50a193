package providers_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kapsel/internal/conda"
	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/internal/testutil"
	"github.com/systmms/kapsel/pkg/requirement"
)

func condaInput(t *testing.T, packages ...string) requirement.CheckInput {
	t.Helper()
	in := newInput(t, requirement.Environ{"PATH": "/usr/bin"})
	in.EnvSpecs = map[string]requirement.EnvSpec{
		"default": {Name: "default", Packages: packages},
		"py2":     {Name: "py2", Packages: []string{"python=2.7"}},
	}
	return in
}

func TestCondaEnvCheck(t *testing.T) {
	t.Parallel()

	manager := testutil.NewFakeCondaManager()
	registry := providers.NewRegistry(providers.WithCondaManager(manager))
	req := registry.NewCondaEnvRequirement("")

	in := condaInput(t, "numpy", "pandas>=0.20")
	prefix := providers.EnvPrefix(in.ProjectDir, "default")

	status := req.CheckStatus(context.Background(), in)
	assert.False(t, status.Satisfied())
	assert.Contains(t, status.Description(), "does not exist")
	assert.Empty(t, status.Errors())

	manager.AddPrefix(prefix, "numpy")
	status = req.CheckStatus(context.Background(), in)
	assert.False(t, status.Satisfied())
	assert.Equal(t, "Conda environment 'default' is missing packages: pandas", status.Description())

	manager.AddPrefix(prefix, "numpy", "pandas", "extra-but-harmless")
	status = req.CheckStatus(context.Background(), in)
	require.True(t, status.Satisfied())
	exports := status.Exports()
	assert.Equal(t, prefix, exports["CONDA_PREFIX"])
	assert.Equal(t, prefix, exports["CONDA_ENV_PATH"])
	assert.Equal(t, conda.BinDir(prefix)+string(os.PathListSeparator)+"/usr/bin", exports["PATH"])
}

func TestCondaEnvCheckUnknownSpec(t *testing.T) {
	t.Parallel()

	registry := providers.NewRegistry(providers.WithCondaManager(testutil.NewFakeCondaManager()))
	req := registry.NewCondaEnvRequirement("")
	in := condaInput(t)
	in.Overrides = requirement.UserConfigOverrides{EnvSpecName: "nope"}

	status := req.CheckStatus(context.Background(), in)
	assert.False(t, status.Satisfied())
	assert.Equal(t, []string{"Environment spec 'nope' does not exist in this project."}, status.Errors())
}

func TestCondaEnvOverridePicksSpec(t *testing.T) {
	t.Parallel()

	manager := testutil.NewFakeCondaManager()
	registry := providers.NewRegistry(providers.WithCondaManager(manager))
	req := registry.NewCondaEnvRequirement("")
	p, _ := req.Provider()

	in := condaInput(t, "numpy")
	in.Overrides = requirement.UserConfigOverrides{EnvSpecName: "py2"}

	result, err := p.Fix(context.Background(), req, &requirement.FixContext{Input: in, Mode: requirement.ProvideDevelopment})
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, []string{filepath.Join(in.ProjectDir, "envs", "py2")}, manager.Created)
}

func TestCondaEnvFix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		existing    []string
		createErr   error
		installErr  error
		wantCreated bool
		wantInstall []string
		wantError   string
	}{
		{name: "creates_missing_prefix", wantCreated: true},
		{name: "installs_missing_packages", existing: []string{"numpy"}, wantInstall: []string{"pandas>=0.20"}},
		{name: "create_failure_is_captured", createErr: &conda.Error{Command: "conda create", Stderr: "PackagesNotFoundError: pandas"}, wantError: "Check the package names"},
		{name: "install_failure_is_captured", existing: []string{"numpy"}, installErr: errors.New(`exec: "conda": executable file not found in $PATH`), wantError: "Miniconda"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			manager := testutil.NewFakeCondaManager()
			manager.CreateErr = tt.createErr
			manager.InstallErr = tt.installErr
			registry := providers.NewRegistry(providers.WithCondaManager(manager))
			req := registry.NewCondaEnvRequirement("")
			p, _ := req.Provider()

			in := condaInput(t, "numpy", "pandas>=0.20")
			if tt.existing != nil {
				manager.AddPrefix(providers.EnvPrefix(in.ProjectDir, "default"), tt.existing...)
			}

			result, err := p.Fix(context.Background(), req, &requirement.FixContext{Input: in, Mode: requirement.ProvideProduction})
			require.NoError(t, err, "external failures never escape as errors")

			if tt.wantError != "" {
				require.True(t, result.Failed())
				assert.Contains(t, result.Errors[0], tt.wantError)
				return
			}

			assert.False(t, result.Failed())
			assert.Equal(t, tt.wantCreated, len(manager.Created) == 1)
			if tt.wantInstall != nil {
				assert.Equal(t, [][]string{tt.wantInstall}, manager.Installs)
			}
			assert.True(t, req.CheckStatus(context.Background(), in).Satisfied())
		})
	}
}

func TestCondaEnvFixCheckModeDoesNothing(t *testing.T) {
	t.Parallel()

	manager := testutil.NewFakeCondaManager()
	registry := providers.NewRegistry(providers.WithCondaManager(manager))
	req := registry.NewCondaEnvRequirement("")
	p, _ := req.Provider()

	_, err := p.Fix(context.Background(), req, &requirement.FixContext{Input: condaInput(t, "numpy"), Mode: requirement.ProvideCheck})
	require.NoError(t, err)
	assert.Empty(t, manager.Created)
}

func TestCondaEnvClean(t *testing.T) {
	t.Parallel()

	registry := providers.NewRegistry(providers.WithCondaManager(testutil.NewFakeCondaManager()))
	req := registry.NewCondaEnvRequirement("")
	p, _ := req.Provider()

	in := condaInput(t)
	prefix := providers.EnvPrefix(in.ProjectDir, "default")
	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "conda-meta"), 0755))

	result := p.(requirement.Cleaner).Clean(context.Background(), req, &requirement.FixContext{Input: in})
	assert.False(t, result.Failed())
	_, err := os.Stat(prefix)
	assert.True(t, os.IsNotExist(err))
}
