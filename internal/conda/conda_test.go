package conda_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kapsel/internal/conda"
	"github.com/systmms/kapsel/internal/testutil"
)

func TestPackageName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec string
		want string
	}{
		{"numpy", "numpy"},
		{"numpy=1.11", "numpy"},
		{"python >=3.5", "python"},
		{"conda-forge::bokeh", "bokeh"},
		{"Pandas!=0.20", "pandas"},
		{"  redis-py  ", "redis-py"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, conda.PackageName(tt.spec))
		})
	}
}

func TestMissing(t *testing.T) {
	t.Parallel()

	installed := map[string]string{"python": "3.6.0", "numpy": "1.11.0"}
	assert.Empty(t, conda.Missing([]string{"python", "numpy=1.11"}, installed))
	assert.Equal(t, []string{"bokeh", "pandas"}, conda.Missing([]string{"pandas", "bokeh", "numpy", "pandas"}, installed))
}

func TestInstalledPackages(t *testing.T) {
	t.Parallel()

	prefix := t.TempDir()
	meta := filepath.Join(prefix, "conda-meta")
	require.NoError(t, os.MkdirAll(meta, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(meta, "numpy-1.11.0-py36_0.json"),
		[]byte(`{"name": "numpy", "version": "1.11.0"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(meta, "ca-certificates-2017.1-0.json"),
		[]byte(`not json`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(meta, "history"), []byte("ignored"), 0644))

	installed, err := conda.InstalledPackages(prefix)
	require.NoError(t, err)
	assert.Equal(t, "1.11.0", installed["numpy"])
	assert.Contains(t, installed, "ca-certificates")
	assert.Len(t, installed, 2)
}

func TestInstalledPackagesNotAnEnvironment(t *testing.T) {
	t.Parallel()

	_, err := conda.InstalledPackages(t.TempDir())
	assert.Error(t, err)
}

func TestCLICreateAndInstall(t *testing.T) {
	executor := testutil.NewFakeExecutor()
	t.Setenv("CONDA_EXE", "/opt/conda/bin/conda")
	cli := conda.NewCLI(executor)
	assert.Equal(t, "/opt/conda/bin/conda", cli.Executable())

	err := cli.Create(context.Background(), "/p/envs/default", []string{"numpy"}, []string{"conda-forge"})
	require.NoError(t, err)

	err = cli.Install(context.Background(), "/p/envs/default", nil, nil)
	require.NoError(t, err)

	calls := executor.Calls()
	require.Len(t, calls, 1, "empty install does not run conda")
	assert.Equal(t, "/opt/conda/bin/conda", calls[0].Name)
	assert.Equal(t, []string{"create", "--yes", "--quiet", "--prefix", "/p/envs/default", "--channel", "conda-forge", "numpy"}, calls[0].Args)
}

func TestCLIErrorCarriesStderr(t *testing.T) {
	executor := testutil.NewFakeExecutor()
	executor.Respond("conda", nil, []byte("PackagesNotFoundError: nope\n"), errors.New("exit status 1"))
	t.Setenv("CONDA_EXE", "")
	cli := conda.NewCLI(executor)

	err := cli.Install(context.Background(), "/p", []string{"nope"}, nil)
	require.Error(t, err)

	var condaErr *conda.Error
	require.ErrorAs(t, err, &condaErr)
	assert.Equal(t, "conda install --yes --quiet --prefix /p nope failed: PackagesNotFoundError: nope", err.Error())
}
