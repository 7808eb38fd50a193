package project_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kapsel/internal/localstate"
	"github.com/systmms/kapsel/internal/project"
	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/internal/testutil"
)

func reload(t *testing.T, dir string) *project.Project {
	t.Helper()
	p, err := project.Load(dir, providers.NewRegistry())
	require.NoError(t, err)
	return p
}

func TestManifestPreservesComments(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "# my project\nname: demo  # inline\nvariables:\n  - FOO\n", nil)
	p := reload(t, dir)
	require.NoError(t, p.AddVariables([]string{"BAR"}, nil))

	data, err := os.ReadFile(filepath.Join(dir, project.Filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# my project")
	assert.Contains(t, string(data), "# inline")
	assert.Equal(t, []interface{}{"FOO", "BAR"}, reload(t, dir).Manifest().Get("variables"))
}

func TestManifestGetSetUnset(t *testing.T) {
	t.Parallel()

	m, err := project.LoadManifest(filepath.Join(t.TempDir(), project.Filename))
	require.NoError(t, err)
	assert.Nil(t, m.Get("a", "b"))

	require.NoError(t, m.Set("x", "a", "b"))
	assert.Equal(t, "x", m.Get("a", "b"))
	assert.Equal(t, []string{"a"}, m.Keys())
	assert.True(t, m.Dirty())

	require.NoError(t, m.Set(1, "a", "b", "c"), "scalar intermediate is replaced")
	assert.Equal(t, 1, m.Get("a", "b", "c"))

	m.Unset("a", "b")
	assert.Nil(t, m.Get("a", "b"))
	m.Unset("missing", "key")

	require.NoError(t, m.Save())
	_, err = os.Stat(m.Path())
	assert.NoError(t, err)
}

func TestLoadManifestNotMapping(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "- a\n- b\n", nil)
	p := project.Open(dir, providers.NewRegistry())
	require.Len(t, p.Problems(), 1)
	assert.Contains(t, p.Problems()[0], "must be a mapping")
}

func TestAddVariablesWithDefaults(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "variables: [FOO, BAR]\n", nil)
	require.NoError(t, reload(t, dir).AddVariables([]string{"BAZ"}, map[string]string{"BAZ": "1"}))

	p := reload(t, dir)
	assert.Equal(t, []string{"FOO", "BAR", "BAZ"}, p.Manifest().Keys("variables"))
	def, ok := p.FindRequirement("BAZ").DefaultValue()
	require.True(t, ok)
	assert.Equal(t, "1", def)
}

func TestRemoveVariablesForgetsValues(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "variables:\n  FOO: null\n  API_SECRET: null\n", nil)
	secrets := testutil.NewMemorySecrets()
	state, err := localstate.Load(dir, secrets)
	require.NoError(t, err)
	defer state.Close()
	state.SetValue("v", "variables", "FOO")
	require.NoError(t, state.SetSecret("API_SECRET", "s"))

	require.NoError(t, reload(t, dir).RemoveVariables([]string{"FOO", "API_SECRET"}, state))
	assert.Empty(t, reload(t, dir).Requirements())
	_, ok := state.GetValue("variables", "FOO")
	assert.False(t, ok)
	_, ok = secrets.Value("API_SECRET")
	assert.False(t, ok)
}

func TestAddDownload(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "", nil)
	require.NoError(t, reload(t, dir).AddDownload("DATA", "http://x/data.csv", "", "", ""))
	assert.Equal(t, "http://x/data.csv", reload(t, dir).Manifest().Get("downloads", "DATA"))

	require.NoError(t, reload(t, dir).AddDownload("DATA", "http://x/data.csv", "d.csv", "sha256", "abc"))
	got := reload(t, dir).Manifest().Get("downloads", "DATA").(map[string]interface{})
	assert.Equal(t, "d.csv", got["filename"])
	assert.Equal(t, "sha256", got["hash_algorithm"])

	assert.Error(t, reload(t, dir).AddDownload("X", "http://x", "", "md5", ""))

	require.NoError(t, reload(t, dir).RemoveDownload("DATA"))
	err := reload(t, dir).RemoveDownload("DATA")
	require.Error(t, err)
	assert.Equal(t, "Download requirement: DATA not found.", err.Error())
}

func TestAddService(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "", nil)

	variable, err := reload(t, dir).AddService("redis", "")
	require.NoError(t, err)
	assert.Equal(t, "REDIS_URL", variable)

	variable, err = reload(t, dir).AddService("redis", "CACHE_URL")
	require.NoError(t, err)
	assert.Equal(t, "CACHE_URL", variable)

	_, err = reload(t, dir).AddService("couchdb", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown service type 'couchdb'")

	_, err = reload(t, dir).AddService("postgresql", "REDIS_URL")
	assert.Error(t, err, "existing variable with another type")

	_, err = reload(t, dir).RemoveService("redis")
	assert.ErrorContains(t, err, "ambiguous")

	removed, err := reload(t, dir).RemoveService("CACHE_URL")
	require.NoError(t, err)
	assert.Equal(t, "CACHE_URL", removed)

	removed, err = reload(t, dir).RemoveService("redis")
	require.NoError(t, err)
	assert.Equal(t, "REDIS_URL", removed)
	assert.Empty(t, reload(t, dir).Requirements())
}

func TestEnvSpecEdits(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "packages: [python]\n", nil)

	require.NoError(t, reload(t, dir).AddEnvSpec("science", []string{"numpy"}, []string{"conda-forge"}))
	p := reload(t, dir)
	assert.Equal(t, []string{"default", "science"}, p.Manifest().Keys("env_specs"))
	assert.Equal(t, []string{"python", "numpy"}, p.EnvSpecMap()["science"].Packages)

	require.NoError(t, p.AddPackages("science", []string{"numpy=1.11", "pandas"}, []string{"conda-forge"}))
	p = reload(t, dir)
	assert.Equal(t, []string{"python", "numpy=1.11", "pandas"}, p.EnvSpecMap()["science"].Packages)
	assert.Equal(t, []interface{}{"conda-forge"}, p.Manifest().Get("env_specs", "science", "channels"))

	require.NoError(t, p.AddPackages("", []string{"requests"}, nil))
	p = reload(t, dir)
	assert.Equal(t, []string{"python", "requests"}, p.EnvSpecMap()["default"].Packages)

	require.NoError(t, p.RemovePackages("", []string{"numpy", "requests"}))
	p = reload(t, dir)
	assert.Equal(t, []string{"python", "pandas"}, p.EnvSpecMap()["science"].Packages)
	assert.Equal(t, []string{"pandas", "python"}, project.SortedPackages(p.EnvSpecMap()["science"]))

	assert.ErrorContains(t, p.AddPackages("nope", []string{"x"}, nil), "doesn't exist")

	prefix := filepath.Join(dir, "envs", "science")
	require.NoError(t, os.MkdirAll(prefix, 0755))
	require.NoError(t, p.RemoveEnvSpec("science"))
	_, err := os.Stat(prefix)
	assert.True(t, os.IsNotExist(err))

	err = reload(t, dir).RemoveEnvSpec("default")
	assert.ErrorContains(t, err, "only one left")
}

func TestAddCommand(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "env_specs:\n  default: {}\n  foo: {}\n", nil)

	require.NoError(t, reload(t, dir).AddCommand("test", project.CommandBokehApp, "file.py", ""))
	cmd := reload(t, dir).Manifest().Get("commands", "test").(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"bokeh_app": "file.py", "env_spec": "default"}, cmd)

	require.NoError(t, reload(t, dir).AddCommand("nb", project.CommandNotebook, "file.ipynb", "foo"))
	assert.Equal(t, "foo", reload(t, dir).Command("nb").EnvSpec)
}

func TestAddCommandBreakingProjectIsNotSaved(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "commands:\n  test:\n    unix: foo\n", nil)
	err := reload(t, dir).AddCommand("test", project.CommandNotebook, "file.ipynb", "")
	require.Error(t, err)

	path := filepath.Join(dir, project.Filename)
	assert.Equal(t, path+": command 'test' has multiple commands in it, 'notebook' can't go with 'unix'\nUnable to add the command.", err.Error())

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.False(t, strings.Contains(string(data), "notebook"))
}

func TestRemoveCommand(t *testing.T) {
	t.Parallel()

	dir := writeProject(t, "commands:\n  test:\n    notebook: file.ipynb\n", map[string]string{"other.ipynb": ""})

	require.NoError(t, reload(t, dir).RemoveCommand("test"))
	assert.Nil(t, reload(t, dir).Manifest().Get("commands", "test"))

	err := reload(t, dir).RemoveCommand("test")
	require.Error(t, err)
	assert.Equal(t, "Command: 'test' not found in project file.", err.Error())

	err = reload(t, dir).RemoveCommand("other.ipynb")
	require.Error(t, err)
	assert.Equal(t, "Cannot remove auto-generated command: 'other.ipynb'.", err.Error())
}
