package providers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/localstate"
	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/internal/testutil"
	"github.com/systmms/kapsel/pkg/requirement"
)

func TestEnvVarCheck(t *testing.T) {
	t.Parallel()

	registry := providers.NewRegistry()
	req := registry.FindRequirementByEnvVar("FOO", nil)

	tests := []struct {
		name    string
		environ requirement.Environ
		want    bool
		desc    string
	}{
		{name: "unset", environ: requirement.Environ{}, want: false, desc: "Environment variable FOO is not set."},
		{name: "empty_is_unset", environ: requirement.Environ{"FOO": ""}, want: false, desc: "Environment variable FOO is not set."},
		{name: "set", environ: requirement.Environ{"FOO": "bar"}, want: true, desc: "Environment variable FOO is set."},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status := req.CheckStatus(context.Background(), newInput(t, tt.environ))
			assert.Equal(t, tt.want, status.Satisfied())
			assert.Equal(t, tt.desc, status.Description())
			assert.Empty(t, status.Errors())
		})
	}
}

func TestEnvVarFixPrecedence(t *testing.T) {
	t.Parallel()

	registry := providers.NewRegistry()
	req := registry.FindRequirementByEnvVar("FOO", requirement.Options{"default": "from-default"})
	p, err := req.Provider()
	require.NoError(t, err)

	// default only
	in := newInput(t, nil)
	result, err := p.Fix(context.Background(), req, &requirement.FixContext{Input: in, Mode: requirement.ProvideDevelopment})
	require.NoError(t, err)
	assert.False(t, result.NeedsInput)
	assert.Equal(t, "from-default", in.Environ["FOO"])

	// local state beats the default
	in = newInput(t, nil)
	in.State.SetValue("from-state", "variables", "FOO")
	_, err = p.Fix(context.Background(), req, &requirement.FixContext{Input: in, Mode: requirement.ProvideDevelopment})
	require.NoError(t, err)
	assert.Equal(t, "from-state", in.Environ["FOO"])

	// the environment beats both: nothing to fix
	in = newInput(t, requirement.Environ{"FOO": "from-env"})
	in.State.SetValue("from-state", "variables", "FOO")
	assert.True(t, req.CheckStatus(context.Background(), in).Satisfied())
}

func TestEnvVarFixNeedsInput(t *testing.T) {
	t.Parallel()

	req := providers.NewRegistry().FindRequirementByEnvVar("FOO", nil)
	p, _ := req.Provider()
	in := newInput(t, nil)

	result, err := p.Fix(context.Background(), req, &requirement.FixContext{
		Input:    in,
		Mode:     requirement.ProvideProduction,
		Prompter: testutil.NewNonInteractivePrompter(),
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsInput)
	assert.NotContains(t, in.Environ, "FOO")
}

func TestEnvVarFixCheckModeOnlyReadsState(t *testing.T) {
	t.Parallel()

	req := providers.NewRegistry().FindRequirementByEnvVar("FOO", requirement.Options{"default": "d"})
	p, _ := req.Provider()
	in := newInput(t, nil)

	result, err := p.Fix(context.Background(), req, &requirement.FixContext{Input: in, Mode: requirement.ProvideCheck})
	require.NoError(t, err)
	assert.False(t, result.NeedsInput)
	assert.NotContains(t, in.Environ, "FOO", "defaults are not applied in check mode")
}

func TestEnvVarFixInteractive(t *testing.T) {
	t.Parallel()

	req := providers.NewRegistry().FindRequirementByEnvVar("FOO", nil)
	p, _ := req.Provider()
	in := newInput(t, nil)
	prompter := testutil.NewScriptedPrompter("", "  ", "typed")

	_, err := p.Fix(context.Background(), req, &requirement.FixContext{
		Input:       in,
		Mode:        requirement.ProvideDevelopment,
		Interactive: true,
		Prompter:    prompter,
	})
	require.NoError(t, err)
	assert.Equal(t, "typed", in.Environ["FOO"])
	assert.Equal(t, []string{"Please enter a value for FOO.", "Please enter a value for FOO."}, prompter.Told())

	saved, ok := in.State.GetValue("variables", "FOO")
	require.True(t, ok)
	assert.Equal(t, "typed", saved)
}

func TestEnvVarFixInteractiveEncrypted(t *testing.T) {
	t.Parallel()

	secrets := testutil.NewMemorySecrets()
	state, err := localstate.Load(t.TempDir(), secrets)
	require.NoError(t, err)
	defer state.Close()

	req := providers.NewRegistry().FindRequirementByEnvVar("DB_PASSWORD", nil)
	p, _ := req.Provider()
	in := requirement.CheckInput{Environ: requirement.Environ{}, State: state}

	prompter := testutil.NewScriptedPrompter("hunter2")
	_, err = p.Fix(context.Background(), req, &requirement.FixContext{
		Input: in, Mode: requirement.ProvideDevelopment, Interactive: true, Prompter: prompter,
	})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", in.Environ["DB_PASSWORD"])

	stored, ok := secrets.Value("DB_PASSWORD")
	require.True(t, ok)
	assert.Equal(t, "hunter2", stored)
	_, plain := state.GetValue("variables", "DB_PASSWORD")
	assert.False(t, plain, "encrypted values never reach the plain section")
}

func TestEnvVarFixEncryptedStoreFailureKeepsValue(t *testing.T) {
	t.Parallel()

	secrets := testutil.NewMemorySecrets()
	secrets.SetErr = errors.New("keyring locked")
	state, err := localstate.Load(t.TempDir(), secrets)
	require.NoError(t, err)
	defer state.Close()

	req := providers.NewRegistry().FindRequirementByEnvVar("API_SECRET", nil)
	p, _ := req.Provider()
	in := requirement.CheckInput{Environ: requirement.Environ{}, State: state}

	result, err := p.Fix(context.Background(), req, &requirement.FixContext{
		Input: in, Mode: requirement.ProvideDevelopment, Interactive: true,
		Prompter: testutil.NewScriptedPrompter("s3cr3t"),
	})
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, "s3cr3t", in.Environ["API_SECRET"])
}

func TestEnvVarFixCancel(t *testing.T) {
	t.Parallel()

	req := providers.NewRegistry().FindRequirementByEnvVar("FOO", nil)
	p, _ := req.Provider()

	_, err := p.Fix(context.Background(), req, &requirement.FixContext{
		Input: newInput(t, nil), Mode: requirement.ProvideDevelopment, Interactive: true,
		Prompter: testutil.NewScriptedPrompter(),
	})
	assert.True(t, kerrors.IsCanceled(err))
}
