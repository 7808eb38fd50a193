package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/kapsel/internal/errors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "mode",
		Value:      "sometimes",
		Message:    "unknown UI mode",
		Suggestion: "Use one of: ask, development_defaults_or_ask, production_defaults, check",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "mode")
	assert.Contains(t, errMsg, "sometimes")
	assert.Contains(t, errMsg, "unknown UI mode")
	assert.Contains(t, errMsg, "production_defaults")
}

func TestCommandErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.CommandError{
		Command:    "conda create",
		ExitCode:   1,
		Message:    "PackagesNotFoundError",
		Suggestion: "Check the package names",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "conda create")
	assert.Contains(t, errMsg, "exit code: 1")
	assert.Contains(t, errMsg, "PackagesNotFoundError")
}

func TestProjectErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ProjectError{
		Problems: []string{"variables section contains wrong value type 42, should be dict or list of requirements"},
		Summary:  "Unable to load the project.",
	}

	assert.Equal(t,
		"variables section contains wrong value type 42, should be dict or list of requirements\nUnable to load the project.",
		err.Error())

	other := err.WithSummary("Unable to add the command.")
	assert.Equal(t, "Unable to add the command.", other.Summary)
	assert.Equal(t, "Unable to load the project.", err.Summary)
}

func TestIsCanceled(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsCanceled(errors.ErrCanceled))
	assert.True(t, errors.IsCanceled(fmt.Errorf("asking for FOO: %w", errors.ErrCanceled)))
	assert.False(t, errors.IsCanceled(stderrors.New("boom")))
	assert.False(t, errors.IsCanceled(nil))
}

func TestProviderErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		err      error
		want     string
	}{
		{"conda missing", "conda_env", stderrors.New(`exec: "conda": executable file not found in $PATH`), "Miniconda"},
		{"redis missing", "service", stderrors.New("failed to start redis-server"), "Install Redis"},
		{"hash mismatch", "download", stderrors.New("mismatched hashes"), "hash in kapsel.yml"},
		{"generic timeout", "service", stderrors.New("i/o timeout"), "timed out"},
		{"nothing known", "env_var", stderrors.New("weird"), ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := errors.ProviderError(tt.provider, "fix", tt.err)
			var userErr errors.UserError
			assert.True(t, stderrors.As(err, &userErr))
			if tt.want == "" {
				assert.Empty(t, userErr.Suggestion)
			} else {
				assert.Contains(t, userErr.Suggestion, tt.want)
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestWrapCommandNotFound(t *testing.T) {
	t.Parallel()

	err := errors.WrapCommandNotFound("conda", stderrors.New("not found"))
	assert.Contains(t, err.Error(), "conda")
	assert.Contains(t, err.Error(), "Miniconda")

	err = errors.WrapCommandNotFound("frobnicate", stderrors.New("not found"))
	assert.Contains(t, err.Error(), "Make sure 'frobnicate' is installed")
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))

	projectErr := errors.ProjectError{Problems: []string{"x"}}
	assert.Equal(t, projectErr, errors.SimplifyError(projectErr))

	simplified := errors.SimplifyError(fmt.Errorf("reading: %w", stderrors.New("yaml: line 3: did not find expected key")))
	var cfgErr errors.ConfigError
	assert.True(t, stderrors.As(simplified, &cfgErr))
	assert.Equal(t, "Invalid YAML format", cfgErr.Message)

	plain := stderrors.New("something else")
	assert.Equal(t, plain, errors.SimplifyError(plain))
}

func TestDescribeProviderFailure(t *testing.T) {
	t.Parallel()

	msg := errors.DescribeProviderFailure("download", stderrors.New("Error downloading http://x: mismatched hashes"))
	assert.Equal(t, "Error downloading http://x: mismatched hashes\n  💡 Try: The file changed upstream or the hash in kapsel.yml is wrong; verify it before updating", msg)

	assert.Equal(t, "weird", errors.DescribeProviderFailure("env_var", stderrors.New("weird")))
}
