package execenv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/logging"
	"github.com/systmms/kapsel/pkg/requirement"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	logger := logging.New(false, true)
	assert.Equal(t, logger, New(logger).logger)
	assert.NotNil(t, New(nil).logger)
}

func TestMaskValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "(empty)"},
		{"single_char", "a", "*"},
		{"three_chars", "abc", "***"},
		{"four_chars", "abcd", "a**d"},
		{"eight_chars", "abcdefgh", "a******h"},
		{"nine_chars", "abcdefghi", "abc********hi"},
		{"long_value", "mysupersecretpassword", "mys********rd"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, maskValue(tt.input))
		})
	}
}

func TestPrintEnvironment(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printEnvironment(&out, requirement.Environ{"B": "secretvalue", "A": "x"}, []string{"B", "A"})
	assert.Equal(t, "Resolved 2 environment variables:\n  A=*\n  B=sec********ue\n\n", out.String())
}

func TestExecEmptyCommand(t *testing.T) {
	t.Parallel()

	code, err := New(nil).Exec(context.Background(), ExecOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "No command specified")
}

func TestExecCommandNotFound(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Exec(context.Background(), ExecOptions{
		Command:     []string{"kapsel-no-such-command"},
		Environment: requirement.Environ{"PATH": t.TempDir()},
	})
	var cmdErr kerrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "command not found", cmdErr.Message)
}

func TestExecUsesPreparedEnvironment(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var stdout bytes.Buffer
	code, err := New(nil).Exec(context.Background(), ExecOptions{
		Command:     []string{"/bin/sh", "-c", `printf '%s' "$GREETING"`},
		Environment: requirement.Environ{"GREETING": "hello"},
		Stdout:      &stdout,
		Stderr:      &bytes.Buffer{},
		Stdin:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello", stdout.String())
}

func TestExecReturnsExitCode(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	code, err := New(nil).Exec(context.Background(), ExecOptions{
		Command: []string{"/bin/sh", "-c", "exit 3"},
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
		Stdin:   &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestLookPathPrefersChildPath(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	dir := t.TempDir()
	tool := filepath.Join(dir, "kapsel-test-tool")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0755))

	found, err := lookPath("kapsel-test-tool", requirement.Environ{"PATH": dir})
	require.NoError(t, err)
	assert.Equal(t, tool, found)
}
