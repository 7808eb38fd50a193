package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCanceled is returned when the user interrupts an interactive prompt.
// It aborts the whole resolution pass rather than failing one requirement.
var ErrCanceled = errors.New("canceled by user")

// IsCanceled reports whether err is, or wraps, ErrCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProjectError reports problems found in a project directory. The CLI prints
// each problem on its own line followed by the summary, e.g.
// "Unable to load the project.".
type ProjectError struct {
	Problems []string
	Summary  string
}

func (e ProjectError) Error() string {
	lines := make([]string, 0, len(e.Problems)+1)
	lines = append(lines, e.Problems...)
	if e.Summary != "" {
		lines = append(lines, e.Summary)
	}
	return strings.Join(lines, "\n")
}

// WithSummary returns a copy of the error carrying a different summary line.
func (e ProjectError) WithSummary(summary string) ProjectError {
	return ProjectError{Problems: append([]string(nil), e.Problems...), Summary: summary}
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProviderError enhances provider-specific errors with context
func ProviderError(provider string, operation string, err error) error {
	suggestion := getProviderSuggestion(provider, err)

	return UserError{
		Message:    fmt.Sprintf("%s provider error during %s", provider, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// DescribeProviderFailure renders err as a single status error line, with the
// provider suggestion appended when one is known.
func DescribeProviderFailure(provider string, err error) string {
	msg := err.Error()
	if suggestion := getProviderSuggestion(provider, err); suggestion != "" {
		msg += "\n  💡 Try: " + suggestion
	}
	return msg
}

// getProviderSuggestion returns helpful suggestions based on provider and error
func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "conda_env":
		if strings.Contains(errStr, "executable file not found") || strings.Contains(errStr, "command not found") {
			return "Install Miniconda from https://conda.io/miniconda.html or set CONDA_EXE"
		}
		if strings.Contains(errStr, "PackagesNotFoundError") || strings.Contains(errStr, "PackageNotFoundError") {
			return "Check the package names in kapsel.yml and the configured channels"
		}

	case "service":
		if strings.Contains(errStr, "redis-server") {
			return "Install Redis (https://redis.io/download) or set the service variable to a running server"
		}
		if strings.Contains(errStr, "authentication failed") || strings.Contains(errStr, "Access denied") {
			return "Check the credentials in the service URL"
		}

	case "download":
		if strings.Contains(errStr, "mismatched hashes") {
			return "The file changed upstream or the hash in kapsel.yml is wrong; verify it before updating"
		}
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and the configured address"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"conda":            "Install Miniconda from https://conda.io/miniconda.html",
		"redis-server":     "Install Redis from https://redis.io/download",
		"jupyter-notebook": "Add the 'notebook' package to your env spec",
		"bokeh":            "Add the 'bokeh' package to your env spec",
		"python":           "Add 'python' to your env spec or install Python from https://python.org/",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
	}
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly error
	switch err.(type) {
	case UserError, ConfigError, CommandError, ProjectError:
		return err
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
