// Package config holds the runtime configuration of one kapsel invocation:
// which project, which env spec, how to resolve missing values, and where
// diagnostics go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/localstate"
	"github.com/systmms/kapsel/internal/logging"
	"github.com/systmms/kapsel/internal/prepare"
	"github.com/systmms/kapsel/internal/project"
	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/pkg/requirement"
)

// Environment variables consulted when the matching flag is not given.
const (
	EnvMode      = "KAPSEL_MODE"
	EnvDirectory = "KAPSEL_DIRECTORY"
)

// Config holds the runtime configuration
type Config struct {
	Directory      string
	EnvSpec        string
	Mode           string
	Logger         *logging.Logger
	NonInteractive bool
	MetricsFile    string
	CheckTimeout   time.Duration
	Prompter       requirement.Prompter

	// Secrets backs the encrypted part of the local state. Nil means the OS
	// keyring.
	Secrets localstate.SecretStore
}

// ApplyEnvironment fills Directory and Mode from KAPSEL_DIRECTORY and
// KAPSEL_MODE when they were not set explicitly.
func (c *Config) ApplyEnvironment(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if c.Directory == "" {
		if v, ok := lookup(EnvDirectory); ok && v != "" {
			c.Directory = v
		}
	}
	if c.Mode == "" {
		if v, ok := lookup(EnvMode); ok && v != "" {
			c.Mode = v
		}
	}
}

// ProjectDir returns the absolute project directory, defaulting to the
// working directory.
func (c *Config) ProjectDir() string {
	dir := c.Directory
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// UIMode parses Mode.
func (c *Config) UIMode() (prepare.UIMode, error) {
	mode, err := prepare.ParseUIMode(c.Mode)
	if err != nil {
		return "", kerrors.ConfigError{
			Field:      "mode",
			Value:      c.Mode,
			Message:    "unknown mode",
			Suggestion: fmt.Sprintf("Use one of: %s", strings.Join(prepare.UIModeNames(), ", ")),
		}
	}
	return mode, nil
}

// LoadProject loads and validates the project. The returned error is an
// errors.ProjectError when the manifest has problems.
func (c *Config) LoadProject(registry *providers.Registry) (*project.Project, error) {
	p, err := project.Load(c.ProjectDir(), registry)
	if err != nil {
		return nil, err
	}
	if c.EnvSpec != "" {
		if _, ok := p.EnvSpecMap()[c.EnvSpec]; !ok {
			names := make([]string, 0, len(p.EnvSpecs()))
			for _, spec := range p.EnvSpecs() {
				names = append(names, spec.Name)
			}
			return nil, kerrors.ConfigError{
				Field:      "env-spec",
				Value:      c.EnvSpec,
				Message:    "environment spec not found in the project",
				Suggestion: fmt.Sprintf("Available env specs: %s", strings.Join(names, ", ")),
			}
		}
	}
	return p, nil
}

// OpenState loads the local state of p.
func (c *Config) OpenState(p *project.Project) (*localstate.File, error) {
	secrets := c.Secrets
	if secrets == nil {
		secrets = localstate.NewKeyringStore(p.Dir())
	}
	state, err := localstate.Load(p.Dir(), secrets)
	if err != nil {
		return nil, kerrors.UserError{
			Message:    "Failed to read the local state",
			Details:    err.Error(),
			Suggestion: fmt.Sprintf("Fix or delete %s", filepath.Join(p.Dir(), localstate.Filename)),
			Err:        err,
		}
	}
	return state, nil
}

// Overrides returns the per-run user choices.
func (c *Config) Overrides() requirement.UserConfigOverrides {
	return requirement.UserConfigOverrides{EnvSpecName: c.EnvSpec}
}

// PrepareOptions builds the options of a resolution pass.
func (c *Config) PrepareOptions() (prepare.Options, error) {
	mode, err := c.UIMode()
	if err != nil {
		return prepare.Options{}, err
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	var metrics *prepare.Metrics
	if c.MetricsFile != "" {
		prepare.InitMetrics()
		metrics = prepare.NewMetrics()
	}
	return prepare.Options{
		Mode:         mode,
		Prompter:     c.Prompter,
		Logger:       logger,
		Metrics:      metrics,
		CheckTimeout: c.CheckTimeout,
	}, nil
}

// WriteMetrics flushes metrics when a metrics file was requested.
func (c *Config) WriteMetrics() error {
	if c.MetricsFile == "" {
		return nil
	}
	return prepare.WriteMetrics(c.MetricsFile)
}
