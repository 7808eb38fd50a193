package requirement

import (
	"context"
)

// Provider checks and fixes one Kind of Requirement.
//
// Implementations are stateless; all state lives in the CheckInput and the
// LocalState it carries. Example usage:
//
//	status := p.Check(ctx, req, in)
//	if !status.Satisfied() {
//	    result, err := p.Fix(ctx, req, &FixContext{Input: in, Mode: ProvideDevelopment})
//	    if err != nil {
//	        return err // only cancellation ends up here
//	    }
//	    status = p.Check(ctx, req, in).WithFixResult(result)
//	}
type Provider interface {
	// Name returns the provider identifier used in logs and metrics.
	Name() string

	// Check computes the current status of req. It must not modify the
	// environment, the local state or the filesystem, and is safe to call
	// repeatedly.
	Check(ctx context.Context, req *Requirement, in CheckInput) *Status

	// Fix attempts to satisfy req.
	//
	// Values the fix derives (a chosen URL, a typed-in password, a download
	// path) are written into fc.Input.Environ and persisted to
	// fc.Input.State; the caller saves the state and rechecks.
	//
	// Expected failures go into FixResult.Errors. When a fix cannot proceed
	// without a decision from the user it sets FixResult.NeedsInput. The only
	// error returned is a cancellation.
	Fix(ctx context.Context, req *Requirement, fc *FixContext) (*FixResult, error)
}

// Cleaner is implemented by providers that leave generated state behind
// (started services, environment directories, downloaded files).
type Cleaner interface {
	Clean(ctx context.Context, req *Requirement, fc *FixContext) *FixResult
}

// CheckInput is everything a status check reads.
type CheckInput struct {
	// Environ is the environment snapshot; empty values count as unset.
	Environ Environ

	// State is the per-project persisted store.
	State LocalState

	// EnvSpecName is the project's default env spec.
	EnvSpecName string

	// Overrides carries user choices from the command line.
	Overrides UserConfigOverrides

	// ProjectDir is the absolute project directory.
	ProjectDir string

	// EnvSpecs maps env spec names to their package lists, used by the
	// conda provider.
	EnvSpecs map[string]EnvSpec
}

// ActiveEnvSpec returns the env spec in effect for this run.
func (in CheckInput) ActiveEnvSpec() string {
	return in.Overrides.ActiveEnvSpec(in.EnvSpecName)
}

// EnvSpec is a named, declared Conda package set.
type EnvSpec struct {
	Name     string
	Packages []string
	Channels []string
}

// ProvideMode selects how aggressive automatic fixes may be.
type ProvideMode string

const (
	// ProvideDevelopment allows local conveniences such as starting a
	// throwaway service.
	ProvideDevelopment ProvideMode = "development"

	// ProvideProduction only uses configured or default values.
	ProvideProduction ProvideMode = "production"

	// ProvideCheck never changes anything.
	ProvideCheck ProvideMode = "check"
)

// FixContext is what a fix attempt may read and change.
type FixContext struct {
	// Input is the check input; Input.Environ is the writable working copy.
	Input CheckInput

	// Mode is the provide mode.
	Mode ProvideMode

	// Interactive asks the provider to prompt instead of applying defaults.
	Interactive bool

	// Prompter is the console; nil when no input stream is attached.
	Prompter Prompter

	// Status is the status that triggered the fix.
	Status *Status
}

// FixResult reports what a fix attempt did.
type FixResult struct {
	Logs       []string
	Errors     []string
	NeedsInput bool
}

// Logf appends a log line.
func (r *FixResult) Logf(format string, args ...interface{}) {
	r.Logs = append(r.Logs, sprintf(format, args...))
}

// Errorf appends an error line.
func (r *FixResult) Errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, sprintf(format, args...))
}

// Failed reports whether the fix recorded any error.
func (r *FixResult) Failed() bool {
	return len(r.Errors) > 0
}

// Prompter is the interactive console capability.
type Prompter interface {
	// IsInteractive reports whether an input stream is attached.
	IsInteractive() bool

	// Ask shows prompt and returns the answer without the trailing newline.
	// An interrupt returns errors.ErrCanceled.
	Ask(prompt string) (string, error)

	// AskPassword is Ask without echoing the answer.
	AskPassword(prompt string) (string, error)

	// Tell prints a line of feedback on the standard stream.
	Tell(message string)
}

// LocalState is the per-project persisted key/value store.
//
// Plain values live in the project-local file; values of encrypted
// requirements live only in the encrypted section reached through the
// *Secret methods.
type LocalState interface {
	GetValue(path ...string) (interface{}, bool)
	SetValue(value interface{}, path ...string)
	UnsetValue(path ...string)

	GetSecret(name string) (string, bool)
	SetSecret(name, value string) error
	UnsetSecret(name string) error

	ServiceRunState(name string) map[string]interface{}
	SetServiceRunState(name string, state map[string]interface{})

	Save() error
}

// UserConfigOverrides holds per-run user choices from the command line.
type UserConfigOverrides struct {
	// EnvSpecName pins an env spec; empty means the project default.
	EnvSpecName string
}

// ActiveEnvSpec returns the pinned env spec, or defaultName when none is
// pinned.
func (o UserConfigOverrides) ActiveEnvSpec(defaultName string) string {
	if o.EnvSpecName != "" {
		return o.EnvSpecName
	}
	return defaultName
}
