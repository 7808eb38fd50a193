package providers

import (
	"context"
	"fmt"

	"github.com/systmms/kapsel/internal/console"
	"github.com/systmms/kapsel/internal/logging"
	"github.com/systmms/kapsel/pkg/requirement"
)

const sectionVariables = "variables"

// EnvVarProvider satisfies plain environment variables.
//
// The check looks at the environment only. A fix fills the working
// environment from, in order, the value saved in local state (the encrypted
// section for encrypted variables) and the manifest default, or asks the
// user.
type EnvVarProvider struct {
	logger *logging.Logger
}

// NewEnvVarProvider creates the provider.
func NewEnvVarProvider(logger *logging.Logger) *EnvVarProvider {
	return &EnvVarProvider{logger: orDiscard(logger)}
}

// Name implements requirement.Provider.
func (p *EnvVarProvider) Name() string {
	return string(requirement.KindEnvVar)
}

// Check implements requirement.Provider.
func (p *EnvVarProvider) Check(_ context.Context, req *requirement.Requirement, in requirement.CheckInput) *requirement.Status {
	return checkEnvironSet(req, in.Environ)
}

// checkEnvironSet is the status every kind reports when its variable is unset.
func checkEnvironSet(req *requirement.Requirement, environ requirement.Environ) *requirement.Status {
	if _, ok := environ.Lookup(req.EnvVar()); !ok {
		return requirement.NewStatus(req, false, notSetDescription(req.EnvVar()))
	}
	return requirement.NewStatus(req, true, fmt.Sprintf("Environment variable %s is set.", req.EnvVar()))
}

func notSetDescription(name string) string {
	return fmt.Sprintf("Environment variable %s is not set.", name)
}

// SavedValue returns the value stored in local state for req.
func SavedValue(req *requirement.Requirement, state requirement.LocalState) (string, bool) {
	if state == nil {
		return "", false
	}
	if req.Encrypted() {
		return state.GetSecret(req.EnvVar())
	}
	v, ok := state.GetValue(sectionVariables, req.EnvVar())
	if !ok || v == nil {
		return "", false
	}
	s := fmt.Sprint(v)
	return s, s != ""
}

// SaveValue stores value for req in local state. Encrypted values go to the
// encrypted section only.
func SaveValue(req *requirement.Requirement, state requirement.LocalState, value string) error {
	if req.Encrypted() {
		return state.SetSecret(req.EnvVar(), value)
	}
	state.SetValue(value, sectionVariables, req.EnvVar())
	return nil
}

// ForgetValue removes the saved value for req.
func ForgetValue(req *requirement.Requirement, state requirement.LocalState) error {
	if req.Encrypted() {
		return state.UnsetSecret(req.EnvVar())
	}
	state.UnsetValue(sectionVariables, req.EnvVar())
	return nil
}

// Fix implements requirement.Provider.
func (p *EnvVarProvider) Fix(_ context.Context, req *requirement.Requirement, fc *requirement.FixContext) (*requirement.FixResult, error) {
	result := &requirement.FixResult{}
	name := req.EnvVar()
	env := fc.Input.Environ

	saved, hasSaved := SavedValue(req, fc.Input.State)
	def, hasDefault := req.DefaultValue()

	if fc.Mode == requirement.ProvideCheck {
		if hasSaved {
			env[name] = saved
		}
		return result, nil
	}

	if canAsk(fc) {
		suggestion := ""
		switch {
		case hasSaved:
			suggestion = saved
		case hasDefault:
			suggestion = def
		}
		prompt := fmt.Sprintf("Value for %s: ", name)
		if suggestion != "" && !req.Encrypted() {
			prompt = fmt.Sprintf("Value for %s [%s]: ", name, suggestion)
		}
		answer, err := console.AskNonEmpty(fc.Prompter, prompt, suggestion,
			fmt.Sprintf("Please enter a value for %s.", name), req.Encrypted())
		if err != nil {
			return result, err
		}
		p.persist(req, fc, answer, result)
		env[name] = answer
		return result, nil
	}

	switch {
	case hasSaved:
		env[name] = saved
		result.Logf("Using saved value of %s.", name)
	case hasDefault && def != "":
		env[name] = def
		result.Logf("Using default value of %s.", name)
	default:
		result.NeedsInput = true
		result.Logf("No value available for %s.", name)
	}
	return result, nil
}

func (p *EnvVarProvider) persist(req *requirement.Requirement, fc *requirement.FixContext, value string, result *requirement.FixResult) {
	if err := SaveValue(req, fc.Input.State, value); err != nil {
		// the value stays usable for this run
		p.logger.Warn("Could not save %s to encrypted storage: %v", req.EnvVar(), err)
		result.Logf("%s was not saved and will be asked again next time.", req.EnvVar())
		return
	}
	if req.Encrypted() {
		p.logger.Debug("Saved %s=%v", req.EnvVar(), logging.Secret(value))
	} else {
		p.logger.Debug("Saved %s=%s", req.EnvVar(), value)
	}
}

func orDiscard(logger *logging.Logger) *logging.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger
}

// canAsk reports whether a fix may prompt.
func canAsk(fc *requirement.FixContext) bool {
	return fc.Interactive && fc.Prompter != nil && fc.Prompter.IsInteractive()
}
