package prepare

import (
	"fmt"
	"strings"

	"github.com/systmms/kapsel/pkg/requirement"
)

// UIMode selects how a prepare pass deals with unmet requirements.
type UIMode string

const (
	// UIModeAsk prompts for every unmet requirement when a terminal is
	// attached, falling back to defaults otherwise.
	UIModeAsk UIMode = "ask"

	// UIModeDevelopmentDefaultsOrAsk applies development defaults and only
	// asks for what has no default.
	UIModeDevelopmentDefaultsOrAsk UIMode = "development_defaults_or_ask"

	// UIModeProductionDefaults applies production defaults and never asks.
	UIModeProductionDefaults UIMode = "production_defaults"

	// UIModeCheck reports status without changing anything.
	UIModeCheck UIMode = "check"
)

// DefaultUIMode is used when no mode is given.
const DefaultUIMode = UIModeDevelopmentDefaultsOrAsk

var uiModes = []UIMode{UIModeAsk, UIModeDevelopmentDefaultsOrAsk, UIModeProductionDefaults, UIModeCheck}

// UIModeNames lists the accepted mode names.
func UIModeNames() []string {
	names := make([]string, len(uiModes))
	for i, m := range uiModes {
		names[i] = string(m)
	}
	return names
}

// ParseUIMode parses a mode name; empty means DefaultUIMode.
func ParseUIMode(s string) (UIMode, error) {
	if s == "" {
		return DefaultUIMode, nil
	}
	for _, m := range uiModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (valid: %s)", s, strings.Join(UIModeNames(), ", "))
}

// ProvideMode returns the provider mode a UI mode runs fixes in.
func (m UIMode) ProvideMode() requirement.ProvideMode {
	switch m {
	case UIModeProductionDefaults:
		return requirement.ProvideProduction
	case UIModeCheck:
		return requirement.ProvideCheck
	default:
		return requirement.ProvideDevelopment
	}
}

// asksFirst reports whether fixes start interactively.
func (m UIMode) asksFirst() bool {
	return m == UIModeAsk
}

// mayAsk reports whether a fix that needs input may fall back to a prompt.
func (m UIMode) mayAsk() bool {
	return m == UIModeAsk || m == UIModeDevelopmentDefaultsOrAsk
}
