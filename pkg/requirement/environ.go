package requirement

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Environ is a snapshot of environment variables.
type Environ map[string]string

// FromOS snapshots the process environment.
func FromOS() Environ {
	return FromList(os.Environ())
}

// FromList parses KEY=VALUE entries.
func FromList(list []string) Environ {
	env := make(Environ, len(list))
	for _, entry := range list {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}
	return env
}

// Lookup returns the value of name. A variable set to "" is reported as unset.
func (e Environ) Lookup(name string) (string, bool) {
	v, ok := e[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Clone returns an independent copy.
func (e Environ) Clone() Environ {
	out := make(Environ, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Slice renders the environment as sorted KEY=VALUE entries.
func (e Environ) Slice() []string {
	result := make([]string, 0, len(e))
	for key, value := range e {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(result)
	return result
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
