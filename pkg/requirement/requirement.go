package requirement

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies one variant of the closed Requirement set.
type Kind string

const (
	// KindEnvVar is a plain environment variable.
	KindEnvVar Kind = "env_var"

	// KindDownload is a file fetched from a URL; the variable holds its path.
	KindDownload Kind = "download"

	// KindService is a network service; the variable holds its URL.
	KindService Kind = "service"

	// KindCondaEnv is a Conda environment materialized from an env spec.
	KindCondaEnv Kind = "conda_env"
)

// TypeName returns the display name used in String().
func (k Kind) TypeName() string {
	switch k {
	case KindDownload:
		return "DownloadRequirement"
	case KindService:
		return "ServiceRequirement"
	case KindCondaEnv:
		return "CondaEnvRequirement"
	default:
		return "EnvVarRequirement"
	}
}

// encryptedSuffixes mark variables whose values are secret unless the
// manifest says otherwise.
var encryptedSuffixes = []string{"_PASSWORD", "_SECRET", "_SECRET_KEY"}

// ProviderSource finds the Provider responsible for a Kind. The provider
// registry implements it.
type ProviderSource interface {
	ProviderFor(kind Kind) (Provider, error)
}

// Requirement is one precondition a project needs before commands can run.
//
// Requirements are built fresh on every manifest load and are immutable after
// construction. Two requirements with the same EnvVar occupy the same slot
// across reloads; see SameSlot.
type Requirement struct {
	kind    Kind
	envVar  string
	options Options
	source  ProviderSource
}

// New creates a requirement. The options map is copied.
func New(source ProviderSource, kind Kind, envVar string, options Options) *Requirement {
	return &Requirement{
		kind:    kind,
		envVar:  envVar,
		options: options.Clone(),
		source:  source,
	}
}

// Kind returns the requirement variant.
func (r *Requirement) Kind() Kind {
	return r.kind
}

// EnvVar returns the environment variable this requirement is keyed by.
func (r *Requirement) EnvVar() string {
	return r.envVar
}

// Options returns a copy of the requirement options.
func (r *Requirement) Options() Options {
	return r.options.Clone()
}

// Option returns a single raw option value.
func (r *Requirement) Option(key string) (interface{}, bool) {
	v, ok := r.options[key]
	return v, ok
}

// Encrypted reports whether the value must be kept out of plaintext storage
// and logs. An explicit "encrypted" option always wins over the name-suffix
// heuristic.
func (r *Requirement) Encrypted() bool {
	if v, ok := r.options.Bool("encrypted"); ok {
		return v
	}
	for _, suffix := range encryptedSuffixes {
		if strings.HasSuffix(r.envVar, suffix) {
			return true
		}
	}
	return false
}

// DefaultValue returns the manifest default, if any.
func (r *Requirement) DefaultValue() (string, bool) {
	return r.options.Scalar("default")
}

// Title returns a short display name.
func (r *Requirement) Title() string {
	if title, ok := r.options.String("title"); ok && title != "" {
		return title
	}
	return r.envVar
}

// Description returns a one-line explanation of what the requirement needs.
func (r *Requirement) Description() string {
	if desc, ok := r.options.String("description"); ok && desc != "" {
		return desc
	}
	switch r.kind {
	case KindDownload:
		return fmt.Sprintf("A downloaded file which is referenced by %s.", r.envVar)
	case KindService:
		return fmt.Sprintf("A running %s server, located by the URL in %s.", r.ServiceType(), r.envVar)
	case KindCondaEnv:
		return fmt.Sprintf("A Conda environment with the packages from env spec '%s'.", r.EnvSpecName())
	default:
		return fmt.Sprintf("%s environment variable must be set.", r.envVar)
	}
}

// ServiceType returns the declared service type for service requirements.
func (r *Requirement) ServiceType() string {
	s, _ := r.options.String("type")
	return s
}

// EnvSpecName returns the env spec a conda requirement was declared for. An
// empty name means "whatever spec is active".
func (r *Requirement) EnvSpecName() string {
	s, _ := r.options.String("env_spec")
	return s
}

// URL returns the download URL.
func (r *Requirement) URL() string {
	s, _ := r.options.String("url")
	return s
}

// SameSlot reports whether other occupies the same project slot.
func (r *Requirement) SameSlot(other *Requirement) bool {
	return other != nil && r.envVar == other.envVar
}

// String renders the stable diagnostic form, e.g.
// EnvVarRequirement(env_var='FOO').
func (r *Requirement) String() string {
	return fmt.Sprintf("%s(env_var='%s')", r.kind.TypeName(), r.envVar)
}

// Provider returns the provider for this requirement's kind.
func (r *Requirement) Provider() (Provider, error) {
	if r.source == nil {
		return nil, fmt.Errorf("%s has no provider source", r)
	}
	return r.source.ProviderFor(r.kind)
}

// CheckStatus evaluates the requirement against the given state.
func (r *Requirement) CheckStatus(ctx context.Context, in CheckInput) *Status {
	p, err := r.Provider()
	if err != nil {
		// an unknown kind is a registry wiring bug, not a user problem
		panic(err)
	}
	return p.Check(ctx, r, in)
}

// Options holds per-requirement configuration knobs from the manifest.
type Options map[string]interface{}

// Clone returns a shallow copy; nil stays nil-safe.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// String returns a string option.
func (o Options) String(key string) (string, bool) {
	s, ok := o[key].(string)
	return s, ok
}

// Scalar returns a scalar option rendered as a string; YAML numbers and
// booleans are accepted.
func (o Options) Scalar(key string) (string, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case int, int64, float64, bool:
		return fmt.Sprint(val), true
	}
	return "", false
}

// Bool returns a boolean option.
func (o Options) Bool(key string) (bool, bool) {
	b, ok := o[key].(bool)
	return b, ok
}

// StringSlice returns a list-of-strings option.
func (o Options) StringSlice(key string) []string {
	switch val := o[key].(type) {
	case []string:
		return append([]string(nil), val...)
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Keys returns the option names in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
