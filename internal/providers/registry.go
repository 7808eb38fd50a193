package providers

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/systmms/kapsel/internal/conda"
	"github.com/systmms/kapsel/internal/logging"
	kexec "github.com/systmms/kapsel/pkg/exec"
	"github.com/systmms/kapsel/pkg/requirement"
)

// CondaPrefixEnvVar is the variable a Conda environment requirement is bound to.
const CondaPrefixEnvVar = "CONDA_PREFIX"

// Registry is the catalog of requirement kinds, service types and the
// providers that check and fix them.
//
// Construction is cheap; the catalog is populated on first use and is
// read-only afterwards, so one Registry can be shared by every consumer.
type Registry struct {
	once sync.Once

	extraTypes []ServiceType
	overrides  map[requirement.Kind]requirement.Provider
	executor   kexec.CommandExecutor
	httpClient *http.Client
	sqlOpen    SQLOpener
	conda      conda.Manager
	logger     *logging.Logger

	serviceTypes []ServiceType
	byName       map[string]int
	byEnvVar     map[string]int
	providers    map[requirement.Kind]requirement.Provider
}

// Option configures a Registry.
type Option func(*Registry)

// WithServiceType adds a service type after the built-in ones. A type whose
// name is already registered is ignored.
func WithServiceType(st ServiceType) Option {
	return func(r *Registry) {
		r.extraTypes = append(r.extraTypes, st)
	}
}

// WithProvider replaces the provider for kind.
func WithProvider(kind requirement.Kind, p requirement.Provider) Option {
	return func(r *Registry) {
		r.overrides[kind] = p
	}
}

// WithExecutor sets the executor used for redis-server and conda.
func WithExecutor(executor kexec.CommandExecutor) Option {
	return func(r *Registry) {
		r.executor = executor
	}
}

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) {
		r.httpClient = client
	}
}

// WithSQLOpener sets how database services are opened for pings.
func WithSQLOpener(open SQLOpener) Option {
	return func(r *Registry) {
		r.sqlOpen = open
	}
}

// WithCondaManager sets the package manager for Conda environments.
func WithCondaManager(m conda.Manager) Option {
	return func(r *Registry) {
		r.conda = m
	}
}

// WithLogger sets the logger providers report through.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry. Nothing is built until first use.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		overrides: make(map[requirement.Kind]requirement.Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry with production collaborators.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func (r *Registry) init() {
	r.once.Do(func() {
		if r.executor == nil {
			r.executor = kexec.DefaultExecutor()
		}
		if r.httpClient == nil {
			r.httpClient = &http.Client{Timeout: DefaultDownloadTimeout}
		}
		if r.conda == nil {
			r.conda = conda.NewCLI(r.executor)
		}
		if r.logger == nil {
			r.logger = logging.New(false, true)
		}

		r.byName = make(map[string]int)
		r.byEnvVar = make(map[string]int)
		types := append(builtinServiceTypes(r.sqlOpen, NewRedisLauncher(r.executor)), r.extraTypes...)
		for _, st := range types {
			if _, dup := r.byName[st.Name]; dup {
				continue
			}
			r.byName[st.Name] = len(r.serviceTypes)
			if st.DefaultEnvVar != "" {
				if _, taken := r.byEnvVar[st.DefaultEnvVar]; !taken {
					r.byEnvVar[st.DefaultEnvVar] = len(r.serviceTypes)
				}
			}
			r.serviceTypes = append(r.serviceTypes, st)
		}

		r.providers = map[requirement.Kind]requirement.Provider{
			requirement.KindEnvVar:   NewEnvVarProvider(r.logger),
			requirement.KindDownload: NewDownloadProvider(r.httpClient, r.logger),
			requirement.KindService:  NewServiceProvider(r.ServiceType, r.logger),
			requirement.KindCondaEnv: NewCondaEnvProvider(r.conda, r.logger),
		}
		for kind, p := range r.overrides {
			r.providers[kind] = p
		}
	})
}

// ProviderFor implements requirement.ProviderSource.
func (r *Registry) ProviderFor(kind requirement.Kind) (requirement.Provider, error) {
	r.init()
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for requirement kind %q", kind)
	}
	return p, nil
}

// ServiceType returns the registered service type called name.
func (r *Registry) ServiceType(name string) (ServiceType, bool) {
	r.init()
	i, ok := r.byName[name]
	if !ok {
		return ServiceType{}, false
	}
	return r.serviceTypes[i], true
}

// ListServiceTypes returns every service type in registration order.
func (r *Registry) ListServiceTypes() []ServiceType {
	r.init()
	return append([]ServiceType(nil), r.serviceTypes...)
}

// ServiceTypeNames returns the registered service type names in order.
func (r *Registry) ServiceTypeNames() []string {
	types := r.ListServiceTypes()
	names := make([]string, 0, len(types))
	for _, st := range types {
		names = append(names, st.Name)
	}
	return names
}

// FindRequirementByEnvVar builds the requirement for a manifest variable.
// It never returns nil: a variable no plugin recognizes becomes a plain
// environment variable requirement.
func (r *Registry) FindRequirementByEnvVar(envVar string, options requirement.Options) *requirement.Requirement {
	r.init()

	if typeName, ok := options.String("type"); ok {
		if st, ok := r.ServiceType(typeName); ok {
			return r.newServiceRequirement(st, envVar, options)
		}
	}
	if _, ok := options["url"]; ok {
		return r.NewDownloadRequirement(envVar, options)
	}
	if i, ok := r.byEnvVar[envVar]; ok {
		return r.newServiceRequirement(r.serviceTypes[i], envVar, options)
	}
	if envVar == CondaPrefixEnvVar {
		spec, _ := options.String("env_spec")
		return r.NewCondaEnvRequirement(spec)
	}
	return requirement.New(r, requirement.KindEnvVar, envVar, options)
}

// FindRequirementByServiceType builds a service requirement, or returns nil
// when serviceType is not registered. An empty envVar selects the type's
// default variable.
func (r *Registry) FindRequirementByServiceType(serviceType, envVar string, options requirement.Options) *requirement.Requirement {
	st, ok := r.ServiceType(serviceType)
	if !ok {
		return nil
	}
	if envVar == "" {
		envVar = st.DefaultEnvVar
	}
	return r.newServiceRequirement(st, envVar, options)
}

// NewCondaEnvRequirement builds the requirement for an env spec; an empty
// name follows whichever spec is active.
func (r *Registry) NewCondaEnvRequirement(envSpec string) *requirement.Requirement {
	opts := requirement.Options{}
	if envSpec != "" {
		opts["env_spec"] = envSpec
	}
	return requirement.New(r, requirement.KindCondaEnv, CondaPrefixEnvVar, opts)
}

// NewDownloadRequirement builds a download requirement.
func (r *Registry) NewDownloadRequirement(envVar string, options requirement.Options) *requirement.Requirement {
	return requirement.New(r, requirement.KindDownload, envVar, options)
}

func (r *Registry) newServiceRequirement(st ServiceType, envVar string, options requirement.Options) *requirement.Requirement {
	opts := options.Clone()
	opts["type"] = st.Name
	return requirement.New(r, requirement.KindService, envVar, opts)
}
