package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/systmms/kapsel/pkg/requirement"
)

// FixFunc scripts the outcome of a FakeProvider fix.
type FixFunc func(fc *requirement.FixContext) (*requirement.FixResult, error)

// FakeProvider is a requirement.Provider whose checks pass when the variable
// is set in the environment or was marked satisfied.
type FakeProvider struct {
	mu        sync.Mutex
	name      string
	satisfied map[string]bool
	fixes     map[string]FixFunc
	checks    map[string]int
	fixCalls  map[string]int
	cleaned   []string
}

// NewFakeProvider creates a provider reporting name.
func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{
		name:      name,
		satisfied: make(map[string]bool),
		fixes:     make(map[string]FixFunc),
		checks:    make(map[string]int),
		fixCalls:  make(map[string]int),
	}
}

// Satisfy marks envVar as satisfied regardless of the environment.
func (f *FakeProvider) Satisfy(envVar string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.satisfied[envVar] = true
}

// OnFix scripts the fix of envVar.
func (f *FakeProvider) OnFix(envVar string, fn FixFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixes[envVar] = fn
}

// Name implements requirement.Provider.
func (f *FakeProvider) Name() string {
	return f.name
}

// Check implements requirement.Provider.
func (f *FakeProvider) Check(_ context.Context, req *requirement.Requirement, in requirement.CheckInput) *requirement.Status {
	f.mu.Lock()
	f.checks[req.EnvVar()]++
	forced := f.satisfied[req.EnvVar()]
	f.mu.Unlock()

	if _, ok := in.Environ.Lookup(req.EnvVar()); ok || forced {
		return requirement.NewStatus(req, true, fmt.Sprintf("%s is fine.", req.EnvVar()))
	}
	return requirement.NewStatus(req, false, fmt.Sprintf("Environment variable %s is not set.", req.EnvVar()))
}

// Fix implements requirement.Provider.
func (f *FakeProvider) Fix(_ context.Context, req *requirement.Requirement, fc *requirement.FixContext) (*requirement.FixResult, error) {
	f.mu.Lock()
	f.fixCalls[req.EnvVar()]++
	fn := f.fixes[req.EnvVar()]
	f.mu.Unlock()

	if fn == nil {
		return &requirement.FixResult{}, nil
	}
	return fn(fc)
}

// Clean implements requirement.Cleaner.
func (f *FakeProvider) Clean(_ context.Context, req *requirement.Requirement, _ *requirement.FixContext) *requirement.FixResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, req.EnvVar())
	return &requirement.FixResult{}
}

// CheckCount returns how often envVar was checked.
func (f *FakeProvider) CheckCount(envVar string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks[envVar]
}

// FixCount returns how often envVar was fixed.
func (f *FakeProvider) FixCount(envVar string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fixCalls[envVar]
}

// Cleaned returns the variables cleaned so far.
func (f *FakeProvider) Cleaned() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cleaned...)
}

// FakeCondaManager is an in-memory conda.Manager.
type FakeCondaManager struct {
	mu       sync.Mutex
	prefixes map[string]map[string]string

	// CreateErr and InstallErr make the corresponding call fail.
	CreateErr  error
	InstallErr error

	Created  []string
	Installs [][]string
}

// NewFakeCondaManager creates a manager with no environments.
func NewFakeCondaManager() *FakeCondaManager {
	return &FakeCondaManager{prefixes: make(map[string]map[string]string)}
}

// AddPrefix registers an existing environment with packages.
func (m *FakeCondaManager) AddPrefix(prefix string, packages ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkgs := make(map[string]string)
	for _, p := range packages {
		pkgs[p] = "1.0"
	}
	m.prefixes[prefix] = pkgs
}

// Create implements conda.Manager.
func (m *FakeCondaManager) Create(_ context.Context, prefix string, packages, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	pkgs := make(map[string]string)
	for _, p := range packages {
		pkgs[packageName(p)] = "1.0"
	}
	m.prefixes[prefix] = pkgs
	m.Created = append(m.Created, prefix)
	return nil
}

// Install implements conda.Manager.
func (m *FakeCondaManager) Install(_ context.Context, prefix string, packages, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InstallErr != nil {
		return m.InstallErr
	}
	for _, p := range packages {
		m.prefixes[prefix][packageName(p)] = "1.0"
	}
	m.Installs = append(m.Installs, append([]string(nil), packages...))
	return nil
}

// Installed implements conda.Manager.
func (m *FakeCondaManager) Installed(prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkgs, ok := m.prefixes[prefix]
	if !ok {
		return nil, fmt.Errorf("%s is not a Conda environment", prefix)
	}
	out := make(map[string]string, len(pkgs))
	for k, v := range pkgs {
		out[k] = v
	}
	return out, nil
}

func packageName(spec string) string {
	for i, r := range spec {
		if r == '=' || r == ' ' || r == '<' || r == '>' {
			return spec[:i]
		}
	}
	return spec
}
