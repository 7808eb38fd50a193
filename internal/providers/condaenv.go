package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/systmms/kapsel/internal/conda"
	dserrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/logging"
	"github.com/systmms/kapsel/pkg/requirement"
)

// CondaEnvProvider materializes env specs as Conda prefixes under
// <project>/envs/<name>.
type CondaEnvProvider struct {
	manager conda.Manager
	logger  *logging.Logger
}

// NewCondaEnvProvider creates the provider.
func NewCondaEnvProvider(manager conda.Manager, logger *logging.Logger) *CondaEnvProvider {
	return &CondaEnvProvider{manager: manager, logger: orDiscard(logger)}
}

// Name implements requirement.Provider.
func (p *CondaEnvProvider) Name() string {
	return string(requirement.KindCondaEnv)
}

// EnvPrefix returns where env spec name lives inside projectDir.
func EnvPrefix(projectDir, name string) string {
	return filepath.Join(projectDir, "envs", name)
}

func (p *CondaEnvProvider) resolveSpec(req *requirement.Requirement, in requirement.CheckInput) (requirement.EnvSpec, error) {
	name := in.ActiveEnvSpec()
	if pinned := req.EnvSpecName(); pinned != "" && in.Overrides.EnvSpecName == "" {
		name = pinned
	}
	spec, ok := in.EnvSpecs[name]
	if !ok {
		return requirement.EnvSpec{}, fmt.Errorf("Environment spec '%s' does not exist in this project.", name)
	}
	return spec, nil
}

// Check implements requirement.Provider.
func (p *CondaEnvProvider) Check(_ context.Context, req *requirement.Requirement, in requirement.CheckInput) *requirement.Status {
	spec, err := p.resolveSpec(req, in)
	if err != nil {
		return requirement.NewStatus(req, false, err.Error()).WithErrors(err.Error())
	}

	prefix := EnvPrefix(in.ProjectDir, spec.Name)
	installed, err := p.manager.Installed(prefix)
	if err != nil {
		return requirement.NewStatus(req, false,
			fmt.Sprintf("Conda environment '%s' does not exist at %s.", spec.Name, prefix))
	}

	if missing := conda.Missing(spec.Packages, installed); len(missing) > 0 {
		return requirement.NewStatus(req, false,
			fmt.Sprintf("Conda environment '%s' is missing packages: %s", spec.Name, strings.Join(missing, ", ")))
	}

	status := requirement.NewStatus(req, true, fmt.Sprintf("Using Conda environment %s.", prefix))
	for k, v := range activationExports(prefix, in.Environ) {
		status = status.WithExport(k, v)
	}
	return status
}

// activationExports mirrors what "conda activate" sets.
func activationExports(prefix string, environ requirement.Environ) map[string]string {
	path := conda.BinDir(prefix)
	if current, ok := environ.Lookup("PATH"); ok {
		path = path + string(os.PathListSeparator) + current
	}
	return map[string]string{
		"CONDA_PREFIX":      prefix,
		"CONDA_ENV_PATH":    prefix,
		"CONDA_DEFAULT_ENV": prefix,
		"PATH":              path,
	}
}

// Fix implements requirement.Provider.
func (p *CondaEnvProvider) Fix(ctx context.Context, req *requirement.Requirement, fc *requirement.FixContext) (*requirement.FixResult, error) {
	result := &requirement.FixResult{}
	if fc.Mode == requirement.ProvideCheck {
		return result, nil
	}

	spec, err := p.resolveSpec(req, fc.Input)
	if err != nil {
		result.Errorf("%s", err.Error())
		return result, nil
	}

	prefix := EnvPrefix(fc.Input.ProjectDir, spec.Name)
	installed, err := p.manager.Installed(prefix)
	if err != nil {
		p.logger.Debug("Creating Conda environment %s", prefix)
		if err := p.manager.Create(ctx, prefix, spec.Packages, spec.Channels); err != nil {
			result.Errorf("%s", dserrors.DescribeProviderFailure(p.Name(), err))
			return result, nil
		}
		result.Logf("Created Conda environment %s.", prefix)
		return result, nil
	}

	missing := conda.Missing(spec.Packages, installed)
	if len(missing) == 0 {
		return result, nil
	}
	if err := p.manager.Install(ctx, prefix, specsFor(spec.Packages, missing), spec.Channels); err != nil {
		result.Errorf("%s", dserrors.DescribeProviderFailure(p.Name(), err))
		return result, nil
	}
	result.Logf("Installed %s into %s.", strings.Join(missing, ", "), prefix)
	return result, nil
}

// specsFor returns the declared match specs whose package is missing, so
// version constraints are kept.
func specsFor(declared, missing []string) []string {
	want := make(map[string]bool, len(missing))
	for _, m := range missing {
		want[m] = true
	}
	var specs []string
	for _, spec := range declared {
		if name := conda.PackageName(spec); want[name] {
			specs = append(specs, spec)
			delete(want, name)
		}
	}
	return specs
}

// Clean implements requirement.Cleaner: the environment directory is removed.
func (p *CondaEnvProvider) Clean(_ context.Context, req *requirement.Requirement, fc *requirement.FixContext) *requirement.FixResult {
	result := &requirement.FixResult{}
	spec, err := p.resolveSpec(req, fc.Input)
	if err != nil {
		result.Errorf("%s", err.Error())
		return result
	}
	prefix := EnvPrefix(fc.Input.ProjectDir, spec.Name)
	if err := os.RemoveAll(prefix); err != nil {
		result.Errorf("Failed to remove %s: %v", prefix, err)
		return result
	}
	result.Logf("Deleted environment files in %s.", prefix)
	return result
}
