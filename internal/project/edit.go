package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/systmms/kapsel/internal/conda"
	"github.com/systmms/kapsel/pkg/requirement"
)

// Commit re-validates the edited manifest and saves it. When the edit leaves
// the project broken nothing is written, the manifest is restored from disk
// and the problems come back as a ProjectError carrying summary.
func (p *Project) Commit(summary string) error {
	p.Refresh()
	if err := p.ProblemsError(summary); err != nil {
		if restored, loadErr := LoadManifest(p.manifest.Path()); loadErr == nil {
			p.manifest = restored
		}
		problems := p.problems
		p.Refresh()
		p.problems = problems
		return err
	}
	return p.Save()
}

// AddVariables declares names as required variables, with optional defaults.
// Existing declarations keep their options unless a new default is given.
func (p *Project) AddVariables(names []string, defaults map[string]string) error {
	if node := p.manifest.Node("variables"); node != nil && node.Kind == yaml.SequenceNode {
		if len(defaults) == 0 {
			list := p.manifest.Get("variables").([]interface{})
			for _, name := range names {
				if !containsString(list, name) {
					list = append(list, name)
				}
			}
			if err := p.manifest.Set(list, "variables"); err != nil {
				return err
			}
			return p.Commit("Unable to add variables.")
		}
		// defaults need the mapping form; keep the declared order
		mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, name := range stringList(p.manifest.Get("variables")) {
			setChild(mapping, name, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: ""})
		}
		p.manifest.setNode(mapping, "variables")
	}

	for _, name := range names {
		current := p.manifest.Get("variables", name)
		options, _ := current.(map[string]interface{})
		if options == nil {
			options = map[string]interface{}{}
			if current != nil {
				options["default"] = current
			}
		}
		if def, ok := defaults[name]; ok {
			options["default"] = def
		}
		var value interface{} = options
		if len(options) == 0 {
			value = nil
		}
		if err := p.manifest.Set(value, "variables", name); err != nil {
			return err
		}
	}
	return p.Commit("Unable to add variables.")
}

// RemoveVariables drops names from the manifest and forgets their saved
// values.
func (p *Project) RemoveVariables(names []string, state requirement.LocalState) error {
	if list, ok := p.manifest.Get("variables").([]interface{}); ok {
		drop := make(map[string]bool, len(names))
		for _, n := range names {
			drop[n] = true
		}
		kept := make([]interface{}, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); !ok || !drop[s] {
				kept = append(kept, item)
			}
		}
		if err := p.manifest.Set(kept, "variables"); err != nil {
			return err
		}
	}

	for _, name := range names {
		if state != nil {
			state.UnsetValue("variables", name)
			_ = state.UnsetSecret(name)
		}
		p.manifest.Unset("variables", name)
	}
	return p.Commit("Unable to remove variables.")
}

// AddDownload declares a download. hashAlgorithm and hashValue go together.
func (p *Project) AddDownload(envVar, url, filename, hashAlgorithm, hashValue string) error {
	if (hashAlgorithm == "") != (hashValue == "") {
		return fmt.Errorf("--hash-algorithm and --hash-value must be given together")
	}
	value := map[string]interface{}{"url": url}
	if filename != "" {
		value["filename"] = filename
	}
	if hashAlgorithm != "" {
		value["hash_algorithm"] = hashAlgorithm
		value["hash_value"] = hashValue
	}
	var stored interface{} = value
	if len(value) == 1 {
		stored = url
	}
	if err := p.manifest.Set(stored, "downloads", envVar); err != nil {
		return err
	}
	return p.Commit("Unable to add the download.")
}

// RemoveDownload drops a download from the manifest.
func (p *Project) RemoveDownload(envVar string) error {
	if p.manifest.Node("downloads", envVar) == nil {
		return fmt.Errorf("Download requirement: %s not found.", envVar)
	}
	p.manifest.Unset("downloads", envVar)
	return p.Commit("Unable to remove the download.")
}

// AddService declares a service of serviceType stored in variable, which
// defaults to the type's usual variable. It returns the variable used.
func (p *Project) AddService(serviceType, variable string) (string, error) {
	req := p.registry.FindRequirementByServiceType(serviceType, variable, nil)
	if req == nil {
		return "", fmt.Errorf("Unknown service type '%s', we know about: %s", serviceType, strings.Join(p.registry.ServiceTypeNames(), ", "))
	}
	variable = req.EnvVar()

	if existing := p.manifest.Get("services", variable); existing != nil {
		existingType, _ := existing.(string)
		if m, ok := existing.(map[string]interface{}); ok {
			existingType, _ = m["type"].(string)
		}
		if existingType != serviceType {
			return "", fmt.Errorf("Service %s already exists but with type '%s'", variable, existingType)
		}
		return variable, nil
	}
	if err := p.manifest.Set(serviceType, "services", variable); err != nil {
		return "", err
	}
	return variable, p.Commit("Unable to add service.")
}

// RemoveService drops a service by variable name, or by type when exactly one
// service has it.
func (p *Project) RemoveService(ref string) (string, error) {
	if p.manifest.Node("services", ref) != nil {
		p.manifest.Unset("services", ref)
		return ref, p.Commit("Unable to remove service.")
	}

	var matches []string
	for _, r := range p.requirements {
		if r.Kind() == requirement.KindService && r.ServiceType() == ref {
			matches = append(matches, r.EnvVar())
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("Service '%s' not found in the project file.", ref)
	case 1:
		p.manifest.Unset("services", matches[0])
		return matches[0], p.Commit("Unable to remove service.")
	}
	return "", fmt.Errorf("Variable name or service type '%s' is ambiguous; use one of: %s", ref, strings.Join(matches, ", "))
}

// AddEnvSpec declares a new env spec.
func (p *Project) AddEnvSpec(name string, packages, channels []string) error {
	if name == "" {
		return fmt.Errorf("an env spec name is required")
	}
	if p.manifest.Node("env_specs") == nil && name != DefaultEnvSpecName {
		// the implicit default spec becomes explicit so commands keep resolving
		if err := p.manifest.Set(map[string]interface{}{}, "env_specs", DefaultEnvSpecName); err != nil {
			return err
		}
	}
	spec := map[string]interface{}{"packages": toInterfaces(packages)}
	if len(channels) > 0 {
		spec["channels"] = toInterfaces(channels)
	}
	if err := p.manifest.Set(spec, "env_specs", name); err != nil {
		return err
	}
	return p.Commit("Unable to add the environment.")
}

// RemoveEnvSpec drops an env spec and deletes its prefix from disk.
func (p *Project) RemoveEnvSpec(name string) error {
	if p.manifest.Node("env_specs", name) == nil {
		return fmt.Errorf("Environment spec %s doesn't exist.", name)
	}
	if len(p.manifest.Keys("env_specs")) == 1 {
		return fmt.Errorf("At least one environment spec is required; '%s' is the only one left.", name)
	}
	for _, c := range p.commands {
		if c.EnvSpec == name && !c.AutoGenerated {
			return fmt.Errorf("Command '%s' uses environment spec '%s'.", c.Name, name)
		}
	}
	p.manifest.Unset("env_specs", name)
	if err := p.Commit("Unable to remove the environment."); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(p.dir, "envs", name))
}

// AddPackages adds packages and channels to one env spec, or to the shared
// lists when envSpec is empty.
func (p *Project) AddPackages(envSpec string, packages, channels []string) error {
	base := []string{}
	if envSpec != "" {
		if p.manifest.Node("env_specs", envSpec) == nil {
			return fmt.Errorf("Environment spec %s doesn't exist.", envSpec)
		}
		base = []string{"env_specs", envSpec}
	}

	pkgPath := append(append([]string(nil), base...), "packages")
	current := stringList(p.manifest.Get(pkgPath...))
	// a new spec for the same package replaces the old one
	replaced := make(map[string]bool)
	for _, spec := range packages {
		replaced[conda.PackageName(spec)] = true
	}
	var merged []string
	for _, spec := range current {
		if !replaced[conda.PackageName(spec)] {
			merged = append(merged, spec)
		}
	}
	merged = append(merged, packages...)
	if err := p.manifest.Set(toInterfaces(merged), pkgPath...); err != nil {
		return err
	}

	if len(channels) > 0 {
		chPath := append(append([]string(nil), base...), "channels")
		currentChannels := stringList(p.manifest.Get(chPath...))
		if err := p.manifest.Set(toInterfaces(unique(append(currentChannels, channels...))), chPath...); err != nil {
			return err
		}
	}
	return p.Commit("Unable to add packages.")
}

// RemovePackages removes packages by name from one env spec, or from the
// shared list and every env spec when envSpec is empty.
func (p *Project) RemovePackages(envSpec string, packages []string) error {
	var paths [][]string
	if envSpec != "" {
		if p.manifest.Node("env_specs", envSpec) == nil {
			return fmt.Errorf("Environment spec %s doesn't exist.", envSpec)
		}
		paths = append(paths, []string{"env_specs", envSpec, "packages"})
	} else {
		paths = append(paths, []string{"packages"})
		for _, name := range p.manifest.Keys("env_specs") {
			paths = append(paths, []string{"env_specs", name, "packages"})
		}
	}

	drop := make(map[string]bool, len(packages))
	for _, pkg := range packages {
		drop[conda.PackageName(pkg)] = true
	}
	for _, path := range paths {
		if p.manifest.Node(path...) == nil {
			continue
		}
		var kept []string
		for _, spec := range stringList(p.manifest.Get(path...)) {
			if !drop[conda.PackageName(spec)] {
				kept = append(kept, spec)
			}
		}
		if err := p.manifest.Set(toInterfaces(kept), path...); err != nil {
			return err
		}
	}
	return p.Commit("Unable to remove packages.")
}

// AddCommand declares a command.
func (p *Project) AddCommand(name string, commandType CommandType, command, envSpec string) error {
	if envSpec == "" {
		envSpec = p.defaultEnvSpec
	}
	existing, _ := p.manifest.Get("commands", name).(map[string]interface{})
	if existing == nil {
		existing = map[string]interface{}{}
	}
	existing[string(commandType)] = command
	existing["env_spec"] = envSpec
	if err := p.manifest.Set(existing, "commands", name); err != nil {
		return err
	}
	return p.Commit("Unable to add the command.")
}

// RemoveCommand drops a declared command. Auto-generated commands cannot be
// removed.
func (p *Project) RemoveCommand(name string) error {
	cmd := p.Command(name)
	if cmd == nil {
		return fmt.Errorf("Command: '%s' not found in project file.", name)
	}
	if cmd.AutoGenerated {
		return fmt.Errorf("Cannot remove auto-generated command: '%s'.", name)
	}
	p.manifest.Unset("commands", name)
	return p.Commit("Unable to remove the command.")
}

func containsString(items []interface{}, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

func toInterfaces(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func unique(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

// SortedPackages returns the packages of spec sorted by name.
func SortedPackages(spec requirement.EnvSpec) []string {
	pkgs := append([]string(nil), spec.Packages...)
	sort.Strings(pkgs)
	return pkgs
}
