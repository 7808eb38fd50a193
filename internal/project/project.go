// Package project loads kapsel.yml and turns it into requirements, env specs
// and commands.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/pkg/requirement"
)

// Filename is the manifest file name inside a project directory.
const Filename = "kapsel.yml"

// DefaultEnvSpecName names the env spec used when the manifest declares none.
const DefaultEnvSpecName = "default"

// Project is a loaded kapsel directory.
type Project struct {
	dir      string
	manifest *Manifest
	registry *providers.Registry

	problems       []string
	name           string
	envSpecs       []requirement.EnvSpec
	defaultEnvSpec string
	commands       []*Command
	requirements   []*requirement.Requirement
}

// Open loads the project in dir. Manifest problems do not fail Open; they are
// reported by Problems and turned into an error by Load.
func Open(dir string, registry *providers.Registry) *Project {
	if registry == nil {
		registry = providers.Default()
	}
	abs, err := filepath.Abs(dir)
	if err == nil {
		dir = abs
	}
	p := &Project{dir: dir, registry: registry}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		p.manifest, _ = LoadManifest(filepath.Join(dir, Filename))
		if p.manifest == nil {
			p.manifest = &Manifest{path: filepath.Join(dir, Filename), doc: emptyDocument()}
		}
		p.problems = []string{fmt.Sprintf("Project directory '%s' does not exist.", dir)}
		return p
	}

	m, err := LoadManifest(filepath.Join(dir, Filename))
	if err != nil {
		p.manifest = &Manifest{path: filepath.Join(dir, Filename), doc: emptyDocument()}
		p.problems = []string{err.Error()}
		return p
	}
	p.manifest = m
	p.Refresh()
	return p
}

// Load is Open that fails with an errors.ProjectError when the manifest has
// problems.
func Load(dir string, registry *providers.Registry) (*Project, error) {
	p := Open(dir, registry)
	if err := p.ProblemsError("Unable to load the project."); err != nil {
		return p, err
	}
	return p, nil
}

// ProblemsError wraps the current problems with summary, or returns nil.
func (p *Project) ProblemsError(summary string) error {
	if len(p.problems) == 0 {
		return nil
	}
	return kerrors.ProjectError{Problems: p.Problems(), Summary: summary}
}

// Refresh re-derives everything from the in-memory manifest, e.g. after an
// edit.
func (p *Project) Refresh() {
	p.problems = nil
	p.requirements = nil
	p.commands = nil
	p.envSpecs = nil

	p.name = filepath.Base(p.dir)
	if name, ok := p.manifest.Get("name").(string); ok && name != "" {
		p.name = name
	}

	doc, _ := p.manifest.Get().(map[string]interface{})
	if doc == nil {
		doc = map[string]interface{}{}
	}

	p.parseEnvSpecs()
	reqs := p.parseVariables(doc)
	reqs = append(reqs, p.parseDownloads()...)
	reqs = append(reqs, p.parseServices()...)

	if schemaProblems, err := validateSchema(doc); err != nil {
		p.fileProblem("%v", err)
	} else {
		for _, problem := range schemaProblems {
			p.fileProblem("%s", problem)
		}
	}

	if p.hasCondaEnv() {
		reqs = append([]*requirement.Requirement{p.registry.NewCondaEnvRequirement("")}, reqs...)
	}
	p.requirements = reqs
	p.parseCommands()
}

func (p *Project) problem(format string, args ...interface{}) {
	p.problems = append(p.problems, fmt.Sprintf(format, args...))
}

// fileProblem records a problem prefixed by the manifest path.
func (p *Project) fileProblem(format string, args ...interface{}) {
	p.problems = append(p.problems, p.manifest.Path()+": "+fmt.Sprintf(format, args...))
}

func stringList(v interface{}) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p *Project) parseEnvSpecs() {
	globalPackages := stringList(p.manifest.Get("packages"))
	globalChannels := stringList(p.manifest.Get("channels"))

	names := p.manifest.Keys("env_specs")
	if len(names) == 0 {
		p.envSpecs = []requirement.EnvSpec{{
			Name:     DefaultEnvSpecName,
			Packages: globalPackages,
			Channels: globalChannels,
		}}
		p.defaultEnvSpec = DefaultEnvSpecName
		return
	}

	p.defaultEnvSpec = names[0]
	for _, name := range names {
		if name == DefaultEnvSpecName {
			p.defaultEnvSpec = name
		}
		spec, _ := p.manifest.Get("env_specs", name).(map[string]interface{})
		p.envSpecs = append(p.envSpecs, requirement.EnvSpec{
			Name:     name,
			Packages: append(append([]string(nil), globalPackages...), stringList(spec["packages"])...),
			Channels: append(append([]string(nil), globalChannels...), stringList(spec["channels"])...),
		})
	}
}

func (p *Project) hasCondaEnv() bool {
	if p.manifest.Node("env_specs") != nil {
		return true
	}
	for _, spec := range p.envSpecs {
		if len(spec.Packages) > 0 {
			return true
		}
	}
	return false
}

// condaManaged variables are exported by the conda requirement itself.
var condaManaged = map[string]bool{"CONDA_PREFIX": true, "CONDA_ENV_PATH": true, "CONDA_DEFAULT_ENV": true}

func (p *Project) parseVariables(doc map[string]interface{}) []*requirement.Requirement {
	raw, present := doc["variables"]
	if !present || raw == nil {
		return nil
	}

	var reqs []*requirement.Requirement
	add := func(name string, options requirement.Options) {
		if condaManaged[name] {
			return
		}
		reqs = append(reqs, p.registry.FindRequirementByEnvVar(name, options))
	}

	switch vars := raw.(type) {
	case []interface{}:
		for _, item := range vars {
			name, ok := item.(string)
			if !ok {
				p.problem("variables section contains non-string item %v", item)
				continue
			}
			add(name, nil)
		}
	case map[string]interface{}:
		for _, name := range p.manifest.Keys("variables") {
			switch options := vars[name].(type) {
			case nil:
				add(name, nil)
			case map[string]interface{}:
				add(name, requirement.Options(options))
			default:
				add(name, requirement.Options{"default": options})
			}
		}
	default:
		p.problem("variables section contains wrong value type %v, should be dict or list of requirements", raw)
	}
	return reqs
}

func (p *Project) parseDownloads() []*requirement.Requirement {
	var reqs []*requirement.Requirement
	for _, name := range p.manifest.Keys("downloads") {
		var options requirement.Options
		switch v := p.manifest.Get("downloads", name).(type) {
		case string:
			options = requirement.Options{"url": v}
		case map[string]interface{}:
			options = requirement.Options(v)
		default:
			continue
		}
		if url, _ := options.String("url"); url == "" {
			p.fileProblem("Download item %s doesn't contain a 'url' field.", name)
			continue
		}
		req := p.registry.NewDownloadRequirement(name, options)
		if _, _, err := providers.DownloadHash(req); err != nil {
			p.fileProblem("Download item %s: %v", name, err)
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func (p *Project) parseServices() []*requirement.Requirement {
	var reqs []*requirement.Requirement
	for _, name := range p.manifest.Keys("services") {
		var (
			serviceType string
			options     requirement.Options
		)
		switch v := p.manifest.Get("services", name).(type) {
		case string:
			serviceType = v
			options = requirement.Options{}
		case map[string]interface{}:
			options = requirement.Options(v)
			serviceType, _ = options.String("type")
		default:
			continue
		}
		req := p.registry.FindRequirementByServiceType(serviceType, name, options)
		if req == nil {
			p.fileProblem("Service %s has an unknown type '%s'.", name, serviceType)
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func (p *Project) parseCommands() {
	known := make(map[string]bool, len(p.envSpecs))
	for _, spec := range p.envSpecs {
		known[spec.Name] = true
	}

	for _, name := range p.manifest.Keys("commands") {
		cmd, problem := parseCommand(name, p.manifest.Get("commands", name), known, p.defaultEnvSpec)
		if problem != "" {
			p.fileProblem("%s", problem)
			continue
		}
		p.commands = append(p.commands, cmd)
	}
	p.commands = append(p.commands, notebookCommands(p.dir, p.commands, p.defaultEnvSpec)...)
}

// Dir returns the absolute project directory.
func (p *Project) Dir() string {
	return p.dir
}

// Name returns the project name, defaulting to the directory name.
func (p *Project) Name() string {
	return p.name
}

// Manifest returns the editable manifest.
func (p *Project) Manifest() *Manifest {
	return p.manifest
}

// Registry returns the registry requirements were built with.
func (p *Project) Registry() *providers.Registry {
	return p.registry
}

// Problems returns the manifest problems found by the last load.
func (p *Project) Problems() []string {
	return append([]string(nil), p.problems...)
}

// Requirements returns the requirements in resolution order: the conda
// environment first, then variables, downloads and services in manifest
// order.
func (p *Project) Requirements() []*requirement.Requirement {
	return append([]*requirement.Requirement(nil), p.requirements...)
}

// FindRequirement returns the requirement for envVar, or nil.
func (p *Project) FindRequirement(envVar string) *requirement.Requirement {
	for _, r := range p.requirements {
		if r.EnvVar() == envVar {
			return r
		}
	}
	return nil
}

// EnvSpecs returns the env specs in manifest order.
func (p *Project) EnvSpecs() []requirement.EnvSpec {
	return append([]requirement.EnvSpec(nil), p.envSpecs...)
}

// EnvSpecMap returns the env specs keyed by name.
func (p *Project) EnvSpecMap() map[string]requirement.EnvSpec {
	out := make(map[string]requirement.EnvSpec, len(p.envSpecs))
	for _, spec := range p.envSpecs {
		out[spec.Name] = spec
	}
	return out
}

// DefaultEnvSpec returns the env spec used when none is pinned.
func (p *Project) DefaultEnvSpec() string {
	return p.defaultEnvSpec
}

// Commands returns the declared commands followed by auto-generated ones.
func (p *Project) Commands() []*Command {
	return append([]*Command(nil), p.commands...)
}

// Command returns the named command, or nil.
func (p *Project) Command(name string) *Command {
	for _, c := range p.commands {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// DefaultCommand returns the command named "default", else the first one.
func (p *Project) DefaultCommand() *Command {
	if c := p.Command("default"); c != nil {
		return c
	}
	if len(p.commands) > 0 {
		return p.commands[0]
	}
	return nil
}

// CheckInput builds the resolution input for this project.
func (p *Project) CheckInput(environ requirement.Environ, state requirement.LocalState, overrides requirement.UserConfigOverrides) requirement.CheckInput {
	return requirement.CheckInput{
		Environ:     environ,
		State:       state,
		EnvSpecName: p.defaultEnvSpec,
		Overrides:   overrides,
		ProjectDir:  p.dir,
		EnvSpecs:    p.EnvSpecMap(),
	}
}

// Save writes manifest edits.
func (p *Project) Save() error {
	return p.manifest.Save()
}
