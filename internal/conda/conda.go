// Package conda drives the conda executable to materialize environment
// prefixes and inspects what is installed in them.
package conda

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	kexec "github.com/systmms/kapsel/pkg/exec"
)

// Manager creates and updates Conda environments.
type Manager interface {
	// Create makes a new prefix containing packages.
	Create(ctx context.Context, prefix string, packages, channels []string) error

	// Install adds packages to an existing prefix.
	Install(ctx context.Context, prefix string, packages, channels []string) error

	// Installed returns the installed package names of prefix mapped to
	// their versions.
	Installed(prefix string) (map[string]string, error)
}

// Error is a failed conda invocation.
type Error struct {
	Command string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Command, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CLI is the Manager backed by the conda executable.
type CLI struct {
	executor   kexec.CommandExecutor
	executable string
}

// NewCLI returns a manager that runs conda through executor. CONDA_EXE
// overrides the executable looked up on PATH.
func NewCLI(executor kexec.CommandExecutor) *CLI {
	if executor == nil {
		executor = kexec.DefaultExecutor()
	}
	executable := os.Getenv("CONDA_EXE")
	if executable == "" {
		executable = "conda"
	}
	return &CLI{executor: executor, executable: executable}
}

// Executable returns the conda binary in use.
func (c *CLI) Executable() string {
	return c.executable
}

// Create implements Manager.
func (c *CLI) Create(ctx context.Context, prefix string, packages, channels []string) error {
	args := []string{"create", "--yes", "--quiet", "--prefix", prefix}
	args = append(args, channelArgs(channels)...)
	// conda refuses an empty create
	if len(packages) == 0 {
		packages = []string{"python"}
	}
	args = append(args, packages...)
	return c.run(ctx, args...)
}

// Install implements Manager.
func (c *CLI) Install(ctx context.Context, prefix string, packages, channels []string) error {
	if len(packages) == 0 {
		return nil
	}
	args := []string{"install", "--yes", "--quiet", "--prefix", prefix}
	args = append(args, channelArgs(channels)...)
	args = append(args, packages...)
	return c.run(ctx, args...)
}

// Installed implements Manager.
func (c *CLI) Installed(prefix string) (map[string]string, error) {
	return InstalledPackages(prefix)
}

func (c *CLI) run(ctx context.Context, args ...string) error {
	_, stderr, err := c.executor.Execute(ctx, c.executable, args...)
	if err != nil {
		return &Error{
			Command: kexec.Describe(c.executable, args...),
			Stderr:  string(stderr),
			Err:     err,
		}
	}
	return nil
}

func channelArgs(channels []string) []string {
	var args []string
	for _, ch := range channels {
		args = append(args, "--channel", ch)
	}
	return args
}

type metaRecord struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InstalledPackages reads the conda-meta records of prefix. A prefix without
// conda-meta is reported as an error.
func InstalledPackages(prefix string) (map[string]string, error) {
	metaDir := filepath.Join(prefix, "conda-meta")
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		return nil, fmt.Errorf("%s is not a Conda environment: %w", prefix, err)
	}

	installed := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(metaDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		var rec metaRecord
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Name == "" {
			// records are named <name>-<version>-<build>.json
			name := nameFromRecordFile(entry.Name())
			if name == "" {
				continue
			}
			rec = metaRecord{Name: name}
		}
		installed[rec.Name] = rec.Version
	}
	return installed, nil
}

func nameFromRecordFile(file string) string {
	base := strings.TrimSuffix(file, ".json")
	parts := strings.Split(base, "-")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[:len(parts)-2], "-")
}

// PackageName extracts the package name from a match spec such as
// "numpy=1.11", "python >=3.5" or "conda-forge::bokeh".
func PackageName(spec string) string {
	spec = strings.TrimSpace(spec)
	if i := strings.LastIndex(spec, "::"); i >= 0 {
		spec = spec[i+2:]
	}
	end := strings.IndexAny(spec, " =<>!~[")
	if end >= 0 {
		spec = spec[:end]
	}
	return strings.ToLower(spec)
}

// Missing returns the declared package names not present in installed,
// sorted.
func Missing(declared []string, installed map[string]string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, spec := range declared {
		name := PackageName(spec)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := installed[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// BinDir returns the directory holding executables of prefix.
func BinDir(prefix string) string {
	return filepath.Join(prefix, "bin")
}
