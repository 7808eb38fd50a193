// Package localstate persists per-project configuration derived while
// preparing a project: variable values, chosen service URLs, run states of
// services kapsel started, download locations.
//
// Plain values live in kapsel-local.yml next to kapsel.yml. Values of
// encrypted requirements never touch that file; they go to a SecretStore
// (the OS keyring by default) and are cached in memory as
// secure.SecureBuffers.
package localstate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/systmms/kapsel/internal/secure"
	"gopkg.in/yaml.v3"
)

// Filename is the local state file name inside a project directory.
const Filename = "kapsel-local.yml"

const (
	sectionServiceRunStates = "service_run_states"
)

// File is the local state of one project. It implements
// requirement.LocalState.
type File struct {
	path    string
	data    map[string]interface{}
	dirty   bool
	secrets SecretStore
	cache   map[string]*secure.SecureBuffer
}

// Load reads the local state of the project in dir. A missing file is an
// empty state.
func Load(dir string, secrets SecretStore) (*File, error) {
	f := &File{
		path:    filepath.Join(dir, Filename),
		data:    make(map[string]interface{}),
		secrets: secrets,
		cache:   make(map[string]*secure.SecureBuffer),
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	if err := yaml.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	if f.data == nil {
		f.data = make(map[string]interface{})
	}
	return f, nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// GetValue returns the value at path.
func (f *File) GetValue(path ...string) (interface{}, bool) {
	if len(path) == 0 {
		return nil, false
	}
	current := f.data
	for i, key := range path {
		v, ok := current[key]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		next, ok := asMap(v)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// SetValue stores value at path, creating intermediate sections.
func (f *File) SetValue(value interface{}, path ...string) {
	if len(path) == 0 {
		return
	}
	current := f.data
	for _, key := range path[:len(path)-1] {
		next, ok := asMap(current[key])
		if !ok {
			next = make(map[string]interface{})
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
	f.dirty = true
}

// UnsetValue removes the value at path. Sections left empty are removed too.
func (f *File) UnsetValue(path ...string) {
	if len(path) == 0 {
		return
	}
	parents := []map[string]interface{}{f.data}
	current := f.data
	for _, key := range path[:len(path)-1] {
		next, ok := asMap(current[key])
		if !ok {
			return
		}
		parents = append(parents, next)
		current = next
	}
	if _, ok := current[path[len(path)-1]]; !ok {
		return
	}
	delete(current, path[len(path)-1])
	f.dirty = true

	for i := len(parents) - 1; i > 0; i-- {
		if len(parents[i]) == 0 {
			delete(parents[i-1], path[i-1])
		}
	}
}

// ServiceRunState returns the recorded run state of a service kapsel started.
func (f *File) ServiceRunState(name string) map[string]interface{} {
	v, ok := f.GetValue(sectionServiceRunStates, name)
	if !ok {
		return map[string]interface{}{}
	}
	m, ok := asMap(v)
	if !ok {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out
}

// SetServiceRunState records the run state of a service; an empty state
// removes the entry.
func (f *File) SetServiceRunState(name string, state map[string]interface{}) {
	if len(state) == 0 {
		f.UnsetValue(sectionServiceRunStates, name)
		return
	}
	f.SetValue(state, sectionServiceRunStates, name)
}

// ServiceRunStateNames lists services with a recorded run state.
func (f *File) ServiceRunStateNames() []string {
	v, ok := f.GetValue(sectionServiceRunStates)
	if !ok {
		return nil
	}
	m, _ := asMap(v)
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Save writes the file if anything changed. The file is replaced atomically
// and readable by the owner only.
func (f *File) Save() error {
	if !f.dirty {
		return nil
	}

	if len(f.data) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", f.path, err)
		}
		f.dirty = false
		return nil
	}

	out, err := yaml.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("failed to encode local state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	f.dirty = false
	return nil
}

// Close wipes cached secrets from memory.
func (f *File) Close() {
	for name, buf := range f.cache {
		buf.Destroy()
		delete(f.cache, name)
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
