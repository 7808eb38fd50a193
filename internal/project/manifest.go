package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is an editable kapsel.yml document. Edits go through the YAML
// node tree so comments and key order survive a save.
type Manifest struct {
	path  string
	doc   *yaml.Node
	dirty bool
}

// LoadManifest reads path. A missing or empty file is an empty mapping.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{path: path, doc: emptyDocument()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return m, nil
	}
	top := doc.Content[0]
	if top.Kind == yaml.ScalarNode && top.Tag == "!!null" {
		return m, nil
	}
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: the top level of the file must be a mapping", path)
	}
	m.doc = &doc
	return m, nil
}

func emptyDocument() *yaml.Node {
	return &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}
}

// Path returns the file location.
func (m *Manifest) Path() string {
	return m.path
}

func (m *Manifest) root() *yaml.Node {
	return m.doc.Content[0]
}

// lookup returns the value node stored under key in mapping, or nil.
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// Node returns the node at path, or nil.
func (m *Manifest) Node(path ...string) *yaml.Node {
	node := m.root()
	for _, key := range path {
		node = lookup(node, key)
		if node == nil {
			return nil
		}
	}
	return node
}

// Get decodes the value at path. Missing keys and explicit nulls both return
// nil.
func (m *Manifest) Get(path ...string) interface{} {
	node := m.Node(path...)
	if node == nil {
		return nil
	}
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return nil
	}
	return v
}

// Keys returns the keys of the mapping at path in file order.
func (m *Manifest) Keys(path ...string) []string {
	node := m.Node(path...)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// Set stores value at path, creating intermediate mappings. An intermediate
// that is not a mapping is replaced.
func (m *Manifest) Set(value interface{}, path ...string) error {
	if len(path) == 0 {
		return fmt.Errorf("empty manifest path")
	}

	var encoded yaml.Node
	if err := encoded.Encode(value); err != nil {
		return fmt.Errorf("cannot store %v at %v: %w", value, path, err)
	}
	m.setNode(&encoded, path...)
	return nil
}

func (m *Manifest) setNode(node *yaml.Node, path ...string) {
	parent := m.root()
	for _, key := range path[:len(path)-1] {
		child := lookup(parent, key)
		if child == nil || child.Kind != yaml.MappingNode {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			setChild(parent, key, child)
		}
		parent = child
	}
	setChild(parent, path[len(path)-1], node)
	m.dirty = true
}

func setChild(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value)
}

// Unset removes the value at path. Missing keys are not an error.
func (m *Manifest) Unset(path ...string) {
	if len(path) == 0 {
		return
	}
	parent := m.Node(path[:len(path)-1]...)
	if parent == nil || parent.Kind != yaml.MappingNode {
		return
	}
	key := path[len(path)-1]
	for i := 0; i+1 < len(parent.Content); i += 2 {
		if parent.Content[i].Value == key {
			parent.Content = append(parent.Content[:i], parent.Content[i+2:]...)
			m.dirty = true
			return
		}
	}
}

// Dirty reports unsaved edits.
func (m *Manifest) Dirty() bool {
	return m.dirty
}

// Bytes renders the document.
func (m *Manifest) Bytes() ([]byte, error) {
	if len(m.root().Content) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the document if it changed.
func (m *Manifest) Save() error {
	if !m.dirty {
		return nil
	}
	data, err := m.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".kapsel-*.yml")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", m.path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", m.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", m.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", m.path, err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("failed to write %s: %w", m.path, err)
	}
	m.dirty = false
	return nil
}

// MarkDirty forces the next Save to write, e.g. to create the file.
func (m *Manifest) MarkDirty() {
	m.dirty = true
}
