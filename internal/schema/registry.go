package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is a caller-constructed set of loaded categories. Load everything
// up front, then share it read-only between decoders; the registry itself
// carries no locking.
type Registry struct {
	cats map[int]*Category
}

func NewRegistry() *Registry {
	return &Registry{cats: make(map[int]*Category)}
}

func (r *Registry) Add(cat *Category) error {
	if cat == nil {
		return fmt.Errorf("nil category")
	}
	if _, exists := r.cats[cat.ID]; exists {
		return fmt.Errorf("category %d already registered", cat.ID)
	}
	r.cats[cat.ID] = cat
	return nil
}

// Category returns the schema for the given category id.
func (r *Registry) Category(id int) (*Category, bool) {
	if r == nil {
		return nil, false
	}
	cat, ok := r.cats[id]
	return cat, ok
}

// Categories returns the registered category ids in ascending order.
func (r *Registry) Categories() []int {
	ids := make([]int, 0, len(r.cats))
	for id := range r.cats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// LoadError records a category definition that failed to load. A bad
// definition is fatal only to its own category.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// LoadFile reads one YAML category definition and builds its Category.
func LoadFile(path string) (*Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return FromDefinition(def)
}

// LoadDir loads every .yaml/.yml definition in dir into a fresh Registry.
// Definitions that fail to load or collide are reported in the returned
// slice; the remaining categories still load. The error is non-nil only
// when the directory itself cannot be read.
func LoadDir(dir string) (*Registry, []LoadError, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	reg := NewRegistry()
	var failed []LoadError
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, name)
		cat, err := LoadFile(path)
		if err != nil {
			failed = append(failed, LoadError{Path: path, Err: err})
			continue
		}
		if err := reg.Add(cat); err != nil {
			failed = append(failed, LoadError{Path: path, Err: err})
		}
	}
	return reg, failed, nil
}
