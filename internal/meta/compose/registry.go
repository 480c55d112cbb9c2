// Package compose implements the metaclass registry and composer: named,
// parameterized generator functions are registered with declared
// dependencies and pairwise compatibility rules, then resolved into an
// ordered, conflict-checked composition plan per target declaration.
package compose

import (
	"fmt"
	"sort"
	"sync"

	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

// Generator is a metaclass body: it runs against the reflection query
// engine via the emitter and emits fragments for the application's target
type Generator func(em *synth.Emitter, app Application) error

// Metaclass is a registered, named generator with its declared dependencies
type Metaclass struct {
	Name      string
	Generate  Generator
	DependsOn []string
}

// Registry is the open, extensible table of named metaclasses plus the
// pluggable pairwise incompatibility relation between them
type Registry struct {
	mu           sync.RWMutex
	metaclasses  map[string]*Metaclass
	incompatible map[[2]string]bool
}

// NewRegistry creates an empty metaclass registry
func NewRegistry() *Registry {
	return &Registry{
		metaclasses:  make(map[string]*Metaclass),
		incompatible: make(map[[2]string]bool),
	}
}

// Register adds a named metaclass with its generator function and declared
// dependencies. Registering the same name twice is an error.
func (r *Registry) Register(name string, gen Generator, dependsOn ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metaclasses[name]; exists {
		return fmt.Errorf("metaclass already registered: %s", name)
	}
	r.metaclasses[name] = &Metaclass{
		Name:      name,
		Generate:  gen,
		DependsOn: dependsOn,
	}
	return nil
}

// Lookup resolves a metaclass by name
func (r *Registry) Lookup(name string) (*Metaclass, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mc, ok := r.metaclasses[name]
	return mc, ok
}

// Names returns the registered metaclass names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.metaclasses))
	for name := range r.metaclasses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterIncompatible declares two metaclasses mutually incompatible: a
// composition plan applying both to one target is rejected. The relation is
// symmetric.
func (r *Registry) RegisterIncompatible(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incompatible[pairKey(a, b)] = true
}

// Incompatible reports whether two metaclasses are declared incompatible
func (r *Registry) Incompatible(a, b string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.incompatible[pairKey(a, b)]
}

// pairKey normalizes an unordered metaclass pair
func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
