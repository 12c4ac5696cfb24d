package capability

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrDuplicate is returned by Register when a capability with the same name
// is already present.
var ErrDuplicate = errors.New("capability already registered")

// Registry holds named capabilities behind a uniform invoke contract.
//
// Registration happens once, at composition time; afterwards the registry is
// read-only and safe to share across concurrent reasoning runs. Describe
// preserves registration order so the rendered capability listing, and with it
// the model prompt, is deterministic.
type Registry struct {
	mu      sync.RWMutex
	ordered []Capability
	index   map[string]Capability
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]Capability)}
}

// Register adds a capability. It fails with ErrDuplicate when the name is
// already taken; names must be unique within a registry.
func (r *Registry) Register(c Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if _, exists := r.index[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.index[name] = c
	r.ordered = append(r.ordered, c)
	return nil
}

// MustRegister registers all given capabilities and panics on a duplicate.
// Intended for static composition at startup.
func (r *Registry) MustRegister(caps ...Capability) {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.index[name]
	return c, ok
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ordered))
	for _, c := range r.ordered {
		names = append(names, c.Name())
	}
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Describe renders the deterministic, registration-ordered listing used to
// build the model prompt:
//
//	- name: description
//	  params: p:type - desc, ...
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for i, c := range r.ordered {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("- %s: %s", c.Name(), c.Description()))
		params := c.Params()
		if len(params) == 0 {
			continue
		}
		descs := make([]string, 0, len(params))
		for _, p := range params {
			descs = append(descs, fmt.Sprintf("%s:%s - %s", p.Name, p.Type, p.Description))
		}
		b.WriteString("\n  params: ")
		b.WriteString(strings.Join(descs, ", "))
	}
	return b.String()
}
