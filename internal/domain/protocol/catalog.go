package protocol

import (
	"sort"
	"sync"
)

// Catalog resolves protocol identifiers.
type Catalog interface {
	Lookup(id string) (Protocol, bool)
}

// Registry is a Catalog whose contents can be replaced at runtime.
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]Protocol
}

// NewRegistry builds a registry from the builtin protocols plus extra.
// Extra entries override builtins with the same id.
func NewRegistry(extra ...Protocol) *Registry {
	r := &Registry{}
	r.Replace(extra)
	return r
}

// Lookup returns the protocol registered under id.
func (r *Registry) Lookup(id string) (Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[id]
	return p, ok
}

// List returns all protocols ordered by fasting hours, custom last.
func (r *Registry) List() []Protocol {
	r.mu.RLock()
	list := make([]Protocol, 0, len(r.protocols))
	for _, p := range r.protocols {
		list = append(list, p)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if (list[i].ID == Custom) != (list[j].ID == Custom) {
			return list[j].ID == Custom
		}
		if list[i].FastingHours != list[j].FastingHours {
			return list[i].FastingHours < list[j].FastingHours
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Replace swaps the registry contents for the builtins plus extra.
// The custom sentinel cannot be overridden.
func (r *Registry) Replace(extra []Protocol) {
	protocols := make(map[string]Protocol, len(extra)+8)
	for _, p := range Builtin() {
		protocols[p.ID] = p
	}
	for _, p := range extra {
		if p.ID == "" || p.ID == Custom {
			continue
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		protocols[p.ID] = p
	}

	r.mu.Lock()
	r.protocols = protocols
	r.mu.Unlock()
}
