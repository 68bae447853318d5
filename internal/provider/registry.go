package provider

import (
	"fmt"
	"sort"
)

// Entry registers a provider with its configuration state.
type Entry struct {
	Provider Provider
	Priority int
	Enabled  bool
}

// Registry holds providers ordered by priority, lower values first, with
// ties broken by name.
type Registry struct {
	entries []Entry
	byName  map[Name]Entry
}

// NewRegistry orders entries by priority.
func NewRegistry(entries ...Entry) *Registry {
	sorted := make([]Entry, 0, len(entries))
	byName := make(map[Name]Entry, len(entries))
	for _, e := range entries {
		if e.Provider == nil {
			continue
		}
		sorted = append(sorted, e)
		byName[e.Provider.Name()] = e
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Provider.Name() < sorted[j].Provider.Name()
	})
	return &Registry{entries: sorted, byName: byName}
}

// Enabled returns enabled providers in priority order.
func (r *Registry) Enabled() []Provider {
	out := make([]Provider, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Enabled {
			out = append(out, e.Provider)
		}
	}
	return out
}

// Entries returns every registered entry in priority order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Get returns an enabled provider by name.
func (r *Registry) Get(name Name) (Provider, error) {
	e, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	if !e.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, name)
	}
	return e.Provider, nil
}

// IsEnabled reports whether name is registered and enabled.
func (r *Registry) IsEnabled(name Name) bool {
	e, ok := r.byName[name]
	return ok && e.Enabled
}

// Others returns the enabled providers other than name, in priority order.
func (r *Registry) Others(name Name) []Provider {
	out := make([]Provider, 0, len(r.entries))
	for _, p := range r.Enabled() {
		if p.Name() != name {
			out = append(out, p)
		}
	}
	return out
}

// Priority returns the configured priority of name.
func (r *Registry) Priority(name Name) int {
	return r.byName[name].Priority
}
