package dispatch

import (
	"fmt"
	"sort"
)

// Registration pairs one service's template manager with its optional
// send manager. Template-only services (e.g. push) register without a
// send manager.
type Registration struct {
	TemplateManager TemplateManager
	SendManager     SendManager
}

// Registry is the process-wide mapping from service name to managers.
// It is built once during startup from an explicit registration list and
// is immutable afterwards, so steady-state lookups need no locking.
type Registry struct {
	templates map[string]TemplateManager
	senders   map[string]SendManager
}

// NewRegistry builds the registry. A duplicate service name is a startup
// invariant violation and fails construction.
func NewRegistry(registrations ...Registration) (*Registry, error) {
	r := &Registry{
		templates: make(map[string]TemplateManager, len(registrations)),
		senders:   make(map[string]SendManager, len(registrations)),
	}

	for _, reg := range registrations {
		if reg.TemplateManager == nil {
			return nil, fmt.Errorf("registry: registration without a template manager")
		}

		name := reg.TemplateManager.ServiceName()
		if _, exists := r.templates[name]; exists {
			return nil, fmt.Errorf("registry: service %q is already registered", name)
		}
		r.templates[name] = reg.TemplateManager

		if reg.SendManager == nil {
			continue
		}
		if sn := reg.SendManager.ServiceName(); sn != name {
			return nil, fmt.Errorf("registry: send manager %q paired with template manager %q", sn, name)
		}
		r.senders[name] = reg.SendManager
	}

	return r, nil
}

// TemplateManager looks up a template manager by service name.
func (r *Registry) TemplateManager(service string) (TemplateManager, bool) {
	tm, ok := r.templates[service]
	return tm, ok
}

// SendManager looks up a send manager by service name.
func (r *Registry) SendManager(service string) (SendManager, bool) {
	sm, ok := r.senders[service]
	return sm, ok
}

// TemplateServices returns the sorted names of all registered template
// managers. Only initialized services are included when onlyInitialized
// is set.
func (r *Registry) TemplateServices(onlyInitialized bool) []string {
	names := make([]string, 0, len(r.templates))
	for name, tm := range r.templates {
		if onlyInitialized && !tm.Initialized() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SendServices returns the sorted names of all registered send managers,
// optionally filtered to initialized ones.
func (r *Registry) SendServices(onlyInitialized bool) []string {
	names := make([]string, 0, len(r.senders))
	for name, sm := range r.senders {
		if onlyInitialized && !sm.Initialized() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
