package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Dialer for a connection config.
type Factory func(cfg Config) (Dialer, error)

// Registry maps driver names to factories and keeps the dialer resolved
// for each connection profile.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Dialer // keyed by profile name
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		active:    make(map[string]Dialer),
	}
}

// RegisterDriver registers a factory for a driver name.
func (r *Registry) RegisterDriver(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// Dialer builds a dialer for cfg without registering it under a profile.
func (r *Registry) Dialer(cfg Config) (Dialer, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s (available: %v)", cfg.Driver, r.Drivers())
	}
	return factory(cfg)
}

// Connect resolves a dialer for cfg and registers it under profile,
// replacing any previous one.
func (r *Registry) Connect(profile string, cfg Config) error {
	d, err := r.Dialer(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect profile %q: %w", profile, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[profile] = d
	return nil
}

// Get returns the dialer registered for a profile.
func (r *Registry) Get(profile string) (Dialer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.active[profile]
	if !ok {
		return nil, fmt.Errorf("profile %q not found (available: %v)", profile, r.activeProfiles())
	}
	return d, nil
}

// Disconnect forgets a profile.
func (r *Registry) Disconnect(profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[profile]; !ok {
		return fmt.Errorf("profile %q not found", profile)
	}
	delete(r.active, profile)
	return nil
}

// CloseAll forgets every profile.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range r.active {
		delete(r.active, name)
	}
}

// ListProfiles returns registered profile names, sorted.
func (r *Registry) ListProfiles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeProfiles()
}

// Drivers returns registered driver names, sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drivers := make([]string, 0, len(r.factories))
	for d := range r.factories {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)
	return drivers
}

func (r *Registry) activeProfiles() []string {
	names := make([]string, 0, len(r.active))
	for n := range r.active {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
