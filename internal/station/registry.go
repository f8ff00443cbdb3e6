package station

import (
	"sort"
	"sync"

	"github.com/rendis/conveyor/pkg/schema"
)

// Registry maps station names to implementations.
// Last registration for a name wins, deliberately without error, so test
// doubles can replace production stations.
type Registry struct {
	mu       sync.RWMutex
	stations map[string]Station
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{stations: make(map[string]Station)}
}

// Register inserts or overwrites the entry keyed by the station's own name.
func (r *Registry) Register(s Station) error {
	if s == nil {
		return schema.NewError(schema.ErrCodeValidation, "station is nil")
	}
	name := s.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "station name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stations[name] = s
	return nil
}

// RegisterAs registers a station under a custom name.
func (r *Registry) RegisterAs(name string, s Station) error {
	if s == nil {
		return schema.NewError(schema.ErrCodeValidation, "station is nil")
	}
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "station name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stations[name] = s
	return nil
}

// Get retrieves a station by name.
func (r *Registry) Get(name string) (Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stations[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeStationNotFound, "station %q not registered", name).WithStation(name)
	}
	return s, nil
}

// Has reports whether a station is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stations[name]
	return ok
}

// Names returns all registered station names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stations))
	for name := range r.stations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered stations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stations)
}

// Unregister removes a station by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stations, name)
}
