package netsim

import "sync"

// Registry owns a set of named Servers, each an independent simulated
// network universe. It mirrors commbus's pattern of guarding a map of
// named collaborators behind a single RWMutex rather than one lock per
// entry, since universes are created rarely and read far more often than
// they're added.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*Server

	newLogger             func(name string) Logger
	newRecorder           func(name string) Recorder
	reconciliationEnabled bool
}

// NewRegistry creates an empty Registry. newLogger and newRecorder are
// invoked once per GetOrCreate miss, with the new server's name, to build
// the collaborators for a freshly created Server; either may be nil to
// fall back to defaults (DefaultLogger and no recorder, respectively).
// reconciliationEnabled is passed through unchanged to every Server it
// creates; see NewServer.
func NewRegistry(newLogger func(name string) Logger, newRecorder func(name string) Recorder, reconciliationEnabled bool) *Registry {
	return &Registry{
		servers:               make(map[string]*Server),
		newLogger:             newLogger,
		newRecorder:           newRecorder,
		reconciliationEnabled: reconciliationEnabled,
	}
}

// Get returns the server named name, if one has been created.
func (r *Registry) Get(name string) (*Server, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.servers[name]
	return s, ok
}

// GetOrCreate returns the server named name, creating and registering it
// with a fresh Server if it does not yet exist.
func (r *Registry) GetOrCreate(name string) *Server {
	r.mu.RLock()
	if s, ok := r.servers[name]; ok {
		r.mu.RUnlock()
		return s
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.servers[name]; ok {
		return s
	}

	var logger Logger
	if r.newLogger != nil {
		logger = r.newLogger(name)
	}
	var recorder Recorder
	if r.newRecorder != nil {
		recorder = r.newRecorder(name)
	}

	s := NewServer(name, logger, recorder, r.reconciliationEnabled)
	r.servers[name] = s
	return s
}

// Names returns the names of every server currently registered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}

// Remove deletes the server named name from the registry, if present, and
// reports whether it was removed. It does not otherwise tear the server
// down: any goroutines still holding a reference to it keep working.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.servers[name]; !ok {
		return false
	}
	delete(r.servers, name)
	return true
}

// Count reports how many servers are currently registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}
