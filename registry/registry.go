package registry

import (
	"sort"
	"sync"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/BranchIntl/postqueue/errors"
)

// Registry is a thread-safe map of publish targets to connectors. A target
// names one connector instance, e.g. "facebook:acme-page".
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]connector.Connector
}

// NewRegistry creates a new registry
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]connector.Connector),
	}
}

// Register binds a connector to a target, replacing any previous binding
func (r *Registry) Register(target string, c connector.Connector) error {
	if target == "" {
		return errors.ErrEmptyTarget
	}

	if c == nil {
		return errors.ErrNilConnector
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connectors[target] = c
	return nil
}

// Get retrieves the connector bound to target
func (r *Registry) Get(target string) (connector.Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[target]
	return c, ok
}

// List returns all registered targets, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]string, 0, len(r.connectors))
	for target := range r.connectors {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	return targets
}

// Remove unregisters a target
func (r *Registry) Remove(target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connectors[target]; !ok {
		return errors.ErrConnectorNotFound
	}
	delete(r.connectors, target)
	return nil
}

// Clear removes all registered connectors
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connectors = make(map[string]connector.Connector)
}
