package notifier

import (
	"context"
	"fmt"
	"sync"
)

// Registry manages notifier instances
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	order     []string
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}

	r.notifiers[name] = n
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a notifier by name
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifiers[name]
	if !exists {
		return nil, fmt.Errorf("notifier %s not found", name)
	}
	return n, nil
}

// GetAll returns all registered notifiers in registration order.
func (r *Registry) GetAll() []Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Notifier, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.notifiers[name])
	}
	return result
}

// NotifyAll sends alerts to every registered notifier and returns the
// failures keyed by notifier name.
func (r *Registry) NotifyAll(ctx context.Context, alerts []Alert) map[string]error {
	errs := make(map[string]error)
	if len(alerts) == 0 {
		return errs
	}
	for _, n := range r.GetAll() {
		if err := n.Send(ctx, alerts); err != nil {
			errs[n.Name()] = err
		}
	}
	return errs
}
