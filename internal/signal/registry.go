package signal

import (
	"fmt"
	"sort"
	"sync"

	"factor-trading-bot/internal/types"
)

// Strategy maps a standardized factor frame to a discrete signal. The float
// is the value the decision was taken on, reported for logging.
type Strategy interface {
	Name() string
	Signal(frame types.FactorFrame) (types.Signal, float64, error)
}

// Registry holds strategies by name.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing any strategy already registered under its name.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

func (r *Registry) Lookup(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
