package strategy

import (
	"sort"
	"strings"
	"sync"

	"github.com/newthinker/buddy/internal/core"
)

// Registry holds the closed set of strategy variants, addressable by id or alias.
type Registry struct {
	mu         sync.RWMutex
	strategies map[ID]Strategy
	aliases    map[string]ID
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[ID]Strategy),
		aliases:    make(map[string]ID),
	}
}

// Register adds a strategy under its ID and any extra aliases.
func (r *Registry) Register(s Strategy, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.ID()] = s
	r.aliases[normalize(string(s.ID()))] = s.ID()
	r.aliases[normalize(s.Name())] = s.ID()
	for _, a := range aliases {
		r.aliases[normalize(a)] = s.ID()
	}
}

// Resolve looks up a strategy by id, name or alias.
func (r *Registry) Resolve(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.aliases[normalize(id)]
	if !ok {
		return nil, core.Errorf(core.ErrInvalidStrategy, "%q", id)
	}
	return r.strategies[canonical], nil
}

// List returns the registered strategies sorted by ID.
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
