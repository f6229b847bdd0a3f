package options

import (
	"context"
	"sort"
	"sync"

	"metaform/internal/schema"
)

// Resolver produces options for a named resolver source. Implementations are
// registered once at startup and must be safe for concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, params map[string]any, lc LoadContext) ([]schema.FieldOption, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, params map[string]any, lc LoadContext) ([]schema.FieldOption, error)

func (f ResolverFunc) Resolve(ctx context.Context, params map[string]any, lc LoadContext) ([]schema.FieldOption, error) {
	return f(ctx, params, lc)
}

// ResolverRegistry holds named resolvers. Registering a name again replaces
// the previous resolver.
type ResolverRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

func NewResolverRegistry() *ResolverRegistry {
	return &ResolverRegistry{resolvers: make(map[string]Resolver)}
}

func (r *ResolverRegistry) Register(name string, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[name] = resolver
}

func (r *ResolverRegistry) Get(name string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolver, ok := r.resolvers[name]
	return resolver, ok
}

// Names returns registered resolver names, sorted.
func (r *ResolverRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
