package verification

import (
	"sync"

	"attesto/pkg/domain"
)

// Resolver maps source refs to verification services. Policies name their
// trusted source by ref; the resolver is the one place that binding becomes
// a live service. Registration happens at wiring time, lookups at request
// time.
type Resolver struct {
	mu      sync.RWMutex
	sources map[domain.SourceRef]*Service
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		sources: make(map[domain.SourceRef]*Service),
	}
}

// Register adds a service under its source ref, replacing any previous
// registration for that ref.
func (r *Resolver) Register(svc *Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[svc.Source()] = svc
}

// Resolve looks up the service for a ref.
func (r *Resolver) Resolve(ref domain.SourceRef) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.sources[ref]
	return svc, ok
}
