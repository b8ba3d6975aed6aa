package providers

import (
	"context"
	"fmt"
	"reflect"

	"inmates/internal/inmates/models"
)

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks Provider

// Provider is the contract every jurisdiction adapter implements. Fetch performs
// the source-specific lookup and returns records in the source's native shape.
// Adapters own their timeouts, retries and connection handling; callers treat
// each Fetch as attempted exactly once.
type Provider interface {
	// Jurisdiction identifies the prison system behind this adapter
	Jurisdiction() models.Jurisdiction

	// Fetch returns zero or more raw records, or a *FetchError
	Fetch(ctx context.Context, q models.Query) ([]RawRecord, error)
}

// Registry is an ordered set of providers, at most one per jurisdiction.
// Registration order is the order results are merged in.
type Registry struct {
	providers []Provider
}

// NewRegistry registers ps in the given order.
func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a provider to the registry. A nil provider, including a
// nil pointer held in the interface, is rejected.
func (r *Registry) Register(p Provider) error {
	if isNil(p) {
		return fmt.Errorf("provider is required")
	}
	j := p.Jurisdiction()
	if !j.IsValid() {
		return fmt.Errorf("provider has unknown jurisdiction %q", j)
	}
	if _, exists := r.Get(j); exists {
		return fmt.Errorf("provider for %s already registered", j)
	}
	r.providers = append(r.providers, p)
	return nil
}

// Get retrieves the provider for a jurisdiction
func (r *Registry) Get(j models.Jurisdiction) (Provider, bool) {
	for _, p := range r.providers {
		if p.Jurisdiction() == j {
			return p, true
		}
	}
	return nil, false
}

// All returns the providers in registration order
func (r *Registry) All() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	return len(r.providers)
}

// Subset returns a registry holding only the given jurisdictions, keeping
// registration order. Unregistered jurisdictions are an error.
func (r *Registry) Subset(js ...models.Jurisdiction) (*Registry, error) {
	want := make(map[models.Jurisdiction]struct{}, len(js))
	for _, j := range js {
		if _, ok := r.Get(j); !ok {
			return nil, &models.InvalidQueryError{Field: "jurisdiction", Reason: fmt.Sprintf("no provider registered for %s", j)}
		}
		want[j] = struct{}{}
	}
	sub := &Registry{}
	for _, p := range r.providers {
		if _, ok := want[p.Jurisdiction()]; ok {
			sub.providers = append(sub.providers, p)
		}
	}
	return sub, nil
}

func isNil(p Provider) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
