package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/galleryprints/catalog-api/internal/platform/firestore"
	"github.com/galleryprints/catalog-api/internal/repositories"
)

// Registry bundles the Firestore-backed repository set behind the
// repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider
	works    *WorkRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires the concrete repositories against a shared provider. The
// health repository is supplied by the caller because its dependency checks
// span more than Firestore.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}
	if health == nil {
		return nil, errors.New("registry: health repository is required")
	}
	works, err := NewWorkRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider: provider,
		works:    works,
		counters: counters,
		health:   health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Works returns the work repository.
func (r *Registry) Works() repositories.WorkRepository { return r.works }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Health returns the health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside a Firestore transaction. The transactional
// context is not propagated to the repositories, so fn should only group
// operations that are individually atomic.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}
