package repositories

import (
	"context"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Works() WorkRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WorkRepository persists imported works and answers dedup queries.
//
// A work's identity for deduplication is the (sourceType, sourceId) pair;
// Create must fail with a conflict when that pair already exists.
type WorkRepository interface {
	// Create persists the work and its dedup index entry atomically.
	Create(ctx context.Context, work domain.Work) error
	// CreateWithEmbedding persists the work together with its search embedding.
	CreateWithEmbedding(ctx context.Context, work domain.Work, embedding []float32) error
	FindByID(ctx context.Context, workID string) (domain.Work, error)
	// FindExistingSourceIDs reports which of the given source ids are already
	// imported for the source. Lookups are batched internally; callers may pass
	// an arbitrarily large id slice.
	FindExistingSourceIDs(ctx context.Context, source domain.SourceType, sourceIDs []string) (map[string]bool, error)
	// ListActiveIDs returns the ids of all active works, used by retag dispatch.
	ListActiveIDs(ctx context.Context) ([]string, error)
	// UpdateTags replaces the AI tag collections and embedding of a work.
	UpdateTags(ctx context.Context, workID string, hero, hidden []string, medium string, embedding []float32) error
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
