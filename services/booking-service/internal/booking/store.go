package booking

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

var (
	// ErrVersionConflict is returned by VersionedStore.AppendIfVersion when the provider's
	// assignment set changed since the snapshot was taken.
	ErrVersionConflict = errors.New("assignment set changed")
	// ErrCommitContention means optimistic commit retries were exhausted.
	ErrCommitContention = errors.New("commit retries exhausted")
	// ErrProviderNotFound is returned by Directory lookups.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrNoDirectory is returned by Browse when the engine has no Directory.
	ErrNoDirectory       = errors.New("provider directory not configured")
	ErrProviderIDMissing = errors.New("provider id is required")
)

// Store is the persistence the engine needs. An empty providerID lists every assignment.
// AppendAssignment must be durable when it returns nil.
type Store interface {
	ListAssignments(ctx context.Context, providerID string) ([]model.Assignment, error)
	AppendAssignment(ctx context.Context, a model.Assignment) error
}

// AtomicStore runs fn with a Store view whose reads and writes for providerID are
// isolated from every other WithProviderTx call for the same provider.
// Writes made through tx become visible only if fn returns nil.
type AtomicStore interface {
	Store
	WithProviderTx(ctx context.Context, providerID string, fn func(ctx context.Context, tx Store) error) error
}

// VersionedStore exposes a per-provider version that changes on every append for that
// provider, enabling compare-and-swap commits.
type VersionedStore interface {
	Store
	Snapshot(ctx context.Context, providerID string) ([]model.Assignment, int64, error)
	AppendIfVersion(ctx context.Context, a model.Assignment, expected int64) error
}

type ProviderQuery struct {
	ServiceID string
	Location  string
}

// Directory resolves providers for browsing and booking.
type Directory interface {
	FindProviders(ctx context.Context, q ProviderQuery) ([]model.Provider, error)
	GetProvider(ctx context.Context, id string) (model.Provider, error)
}
