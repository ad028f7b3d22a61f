package repositories

import (
	"context"

	domain "github.com/orderfield/ordersync/internal/domain"
)

// OrderRepository exposes the remote order endpoint operations the import
// pipeline consumes.
type OrderRepository interface {
	// FindByOrderNumber fetches the single order carrying the business key.
	// Zero matches surface as a RepositoryError with IsNotFound; the remote
	// system guarantees orderNumber uniqueness.
	FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	// Update issues one versioned update call. A stale version surfaces as a
	// RepositoryError with IsConflict.
	Update(ctx context.Context, orderID string, version int64, actions []domain.UpdateAction) (domain.Order, error)
	// Import creates an order from a full representation. Used by setup and
	// seeding tools, not by the reconciliation pipeline itself.
	Import(ctx context.Context, order domain.Order) (domain.Order, error)
}

// KeyLookup resolves a unique business key to a remote reference within one
// lookup collection.
type KeyLookup interface {
	FindByKey(ctx context.Context, key string) (domain.Reference, error)
}

// StateRepository looks up line item workflow states by key.
type StateRepository interface {
	KeyLookup
}

// ChannelRepository looks up sync channels by key.
type ChannelRepository interface {
	KeyLookup
}

// RepositoryError wraps remote API failures with the categorisation used by
// the import services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}
