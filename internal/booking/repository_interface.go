package booking

import (
	"context"
	"time"

	"judoclub/internal/schedule"
)

// Store is the ledger as seen from inside an instance lock. Every write to
// an instance's bookings goes through it.
type Store interface {
	// ListByInstance returns all bookings of the instance, cancelled ones
	// included, ordered by (created_at, id).
	ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]Booking, error)
	Insert(ctx context.Context, b Booking) (*Booking, error)
	UpdateStatus(ctx context.Context, id int64, status Status, cancelledAt *time.Time) error
}

type Repository interface {
	// WithInstanceLock runs fn while holding the serialization point of one
	// instance. Different instances never contend.
	WithInstanceLock(ctx context.Context, key schedule.InstanceKey, fn func(Store) error) error

	GetByID(ctx context.Context, id int64) (*Booking, error)
	ListByMember(ctx context.Context, memberID int64) ([]Booking, error)
	ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]Booking, error)
	ListByMemberBetween(ctx context.Context, memberID int64, fromDate, toDate string) ([]Booking, error)
	ListBetween(ctx context.Context, fromDate, toDate string) ([]Booking, error)
	ListRecurring(ctx context.Context, memberID int64) ([]Booking, error)
}
