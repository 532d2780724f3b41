package attendance

import (
	"context"

	"judoclub/internal/schedule"
)

type Repository interface {
	Get(ctx context.Context, key schedule.InstanceKey, memberID int64) (*Record, error)
	// Save inserts rec or refreshes the stored status. Terminal records are
	// left untouched and returned as stored.
	Save(ctx context.Context, rec Record) (*Record, error)
	// MarkAttended stores the check-in unless one is already recorded. The
	// returned bool is false when an earlier check-in won.
	MarkAttended(ctx context.Context, rec Record) (*Record, bool, error)
	ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]Record, error)
	ListByMemberBetween(ctx context.Context, memberID int64, fromDate, toDate string) ([]Record, error)
}
