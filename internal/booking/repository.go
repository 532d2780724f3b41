package booking

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"judoclub/internal/schedule"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bookingColumns = `id, template_id, class_date::text AS class_date, member_id, status, recurrence, created_at, cancelled_at`

const uniqueViolation = "23505"

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// WithInstanceLock opens a transaction and takes a transaction-scoped
// advisory lock keyed by (template, day). The lock is released on commit or
// rollback.
func (r *repository) WithInstanceLock(ctx context.Context, key schedule.InstanceKey, fn func(Store) error) error {
	lockKey, err := instanceLockKey(key)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return fmt.Errorf("lock instance %s: %w", key, err)
	}

	if err := fn(&sqlStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return &b, nil
}

func (r *repository) ListByMember(ctx context.Context, memberID int64) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE member_id = $1 ORDER BY class_date DESC, created_at DESC`

	var bookings []Booking
	if err := r.db.SelectContext(ctx, &bookings, query, memberID); err != nil {
		return nil, fmt.Errorf("list bookings for member %d: %w", memberID, err)
	}
	return bookings, nil
}

func (r *repository) ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]Booking, error) {
	return (&sqlStore{q: r.db}).ListByInstance(ctx, key)
}

func (r *repository) ListByMemberBetween(ctx context.Context, memberID int64, fromDate, toDate string) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE member_id = $1 AND class_date BETWEEN $2::date AND $3::date
		ORDER BY class_date, template_id, created_at, id`

	var bookings []Booking
	if err := r.db.SelectContext(ctx, &bookings, query, memberID, fromDate, toDate); err != nil {
		return nil, fmt.Errorf("list bookings for member %d: %w", memberID, err)
	}
	return bookings, nil
}

func (r *repository) ListBetween(ctx context.Context, fromDate, toDate string) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE class_date BETWEEN $1::date AND $2::date
		ORDER BY class_date, template_id, created_at, id`

	var bookings []Booking
	if err := r.db.SelectContext(ctx, &bookings, query, fromDate, toDate); err != nil {
		return nil, fmt.Errorf("list bookings between %s and %s: %w", fromDate, toDate, err)
	}
	return bookings, nil
}

func (r *repository) ListRecurring(ctx context.Context, memberID int64) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE member_id = $1 AND recurrence <> '' AND status <> 'cancelled'
		ORDER BY class_date, template_id`

	var bookings []Booking
	if err := r.db.SelectContext(ctx, &bookings, query, memberID); err != nil {
		return nil, fmt.Errorf("list recurring bookings for member %d: %w", memberID, err)
	}
	return bookings, nil
}

type queryExecer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

type sqlStore struct {
	q queryExecer
}

func (s *sqlStore) ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE template_id = $1 AND class_date = $2::date
		ORDER BY created_at, id`

	var bookings []Booking
	if err := sqlx.SelectContext(ctx, s.q, &bookings, query, key.TemplateID, key.Date); err != nil {
		return nil, fmt.Errorf("list bookings for %s: %w", key, err)
	}
	return bookings, nil
}

func (s *sqlStore) Insert(ctx context.Context, b Booking) (*Booking, error) {
	query := `
		INSERT INTO bookings (template_id, class_date, member_id, status, recurrence, created_at)
		VALUES ($1, $2::date, $3, $4, $5, $6)
		RETURNING ` + bookingColumns

	var created Booking
	err := sqlx.GetContext(ctx, s.q, &created, query,
		b.TemplateID, b.ClassDate, b.MemberID, b.Status, b.Recurrence, b.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateBooking
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return &created, nil
}

func (s *sqlStore) UpdateStatus(ctx context.Context, id int64, status Status, cancelledAt *time.Time) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE bookings SET status = $1, cancelled_at = $2 WHERE id = $3`,
		status, cancelledAt, id,
	)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// instanceLockKey folds the full template id and the civil day into the
// single bigint advisory lock space. Distinct instances may share a key; that
// only serializes them.
func instanceLockKey(key schedule.InstanceKey) (int64, error) {
	day, err := time.Parse(schedule.DateLayout, key.Date)
	if err != nil {
		return 0, schedule.ErrInvalidDate
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(key.TemplateID))
	binary.BigEndian.PutUint64(buf[8:], uint64(day.Unix()/86400))
	h := fnv.New64a()
	h.Write(buf[:])
	return int64(h.Sum64()), nil
}
