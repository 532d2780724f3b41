package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"judoclub/internal/schedule"

	"github.com/jmoiron/sqlx"
)

const recordColumns = `id, template_id, class_date::text AS class_date, member_id, status, checked_in_at, method, points, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, key schedule.InstanceKey, memberID int64) (*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE template_id = $1 AND class_date = $2::date AND member_id = $3`

	var rec Record
	err := r.db.GetContext(ctx, &rec, query, key.TemplateID, key.Date, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance %s/%d: %w", key, memberID, err)
	}
	return &rec, nil
}

func (r *repository) Save(ctx context.Context, rec Record) (*Record, error) {
	query := `
		INSERT INTO attendance_records (id, template_id, class_date, member_id, status, checked_in_at, method, points, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (template_id, class_date, member_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		WHERE attendance_records.status NOT IN ('attended', 'missed')
		RETURNING ` + recordColumns

	saved, err := r.upsert(ctx, query, rec)
	if errors.Is(err, sql.ErrNoRows) {
		return r.Get(ctx, rec.Key(), rec.MemberID)
	}
	if err != nil {
		return nil, fmt.Errorf("save attendance %s/%d: %w", rec.Key(), rec.MemberID, err)
	}
	return saved, nil
}

func (r *repository) MarkAttended(ctx context.Context, rec Record) (*Record, bool, error) {
	query := `
		INSERT INTO attendance_records (id, template_id, class_date, member_id, status, checked_in_at, method, points, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (template_id, class_date, member_id) DO UPDATE
		SET status = EXCLUDED.status, checked_in_at = EXCLUDED.checked_in_at, method = EXCLUDED.method,
			points = EXCLUDED.points, updated_at = EXCLUDED.updated_at
		WHERE attendance_records.checked_in_at IS NULL
		RETURNING ` + recordColumns

	saved, err := r.upsert(ctx, query, rec)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := r.Get(ctx, rec.Key(), rec.MemberID)
		return existing, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("mark attended %s/%d: %w", rec.Key(), rec.MemberID, err)
	}
	return saved, true, nil
}

func (r *repository) upsert(ctx context.Context, query string, rec Record) (*Record, error) {
	var saved Record
	err := r.db.GetContext(ctx, &saved, query,
		rec.ID, rec.TemplateID, rec.ClassDate, rec.MemberID, rec.Status,
		rec.CheckedInAt, rec.Method, rec.Points, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *repository) ListByInstance(ctx context.Context, key schedule.InstanceKey) ([]Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE template_id = $1 AND class_date = $2::date
		ORDER BY created_at, member_id`

	var records []Record
	if err := r.db.SelectContext(ctx, &records, query, key.TemplateID, key.Date); err != nil {
		return nil, fmt.Errorf("list attendance for %s: %w", key, err)
	}
	return records, nil
}

func (r *repository) ListByMemberBetween(ctx context.Context, memberID int64, fromDate, toDate string) ([]Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE member_id = $1 AND class_date BETWEEN $2::date AND $3::date
		ORDER BY class_date, template_id`

	var records []Record
	if err := r.db.SelectContext(ctx, &records, query, memberID, fromDate, toDate); err != nil {
		return nil, fmt.Errorf("list attendance for member %d: %w", memberID, err)
	}
	return records, nil
}
