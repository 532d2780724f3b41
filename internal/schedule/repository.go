package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const templateColumns = `id, name, day_of_week, start_hour, start_minute, duration_minutes, capacity,
		level, tags, location, active, active_from::text AS active_from, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) TemplateRepository {
	return &repository{db: db}
}

func (r *repository) CreateTemplate(ctx context.Context, tpl ClassTemplate) (*ClassTemplate, error) {
	query := `
		INSERT INTO class_templates (name, day_of_week, start_hour, start_minute, duration_minutes, capacity, level, tags, location, active, active_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)
		RETURNING ` + templateColumns

	var created ClassTemplate
	err := r.db.GetContext(ctx, &created, query,
		tpl.Name, tpl.DayOfWeek, tpl.StartHour, tpl.StartMinute, tpl.DurationMinutes,
		tpl.Capacity, tpl.Level, tpl.Tags, tpl.Location, tpl.ActiveFrom,
	)
	if err != nil {
		return nil, fmt.Errorf("insert class template: %w", err)
	}

	return &created, nil
}

func (r *repository) GetTemplateByID(ctx context.Context, id int64) (*ClassTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM class_templates WHERE id = $1`

	var tpl ClassTemplate
	err := r.db.GetContext(ctx, &tpl, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get class template %d: %w", id, err)
	}

	return &tpl, nil
}

func (r *repository) ListTemplates(ctx context.Context, onlyActive bool) ([]ClassTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM class_templates`
	if onlyActive {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY day_of_week, start_hour, start_minute, id"

	var templates []ClassTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list class templates: %w", err)
	}

	return templates, nil
}

func (r *repository) DeactivateTemplate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE class_templates SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate class template %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTemplateNotFound
	}

	return nil
}
