package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const memberColumns = `id, name, email, password_hash, role, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, name, email, passwordHash, role string) (*Member, error) {
	query := `
		INSERT INTO members (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + memberColumns

	var m Member
	err := r.db.GetContext(ctx, &m, query, name, email, passwordHash, role)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}

	return &m, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE email = $1`

	var m Member
	err := r.db.GetContext(ctx, &m, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member by email: %w", err)
	}

	return &m, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	var m Member
	err := r.db.GetContext(ctx, &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member %d: %w", id, err)
	}

	return &m, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []int64) ([]Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ANY($1) ORDER BY id`

	var members []Member
	if err := r.db.SelectContext(ctx, &members, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find members: %w", err)
	}

	return members, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM members WHERE email = $1)`, email)
	if err != nil {
		return false, fmt.Errorf("check member email: %w", err)
	}

	return exists, nil
}

func (r *repository) UpdateRole(ctx context.Context, id int64, role string) (*Member, error) {
	query := `UPDATE members SET role = $2 WHERE id = $1 RETURNING ` + memberColumns

	var m Member
	err := r.db.GetContext(ctx, &m, query, id, role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update member %d role: %w", id, err)
	}

	return &m, nil
}
