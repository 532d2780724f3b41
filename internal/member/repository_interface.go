package member

import "context"

type Repository interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (*Member, error)
	FindByEmail(ctx context.Context, email string) (*Member, error)
	FindByID(ctx context.Context, id int64) (*Member, error)
	FindByIDs(ctx context.Context, ids []int64) ([]Member, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateRole(ctx context.Context, id int64, role string) (*Member, error)
}
