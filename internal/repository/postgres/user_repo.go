package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remidosol/express-library-api/internal/domain/catalog"
	"github.com/remidosol/express-library-api/internal/domain/fault"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, name string) (*catalog.User, error) {
	q := `
INSERT INTO users (name)
VALUES ($1)
RETURNING id, name, created_at, updated_at
`
	out := &catalog.User{}
	err := r.pool.QueryRow(ctx, q, name).
		Scan(&out.ID, &out.Name, &out.CreatedAt, &out.UpdatedAt)
	if isUniqueViolation(err, "users_name_key") {
		return nil, fault.Conflict("user name already taken")
	}
	if err != nil {
		return nil, storeErr("create user", err)
	}
	return out, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*catalog.User, error) {
	q := `SELECT id, name, created_at, updated_at FROM users WHERE id = $1`
	out := &catalog.User{}
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&out.ID, &out.Name, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("user not found")
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return out, nil
}

func (r *UserRepository) List(ctx context.Context) ([]catalog.User, error) {
	q := `SELECT id, name, created_at, updated_at FROM users ORDER BY id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer rows.Close()

	out := make([]catalog.User, 0)
	for rows.Next() {
		var item catalog.User
		if err := rows.Scan(&item.ID, &item.Name, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, storeErr("list users", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list users", err)
	}
	return out, nil
}
