package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remidosol/express-library-api/internal/domain/catalog"
	"github.com/remidosol/express-library-api/internal/domain/fault"
)

type BookRepository struct {
	pool *pgxpool.Pool
}

func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

func (r *BookRepository) Create(ctx context.Context, name string) (*catalog.Book, error) {
	q := `
INSERT INTO books (name)
VALUES ($1)
RETURNING id, name, score, created_at, updated_at
`
	out := &catalog.Book{}
	err := r.pool.QueryRow(ctx, q, name).
		Scan(&out.ID, &out.Name, &out.Score, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, storeErr("create book", err)
	}
	return out, nil
}

func (r *BookRepository) GetByID(ctx context.Context, id int64) (*catalog.Book, error) {
	q := `SELECT id, name, score, created_at, updated_at FROM books WHERE id = $1`
	out := &catalog.Book{}
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&out.ID, &out.Name, &out.Score, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("book not found")
	}
	if err != nil {
		return nil, storeErr("get book", err)
	}
	return out, nil
}

func (r *BookRepository) List(ctx context.Context) ([]catalog.Book, error) {
	q := `SELECT id, name, score, created_at, updated_at FROM books ORDER BY id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, storeErr("list books", err)
	}
	defer rows.Close()

	out := make([]catalog.Book, 0)
	for rows.Next() {
		var item catalog.Book
		if err := rows.Scan(&item.ID, &item.Name, &item.Score, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, storeErr("list books", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list books", err)
	}
	return out, nil
}

func (r *BookRepository) UpdateScore(ctx context.Context, id int64, score float64) (*catalog.Book, error) {
	q := `
UPDATE books
SET score = $2, updated_at = NOW()
WHERE id = $1
RETURNING id, name, score, created_at, updated_at
`
	out := &catalog.Book{}
	err := r.pool.QueryRow(ctx, q, id, score).
		Scan(&out.ID, &out.Name, &out.Score, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("book not found")
	}
	if err != nil {
		return nil, storeErr("update book score", err)
	}
	return out, nil
}
