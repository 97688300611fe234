package catalog

import (
	"context"
	"time"
)

type Book struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type BookRepository interface {
	Create(ctx context.Context, name string) (*Book, error)
	GetByID(ctx context.Context, id int64) (*Book, error)
	List(ctx context.Context) ([]Book, error)
	UpdateScore(ctx context.Context, id int64, score float64) (*Book, error)
}

type UserRepository interface {
	Create(ctx context.Context, name string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context) ([]User, error)
}
