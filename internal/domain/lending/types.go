package lending

import (
	"context"
	"time"
)

// Record is one borrow of one book by one user. It is created active
// (Returned=false, Score=0) and transitions exactly once to returned.
type Record struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	Returned  bool      `json:"returned"`
	Score     int32     `json:"score"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// HistoryRow is a record joined with its book name, for the user view.
type HistoryRow struct {
	BookName string
	Returned bool
	Score    int32
}

type PastBook struct {
	Name  string `json:"name"`
	Score int32  `json:"score"`
}

type PresentBook struct {
	Name string `json:"name"`
}

type BooksPartition struct {
	Past    []PastBook    `json:"past"`
	Present []PresentBook `json:"present"`
}

// UserHistory is the aggregate view of a user: closed records under Past
// (with the score given on return), active ones under Present.
type UserHistory struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Books BooksPartition `json:"books"`
}

// ReturnResult carries the closed record plus the recomputed book score.
// CacheWarning is set when the snapshot invalidation failed; the return
// itself has still committed.
type ReturnResult struct {
	Record       *Record
	BookScore    float64
	CacheWarning error
}

// Repository is the ledger store. The Find* lookups return (nil, nil) when
// no matching record exists; errors are reserved for store failures.
type Repository interface {
	Create(ctx context.Context, userID, bookID int64) (*Record, error)
	FindActiveByBook(ctx context.Context, bookID int64) (*Record, error)
	FindActiveByUserAndBook(ctx context.Context, userID, bookID int64) (*Record, error)
	FindClosedByBook(ctx context.Context, bookID int64) ([]Record, error)
	Close(ctx context.Context, recordID int64, score int32) (*Record, error)
	ListByUser(ctx context.Context, userID int64) ([]HistoryRow, error)
}
