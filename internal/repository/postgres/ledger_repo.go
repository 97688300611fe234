package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remidosol/express-library-api/internal/domain/fault"
	"github.com/remidosol/express-library-api/internal/domain/lending"
)

const recordColumns = `id, user_id, book_id, returned, score, created_at, updated_at`

// LedgerRepository stores borrow records. The one_active_borrow_per_book
// partial unique index makes a racing insert of a second active record fail
// at commit time, independent of the in-process locking.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) Create(ctx context.Context, userID, bookID int64) (*lending.Record, error) {
	q := `
INSERT INTO borrow_records (user_id, book_id)
VALUES ($1, $2)
RETURNING ` + recordColumns
	out := &lending.Record{}
	err := r.pool.QueryRow(ctx, q, userID, bookID).
		Scan(&out.ID, &out.UserID, &out.BookID, &out.Returned, &out.Score, &out.CreatedAt, &out.UpdatedAt)
	if isUniqueViolation(err, "one_active_borrow_per_book") {
		return nil, fault.Conflict("borrowed by another user")
	}
	if err != nil {
		return nil, storeErr("create borrow record", err)
	}
	return out, nil
}

func (r *LedgerRepository) FindActiveByBook(ctx context.Context, bookID int64) (*lending.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM borrow_records WHERE book_id = $1 AND NOT returned`
	return r.queryOne(ctx, q, bookID)
}

func (r *LedgerRepository) FindActiveByUserAndBook(ctx context.Context, userID, bookID int64) (*lending.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM borrow_records WHERE user_id = $1 AND book_id = $2 AND NOT returned`
	return r.queryOne(ctx, q, userID, bookID)
}

func (r *LedgerRepository) FindClosedByBook(ctx context.Context, bookID int64) ([]lending.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM borrow_records WHERE book_id = $1 AND returned ORDER BY id`
	rows, err := r.pool.Query(ctx, q, bookID)
	if err != nil {
		return nil, storeErr("list closed borrow records", err)
	}
	defer rows.Close()

	out := make([]lending.Record, 0)
	for rows.Next() {
		var item lending.Record
		if err := rows.Scan(&item.ID, &item.UserID, &item.BookID, &item.Returned, &item.Score, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, storeErr("list closed borrow records", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list closed borrow records", err)
	}
	return out, nil
}

func (r *LedgerRepository) Close(ctx context.Context, recordID int64, score int32) (*lending.Record, error) {
	q := `
UPDATE borrow_records
SET returned = TRUE, score = $2, updated_at = NOW()
WHERE id = $1 AND NOT returned
RETURNING ` + recordColumns
	out := &lending.Record{}
	err := r.pool.QueryRow(ctx, q, recordID, score).
		Scan(&out.ID, &out.UserID, &out.BookID, &out.Returned, &out.Score, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("no active borrow")
	}
	if err != nil {
		return nil, storeErr("close borrow record", err)
	}
	return out, nil
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64) ([]lending.HistoryRow, error) {
	q := `
SELECT b.name, br.returned, br.score
FROM borrow_records br
JOIN books b ON b.id = br.book_id
WHERE br.user_id = $1
ORDER BY br.id
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, storeErr("list user borrow records", err)
	}
	defer rows.Close()

	out := make([]lending.HistoryRow, 0)
	for rows.Next() {
		var item lending.HistoryRow
		if err := rows.Scan(&item.BookName, &item.Returned, &item.Score); err != nil {
			return nil, storeErr("list user borrow records", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list user borrow records", err)
	}
	return out, nil
}

func (r *LedgerRepository) queryOne(ctx context.Context, q string, args ...any) (*lending.Record, error) {
	out := &lending.Record{}
	err := r.pool.QueryRow(ctx, q, args...).
		Scan(&out.ID, &out.UserID, &out.BookID, &out.Returned, &out.Score, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find borrow record", err)
	}
	return out, nil
}
