package lending

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/remidosol/express-library-api/internal/cache"
	catalogdomain "github.com/remidosol/express-library-api/internal/domain/catalog"
	"github.com/remidosol/express-library-api/internal/domain/fault"
	"github.com/remidosol/express-library-api/internal/keylock"
)

type BookStore interface {
	GetByID(ctx context.Context, id int64) (*catalogdomain.Book, error)
	UpdateScore(ctx context.Context, id int64, score float64) (*catalogdomain.Book, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*catalogdomain.User, error)
}

// Service owns the borrow/return state machine. The check-then-act sequence
// of Borrow and the three-step unit of Return both run under a per-book lock;
// the partial unique index on the ledger table backs the same invariant at
// commit time for writers outside this process.
type Service struct {
	books  BookStore
	users  UserStore
	ledger Repository

	snapshots    cache.Store
	logger       *slog.Logger
	locks        *keylock.KeyLock
	storeTimeout time.Duration
	cacheTimeout time.Duration
}

func NewService(
	books BookStore,
	users UserStore,
	ledger Repository,
	snapshots cache.Store,
	logger *slog.Logger,
	storeTimeout, cacheTimeout time.Duration,
) *Service {
	return &Service{
		books:        books,
		users:        users,
		ledger:       ledger,
		snapshots:    snapshots,
		logger:       logger,
		locks:        keylock.New(),
		storeTimeout: storeTimeout,
		cacheTimeout: cacheTimeout,
	}
}

func (s *Service) Borrow(ctx context.Context, userID, bookID int64) (*Record, error) {
	if userID <= 0 || bookID <= 0 {
		return nil, fault.Invalid("invalid identifier")
	}

	s.locks.Lock(bookID)
	defer s.locks.Unlock(bookID)

	if err := s.checkExists(ctx, userID, bookID); err != nil {
		return nil, err
	}

	active, err := s.findActive(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if active.UserID == userID {
			return nil, fault.Conflict("already borrowed by this user")
		}
		return nil, fault.Conflict("borrowed by another user")
	}

	createCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.ledger.Create(createCtx, userID, bookID)
}

func (s *Service) Return(ctx context.Context, userID, bookID int64, score int32) (*ReturnResult, error) {
	if userID <= 0 || bookID <= 0 {
		return nil, fault.Invalid("invalid identifier")
	}
	if score < 1 || score > 10 {
		return nil, fault.Invalid("score must be between 1 and 10")
	}

	s.locks.Lock(bookID)
	defer s.locks.Unlock(bookID)

	if err := s.checkExists(ctx, userID, bookID); err != nil {
		return nil, err
	}

	findCtx, cancel := s.storeCtx(ctx)
	active, err := s.ledger.FindActiveByUserAndBook(findCtx, userID, bookID)
	cancel()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, fault.NotFound("no active borrow")
	}

	closeCtx, cancel := s.storeCtx(ctx)
	closed, err := s.ledger.Close(closeCtx, active.ID, score)
	cancel()
	if err != nil {
		return nil, err
	}

	// The record is committed. Caller cancellation must not strand the book
	// with a stale aggregate score, so the rest of the unit detaches from the
	// caller's context.
	tail := context.WithoutCancel(ctx)

	newScore, err := s.recomputeBookScore(tail, bookID)
	if err != nil {
		return nil, err
	}

	result := &ReturnResult{Record: closed, BookScore: newScore}
	if err := s.invalidateSnapshot(tail, bookID); err != nil {
		s.logger.Warn("book snapshot invalidation failed", "book_id", bookID, "err", err)
		result.CacheWarning = err
	}
	return result, nil
}

func (s *Service) GetUserWithHistory(ctx context.Context, userID int64) (*UserHistory, error) {
	if userID <= 0 {
		return nil, fault.Invalid("invalid identifier")
	}

	userCtx, cancel := s.storeCtx(ctx)
	user, err := s.users.GetByID(userCtx, userID)
	cancel()
	if err != nil {
		return nil, err
	}

	listCtx, cancel := s.storeCtx(ctx)
	rows, err := s.ledger.ListByUser(listCtx, userID)
	cancel()
	if err != nil {
		return nil, err
	}

	out := &UserHistory{
		ID:   user.ID,
		Name: user.Name,
		Books: BooksPartition{
			Past:    []PastBook{},
			Present: []PresentBook{},
		},
	}
	for _, row := range rows {
		if row.Returned {
			out.Books.Past = append(out.Books.Past, PastBook{Name: row.BookName, Score: row.Score})
		} else {
			out.Books.Present = append(out.Books.Present, PresentBook{Name: row.BookName})
		}
	}
	return out, nil
}

// AverageScore is the mean of the closed-record scores rounded to one
// decimal, 0 when there is no closed history.
func AverageScore(records []Record) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum int64
	for _, r := range records {
		sum += int64(r.Score)
	}
	mean := float64(sum) / float64(len(records))
	return math.Round(mean*10) / 10
}

func (s *Service) recomputeBookScore(ctx context.Context, bookID int64) (float64, error) {
	listCtx, cancel := s.storeCtx(ctx)
	closed, err := s.ledger.FindClosedByBook(listCtx, bookID)
	cancel()
	if err != nil {
		return 0, err
	}

	newScore := AverageScore(closed)
	updateCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if _, err := s.books.UpdateScore(updateCtx, bookID, newScore); err != nil {
		return 0, err
	}
	return newScore, nil
}

func (s *Service) invalidateSnapshot(ctx context.Context, bookID int64) error {
	cacheCtx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()
	return s.snapshots.Delete(cacheCtx, cache.BookKey(bookID))
}

func (s *Service) checkExists(ctx context.Context, userID, bookID int64) error {
	userCtx, cancel := s.storeCtx(ctx)
	_, err := s.users.GetByID(userCtx, userID)
	cancel()
	if err != nil {
		return err
	}

	bookCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	_, err = s.books.GetByID(bookCtx, bookID)
	return err
}

func (s *Service) findActive(ctx context.Context, bookID int64) (*Record, error) {
	findCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.ledger.FindActiveByBook(findCtx, bookID)
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}
