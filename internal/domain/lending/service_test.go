package lending_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/remidosol/express-library-api/internal/cache"
	catalogdomain "github.com/remidosol/express-library-api/internal/domain/catalog"
	"github.com/remidosol/express-library-api/internal/domain/fault"
	lendingdomain "github.com/remidosol/express-library-api/internal/domain/lending"
)

type bookStoreMock struct {
	mu    sync.Mutex
	books map[int64]*catalogdomain.Book
}

func (m *bookStoreMock) GetByID(_ context.Context, id int64) (*catalogdomain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, fault.NotFound("book not found")
}

func (m *bookStoreMock) UpdateScore(_ context.Context, id int64, score float64) (*catalogdomain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, fault.NotFound("book not found")
	}
	b.Score = score
	cp := *b
	return &cp, nil
}

type userStoreMock struct {
	users map[int64]*catalogdomain.User
}

func (m *userStoreMock) GetByID(_ context.Context, id int64) (*catalogdomain.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fault.NotFound("user not found")
}

type ledgerMock struct {
	mu      sync.Mutex
	records []lendingdomain.Record
	nextID  int64
	books   *bookStoreMock
}

func (m *ledgerMock) Create(_ context.Context, userID, bookID int64) (*lendingdomain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.BookID == bookID && !r.Returned {
			// mirrors the one_active_borrow_per_book index
			return nil, fault.Conflict("borrowed by another user")
		}
	}
	m.nextID++
	rec := lendingdomain.Record{ID: m.nextID, UserID: userID, BookID: bookID}
	m.records = append(m.records, rec)
	return &rec, nil
}

func (m *ledgerMock) FindActiveByBook(_ context.Context, bookID int64) (*lendingdomain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.BookID == bookID && !r.Returned {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *ledgerMock) FindActiveByUserAndBook(_ context.Context, userID, bookID int64) (*lendingdomain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID && r.BookID == bookID && !r.Returned {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *ledgerMock) FindClosedByBook(_ context.Context, bookID int64) ([]lendingdomain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []lendingdomain.Record{}
	for _, r := range m.records {
		if r.BookID == bookID && r.Returned {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *ledgerMock) Close(_ context.Context, recordID int64, score int32) (*lendingdomain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == recordID && !m.records[i].Returned {
			m.records[i].Returned = true
			m.records[i].Score = score
			cp := m.records[i]
			return &cp, nil
		}
	}
	return nil, fault.NotFound("no active borrow")
}

func (m *ledgerMock) ListByUser(ctx context.Context, userID int64) ([]lendingdomain.HistoryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []lendingdomain.HistoryRow{}
	for _, r := range m.records {
		name := ""
		if m.books != nil {
			if b, ok := m.books.books[r.BookID]; ok {
				name = b.Name
			}
		}
		if r.UserID == userID {
			out = append(out, lendingdomain.HistoryRow{BookName: name, Returned: r.Returned, Score: r.Score})
		}
	}
	return out, nil
}

func (m *ledgerMock) activeCountByBook(bookID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.BookID == bookID && !r.Returned {
			n++
		}
	}
	return n
}

// cancellingLedger cancels the caller's context as soon as the record close
// commits, mimicking a client that goes away mid-return.
type cancellingLedger struct {
	*ledgerMock
	cancel context.CancelFunc
}

func (c *cancellingLedger) Close(ctx context.Context, recordID int64, score int32) (*lendingdomain.Record, error) {
	rec, err := c.ledgerMock.Close(ctx, recordID, score)
	c.cancel()
	return rec, err
}

func (c *cancellingLedger) FindClosedByBook(ctx context.Context, bookID int64) ([]lendingdomain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Unavailable("list closed borrow records timed out", err)
	}
	return c.ledgerMock.FindClosedByBook(ctx, bookID)
}

// deadCtxBookStore rejects any call arriving on an already-cancelled
// context, the way a real driver would.
type deadCtxBookStore struct {
	*bookStoreMock
}

func (s *deadCtxBookStore) UpdateScore(ctx context.Context, id int64, score float64) (*catalogdomain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Unavailable("update book score timed out", err)
	}
	return s.bookStoreMock.UpdateScore(ctx, id, score)
}

type failingDeleteCache struct {
	cache.Store
}

func (f *failingDeleteCache) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func newFixture() (*lendingdomain.Service, *bookStoreMock, *ledgerMock, cache.Store) {
	books := &bookStoreMock{books: map[int64]*catalogdomain.Book{
		1: {ID: 1, Name: "Dune"},
		2: {ID: 2, Name: "Neuromancer"},
	}}
	users := &userStoreMock{users: map[int64]*catalogdomain.User{
		1: {ID: 1, Name: "esin"},
		2: {ID: 2, Name: "kerem"},
	}}
	ledger := &ledgerMock{books: books}
	snapshots := cache.NewMemory()
	svc := lendingdomain.NewService(
		books, users, ledger, snapshots,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		time.Second, 100*time.Millisecond,
	)
	return svc, books, ledger, snapshots
}

func TestBorrowCreatesActiveRecord(t *testing.T) {
	svc, _, ledger, _ := newFixture()

	rec, err := svc.Borrow(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.UserID != 1 || rec.BookID != 1 || rec.Returned || rec.Score != 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if got := ledger.activeCountByBook(1); got != 1 {
		t.Fatalf("expected 1 active record, got %d", got)
	}
}

func TestBorrowMissingUserOrBook(t *testing.T) {
	svc, _, _, _ := newFixture()

	if _, err := svc.Borrow(context.Background(), 99, 1); !fault.IsNotFound(err) {
		t.Fatalf("expected NotFound for missing user, got %v", err)
	}
	if _, err := svc.Borrow(context.Background(), 1, 99); !fault.IsNotFound(err) {
		t.Fatalf("expected NotFound for missing book, got %v", err)
	}
}

func TestBorrowConflicts(t *testing.T) {
	svc, _, ledger, _ := newFixture()

	if _, err := svc.Borrow(context.Background(), 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Borrow(context.Background(), 1, 1)
	if !fault.IsConflict(err) || err.Error() != "already borrowed by this user" {
		t.Fatalf("expected same-user conflict, got %v", err)
	}

	_, err = svc.Borrow(context.Background(), 2, 1)
	if !fault.IsConflict(err) || err.Error() != "borrowed by another user" {
		t.Fatalf("expected other-user conflict, got %v", err)
	}

	if got := ledger.activeCountByBook(1); got != 1 {
		t.Fatalf("conflicting borrows must not create a second active record, got %d", got)
	}
}

func TestBorrowExclusivityUnderConcurrency(t *testing.T) {
	svc, _, ledger, _ := newFixture()

	const attempts = 32
	var wg sync.WaitGroup
	var succeeded int32
	var mu sync.Mutex
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		userID := int64(i%2 + 1)
		go func() {
			defer wg.Done()
			if _, err := svc.Borrow(context.Background(), userID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one successful borrow, got %d", succeeded)
	}
	if got := ledger.activeCountByBook(1); got != 1 {
		t.Fatalf("expected exactly one active record, got %d", got)
	}
}

func TestReturnValidatesScore(t *testing.T) {
	svc, _, _, _ := newFixture()

	for _, score := range []int32{0, -1, 11} {
		if _, err := svc.Return(context.Background(), 1, 1, score); !fault.IsInvalid(err) {
			t.Fatalf("score %d: expected Invalid, got %v", score, err)
		}
	}
}

func TestReturnWithoutActiveBorrow(t *testing.T) {
	svc, _, _, _ := newFixture()

	_, err := svc.Return(context.Background(), 1, 1, 5)
	if !fault.IsNotFound(err) || err.Error() != "no active borrow" {
		t.Fatalf("expected no-active-borrow NotFound, got %v", err)
	}

	// A different user cannot return someone else's borrow either.
	if _, err := svc.Borrow(context.Background(), 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Return(context.Background(), 2, 1, 5); !fault.IsNotFound(err) {
		t.Fatalf("expected NotFound for foreign return, got %v", err)
	}
}

func TestReturnRecomputesBookScore(t *testing.T) {
	svc, books, _, _ := newFixture()
	ctx := context.Background()

	if _, err := svc.Borrow(ctx, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Return(ctx, 1, 1, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BookScore != 8.0 {
		t.Fatalf("expected score 8.0, got %v", result.BookScore)
	}
	if !result.Record.Returned || result.Record.Score != 8 {
		t.Fatalf("unexpected closed record: %+v", result.Record)
	}

	if _, err := svc.Borrow(ctx, 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err = svc.Return(ctx, 2, 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// mean of 8 and 5, one decimal
	if result.BookScore != 6.5 {
		t.Fatalf("expected score 6.5, got %v", result.BookScore)
	}
	if books.books[1].Score != 6.5 {
		t.Fatalf("book score not persisted, got %v", books.books[1].Score)
	}
}

func TestReturnInvalidatesSnapshot(t *testing.T) {
	svc, _, _, snapshots := newFixture()
	ctx := context.Background()

	key := cache.BookKey(1)
	if err := snapshots.Set(ctx, key, []byte(`{"id":1,"name":"Dune","score":0}`), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Borrow(ctx, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Return(ctx, 1, 1, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CacheWarning != nil {
		t.Fatalf("unexpected cache warning: %v", result.CacheWarning)
	}

	if _, err := snapshots.Get(ctx, key); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("expected snapshot to be invalidated, got %v", err)
	}
}

func TestReturnSurvivesCacheFailure(t *testing.T) {
	books := &bookStoreMock{books: map[int64]*catalogdomain.Book{1: {ID: 1, Name: "Dune"}}}
	users := &userStoreMock{users: map[int64]*catalogdomain.User{1: {ID: 1, Name: "esin"}}}
	ledger := &ledgerMock{books: books}
	svc := lendingdomain.NewService(
		books, users, ledger,
		&failingDeleteCache{Store: cache.NewMemory()},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		time.Second, 100*time.Millisecond,
	)
	ctx := context.Background()

	if _, err := svc.Borrow(ctx, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Return(ctx, 1, 1, 7)
	if err != nil {
		t.Fatalf("return must not fail on cache errors: %v", err)
	}
	if result.CacheWarning == nil {
		t.Fatalf("expected cache warning to be surfaced")
	}
	if books.books[1].Score != 7.0 {
		t.Fatalf("ledger effect must still apply, got score %v", books.books[1].Score)
	}
}

func TestReturnCompletesAfterCallerCancellation(t *testing.T) {
	books := &bookStoreMock{books: map[int64]*catalogdomain.Book{1: {ID: 1, Name: "Dune"}}}
	users := &userStoreMock{users: map[int64]*catalogdomain.User{1: {ID: 1, Name: "esin"}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger := &cancellingLedger{ledgerMock: &ledgerMock{books: books}, cancel: cancel}

	svc := lendingdomain.NewService(
		&deadCtxBookStore{bookStoreMock: books}, users, ledger,
		cache.NewMemory(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		time.Second, 100*time.Millisecond,
	)

	if _, err := svc.Borrow(ctx, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The caller's context dies the moment the close commits; the score
	// recompute and persist must still run to completion.
	result, err := svc.Return(ctx, 1, 1, 7)
	if err != nil {
		t.Fatalf("return must complete once the close has committed: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("fixture did not cancel the caller's context")
	}
	if result.BookScore != 7.0 {
		t.Fatalf("expected recomputed score 7.0, got %v", result.BookScore)
	}
	if books.books[1].Score != 7.0 {
		t.Fatalf("book left with stale score %v after cancellation", books.books[1].Score)
	}
	if !result.Record.Returned || result.Record.Score != 7 {
		t.Fatalf("unexpected closed record: %+v", result.Record)
	}
}

func TestAverageScore(t *testing.T) {
	if got := lendingdomain.AverageScore(nil); got != 0 {
		t.Fatalf("expected 0 for empty history, got %v", got)
	}
	records := []lendingdomain.Record{{Score: 5}, {Score: 9}}
	if got := lendingdomain.AverageScore(records); got != 7.0 {
		t.Fatalf("expected 7.0, got %v", got)
	}
	records = []lendingdomain.Record{{Score: 3}, {Score: 4}, {Score: 4}}
	if got := lendingdomain.AverageScore(records); got != 3.7 {
		t.Fatalf("expected 3.7, got %v", got)
	}
}

func TestGetUserWithHistory(t *testing.T) {
	svc, _, _, _ := newFixture()
	ctx := context.Background()

	if _, err := svc.Borrow(ctx, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Return(ctx, 1, 1, 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Borrow(ctx, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := svc.GetUserWithHistory(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ID != 1 || view.Name != "esin" {
		t.Fatalf("unexpected user: %+v", view)
	}
	if len(view.Books.Past) != 1 || view.Books.Past[0].Name != "Dune" || view.Books.Past[0].Score != 9 {
		t.Fatalf("unexpected past books: %+v", view.Books.Past)
	}
	if len(view.Books.Present) != 1 || view.Books.Present[0].Name != "Neuromancer" {
		t.Fatalf("unexpected present books: %+v", view.Books.Present)
	}

	if _, err := svc.GetUserWithHistory(ctx, 42); !fault.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestBorrowReturnBorrowScenario(t *testing.T) {
	svc, books, ledger, _ := newFixture()
	ctx := context.Background()

	if _, err := svc.Borrow(ctx, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Borrow(ctx, 2, 1); !fault.IsConflict(err) {
		t.Fatalf("expected conflict for second borrower, got %v", err)
	}

	result, err := svc.Return(ctx, 1, 1, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BookScore != 6.0 || books.books[1].Score != 6.0 {
		t.Fatalf("expected book score 6.0, got %v", result.BookScore)
	}
	if got := ledger.activeCountByBook(1); got != 0 {
		t.Fatalf("expected no active record after return, got %d", got)
	}

	if _, err := svc.Borrow(ctx, 2, 1); err != nil {
		t.Fatalf("borrow after return should succeed: %v", err)
	}
}
