package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/remidosol/express-library-api/internal/cache"
	"github.com/remidosol/express-library-api/internal/domain/fault"
)

var snapshotCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Service exposes the catalog operations. Single-book reads go through the
// snapshot cache (populated lazily on miss, TTL-bounded); every cache failure
// degrades to a store read, never to a request failure.
type Service struct {
	books     BookRepository
	users     UserRepository
	snapshots cache.Store

	logger       *slog.Logger
	snapshotTTL  time.Duration
	cacheTimeout time.Duration
	storeTimeout time.Duration
}

func NewService(
	books BookRepository,
	users UserRepository,
	snapshots cache.Store,
	logger *slog.Logger,
	snapshotTTL, cacheTimeout, storeTimeout time.Duration,
) *Service {
	return &Service{
		books:        books,
		users:        users,
		snapshots:    snapshots,
		logger:       logger,
		snapshotTTL:  snapshotTTL,
		cacheTimeout: cacheTimeout,
		storeTimeout: storeTimeout,
	}
}

func (s *Service) GetBook(ctx context.Context, bookID int64) (*Book, error) {
	if bookID <= 0 {
		return nil, fault.Invalid("invalid identifier")
	}

	key := cache.BookKey(bookID)
	if book := s.snapshotGet(ctx, key); book != nil {
		return book, nil
	}

	storeCtx, cancel := s.storeCtx(ctx)
	book, err := s.books.GetByID(storeCtx, bookID)
	cancel()
	if err != nil {
		return nil, err
	}

	s.snapshotSet(ctx, key, book)
	return book, nil
}

func (s *Service) ListBooks(ctx context.Context) ([]Book, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.books.List(storeCtx)
}

func (s *Service) CreateBook(ctx context.Context, name string) (*Book, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fault.Invalid("book name is required")
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.books.Create(storeCtx, name)
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.users.List(storeCtx)
}

func (s *Service) CreateUser(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fault.Invalid("user name is required")
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.users.Create(storeCtx, name)
}

func (s *Service) snapshotGet(ctx context.Context, key string) *Book {
	cacheCtx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	raw, err := s.snapshots.Get(cacheCtx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("snapshot read failed, treating as miss", "key", key, "err", err)
		}
		return nil
	}

	book := &Book{}
	if err := snapshotCodec.Unmarshal(raw, book); err != nil {
		s.logger.Warn("snapshot decode failed, treating as miss", "key", key, "err", err)
		return nil
	}
	return book
}

func (s *Service) snapshotSet(ctx context.Context, key string, book *Book) {
	raw, err := snapshotCodec.Marshal(book)
	if err != nil {
		s.logger.Warn("snapshot encode failed", "key", key, "err", err)
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()
	if err := s.snapshots.Set(cacheCtx, key, raw, s.snapshotTTL); err != nil {
		s.logger.Warn("snapshot write failed", "key", key, "err", err)
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}
