// Package cache abstracts the TTL key/value store used for single-book
// snapshots. The Redis implementation backs production; the in-memory
// implementation backs tests and local runs without a Redis.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// BookKey is the cache key for a book snapshot. The format is part of the
// deployed data contract, existing entries use it.
func BookKey(bookID int64) string {
	return "book-" + strconv.FormatInt(bookID, 10)
}
