package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrConflict = errors.New("too many concurrent updates")
)

// UpdateFunc receives the current raw value of a key (nil when absent)
// and returns the value to store.
type UpdateFunc func(current []byte) ([]byte, error)

// Cache defines the interface for cache operations
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	// SetBytes and GetBytes store opaque values; GetBytes extends the
	// expiry to ttl when ttl is positive
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetBytes(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
