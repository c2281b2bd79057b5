package cache

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// New creates an instrumented in-memory cache. The name identifies the cache
// in metrics and spans.
func New[T any](name string, ttl time.Duration, maxSize int) (Cache[T], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache %s: ttl must be positive, got %s", name, ttl)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache %s: max size must be positive, got %d", name, maxSize)
	}

	memory, err := NewMemory[T](ttl, maxSize)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}

	log.Debug().
		Str("cache", name).
		Dur("ttl", ttl).
		Int("max_size", maxSize).
		Msg("initialized in-memory cache")

	return NewInstrumented[T](memory, name), nil
}
