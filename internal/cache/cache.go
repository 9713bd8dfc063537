// Package cache stores encoded extraction results keyed by content hash and
// type hint.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// Cache is a byte-value cache with a fixed TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// New builds the backend named by cfg.Backend. It returns nil for "none".
func New(ctx context.Context, cfg common.CacheConfig, logger *slog.Logger) (Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(cfg.TTL), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisURL, cfg.TTL, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q: %w", cfg.Backend, common.ErrInvalidInput)
	}
}

const keyPrefix = "docextract:result:"

type entry struct {
	value   []byte
	expires time.Time
}
