// Package cache provides the short-lived response cache used by the shopping assistant.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrMiss indicates a cache miss.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value cache with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key builds a cache key from a user message and a marketplace domain.
// The message is trimmed and lowercased so trivially different inputs share an entry.
func Key(message, domain string) string {
	return strings.ToLower(strings.TrimSpace(message)) + "_" + domain
}

// GetJSON loads and decodes a cached value. It returns ErrMiss when absent.
func GetJSON(ctx context.Context, c Cache, key string, dst any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return eris.Wrapf(err, "cache: decode %s", key)
	}
	return nil
}

// SetJSON encodes and stores a value.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}
	return c.Set(ctx, key, data, ttl)
}
