package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

// Materializer produces the full ordered session (session_size items) to
// be cached. Callers (MergerViewSession) are responsible for any
// deduplication before the data reaches the cache.
type Materializer func(ctx context.Context) ([]any, error)

// Cache implements the materialize-once-serve-windows contract of
// spec.md §4.8: the first call for a given key (or any call after a cursor
// reset) fetches and stores the whole session; every call reads a
// limit-sized window out of it.
type Cache struct {
	client Client
}

// NewCache wraps client for view-session use.
func NewCache(client Client) *Cache {
	return &Cache{client: client}
}

// Window materializes the session for key if missing or reset is true,
// then returns the (page-1)*limit : page*limit window and whether a
// further page exists.
//
// Session race (spec.md §9, "Known race"): a GET that immediately follows
// this call's own SET can observe a null on a replicated Redis deployment.
// When this call performed the SET itself, it decodes the bytes it just
// wrote in memory rather than reading them back, which is a pure superset of
// the legacy behavior (same data, no dependence on read-after-write
// consistency). Only when a *different* call performed the SET (cache
// exists, no reset) and GET still races with it do we retry GET with
// bounded backoff before giving up.
func (c *Cache) Window(ctx context.Context, key string, page, limit int, reset bool, sessionSize int, ttl time.Duration, materialize Materializer) (window []any, hasNext bool, err error) {
	exists, err := c.client.Exists(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("session: checking cache key %q: %w", key, err)
	}

	var full []any
	if !exists || reset {
		full, err = materialize(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("session: materializing session for %q: %w", key, err)
		}

		encoded, err := json.Marshal(full)
		if err != nil {
			return nil, false, fmt.Errorf("session: encoding session for %q: %w", key, err)
		}
		if err := c.client.Set(ctx, key, encoded, ttl); err != nil {
			return nil, false, fmt.Errorf("session: writing cache key %q: %w", key, err)
		}
		var stored []any
		if err := json.Unmarshal(encoded, &stored); err != nil {
			return nil, false, fmt.Errorf("session: decoding session for %q: %w", key, err)
		}
		full = stored
	} else {
		full, err = c.readWithRetry(ctx, key)
		if err != nil {
			return nil, false, err
		}
	}

	start := (page - 1) * limit
	if start < 0 {
		start = 0
	}
	if start > len(full) {
		start = len(full)
	}
	end := start + limit
	if end > len(full) {
		end = len(full)
	}

	return full[start:end], len(full) > page*limit, nil
}

// readWithRetry reads and decodes key, retrying a NotFound miss with
// bounded exponential backoff to absorb a momentary read-after-write race
// on a replicated Redis (spec.md §9).
func (c *Cache) readWithRetry(ctx context.Context, key string) ([]any, error) {
	var raw []byte

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.MaxInterval = 100 * time.Millisecond
	eb.MaxElapsedTime = 500 * time.Millisecond

	op := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := c.client.Get(ctx, key)
		if err != nil {
			if logger := zerolog.Ctx(ctx); logger != nil && IsNotFound(err) {
				logger.Warn().Str("cache_key", key).Msg("session cache read-after-write race, retrying")
			}
			return err
		}
		raw = b
		return nil
	}

	if err := backoff.Retry(op, eb); err != nil {
		return nil, fmt.Errorf("session: reading cache key %q: %w", key, err)
	}

	var full []any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("session: decoding cache key %q: %w", key, err)
	}
	return full, nil
}
