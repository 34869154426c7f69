package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// AsideVersioned tries Redis first, on miss it calls fetch (which must
// populate dest) and stores the result with ttl. The fill is stored only if
// versionKey is unchanged since before fetch ran, so a read that overlapped a
// write never reaches the cache. Redis errors fall through to fetch.
func AsideVersioned(ctx context.Context, key, versionKey string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}
	if client == nil {
		return fetch()
	}

	var fetchErr error
	fetched := false
	err := client.Watch(ctx, func(tx *redis.Tx) error {
		if fetchErr = fetch(); fetchErr != nil {
			return fetchErr
		}
		fetched = true
		b, err := json.Marshal(dest)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, versionKey)
	switch {
	case fetchErr != nil:
		return fetchErr
	case fetched:
		// redis.TxFailedErr means a writer got in first; the fill is dropped.
		return nil
	case err != nil:
		return fetch()
	}
	return nil
}
