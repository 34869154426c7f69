package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	IdentityKeyPrefix        = "identity:%s"
	IdentityVersionKeyPrefix = "identity:ver:%s"
	BlacklistKeyPrefix       = "blacklist:%s"
	PopupSeenKeyPrefix       = "popup:seen:%s:%s"
)

const (
	IdentityTTL = 2 * time.Minute
	// PopupSeenTTL bounds how long "once" popups remember a viewer.
	PopupSeenTTL = 365 * 24 * time.Hour
)

func IdentityKey(id string) string {
	return fmt.Sprintf(IdentityKeyPrefix, id)
}

func IdentityVersionKey(id string) string {
	return fmt.Sprintf(IdentityVersionKeyPrefix, id)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

func PopupSeenKey(viewer, popupID string) string {
	return fmt.Sprintf(PopupSeenKeyPrefix, viewer, popupID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateIdentity drops the cached identity and bumps its version, so a
// fill that read the row before the change is discarded.
func InvalidateIdentity(ctx context.Context, id string) {
	if client == nil {
		return
	}
	_, _ = client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, IdentityVersionKey(id))
		p.Expire(ctx, IdentityVersionKey(id), IdentityTTL)
		p.Del(ctx, IdentityKey(id))
		return nil
	})
}
