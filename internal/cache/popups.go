package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PopupViews remembers when a viewer last saw each popup.
type PopupViews struct {
	rdb *redis.Client
}

// NewPopupViews returns a Redis-backed popup view log.
func NewPopupViews(rdb *redis.Client) *PopupViews {
	return &PopupViews{rdb: rdb}
}

// LastSeen returns the last time viewer saw popupID.
func (v *PopupViews) LastSeen(ctx context.Context, viewer, popupID string) (time.Time, bool, error) {
	ms, err := v.rdb.Get(ctx, PopupSeenKey(viewer, popupID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// MarkSeen records that viewer saw popupID at the given time.
func (v *PopupViews) MarkSeen(ctx context.Context, viewer, popupID string, at time.Time) error {
	return v.rdb.Set(ctx, PopupSeenKey(viewer, popupID), at.UnixMilli(), PopupSeenTTL).Err()
}
