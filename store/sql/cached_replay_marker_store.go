package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-sfstream/core"
	"github.com/goliatone/go-sfstream/replay"
)

const replayMarkerCacheKeyPrefix = "go-sfstream::replay_marker::v1"

type cachedReplayMarker struct {
	Marker core.ReplayMarker
	Found  bool
}

// CachedReplayMarkerStore serves marker reads from a go-repository-cache
// service and invalidates the cached entry on every write.
type CachedReplayMarkerStore struct {
	base  replay.Storage
	cache repositorycache.CacheService
}

func NewCachedReplayMarkerStore(
	base replay.Storage,
	cacheService repositorycache.CacheService,
) (*CachedReplayMarkerStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base replay marker storage is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: replay marker cache service is required")
	}
	return &CachedReplayMarkerStore{base: base, cache: cacheService}, nil
}

// ReplayMarkerCacheKey returns go-sfstream::replay_marker::v1::<subscription>
// with the subscription URL-path escaped.
func ReplayMarkerCacheKey(subscription string) (string, error) {
	subscription = strings.TrimSpace(subscription)
	if subscription == "" {
		return "", fmt.Errorf("sqlstore: subscription is required")
	}
	return replayMarkerCacheKeyPrefix + "::" + url.PathEscape(subscription), nil
}

func (s *CachedReplayMarkerStore) GetReplayMarker(ctx context.Context, subscription string) (core.ReplayMarker, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ReplayMarker{}, false, fmt.Errorf("sqlstore: cached replay marker store is not configured")
	}
	cacheKey, err := ReplayMarkerCacheKey(subscription)
	if err != nil {
		return core.ReplayMarker{}, false, err
	}

	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedReplayMarker, error) {
		marker, found, fetchErr := s.base.GetReplayMarker(ctx, strings.TrimSpace(subscription))
		if fetchErr != nil {
			return cachedReplayMarker{}, fetchErr
		}
		return cachedReplayMarker{Marker: marker, Found: found}, nil
	})
	if err != nil {
		return core.ReplayMarker{}, false, err
	}
	return entry.Marker, entry.Found, nil
}

func (s *CachedReplayMarkerStore) SetReplayMarker(ctx context.Context, subscription string, marker core.ReplayMarker) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached replay marker store is not configured")
	}
	cacheKey, err := ReplayMarkerCacheKey(subscription)
	if err != nil {
		return err
	}
	if err := s.base.SetReplayMarker(ctx, strings.TrimSpace(subscription), marker); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
