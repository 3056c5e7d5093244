package replay

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/goliatone/go-sfstream/core"
)

// Storage persists the last replay marker of each subscription.
type Storage interface {
	GetReplayMarker(ctx context.Context, subscription string) (core.ReplayMarker, bool, error)
	SetReplayMarker(ctx context.Context, subscription string, marker core.ReplayMarker) error
}

// ReplayIDResolver is implemented by storages that decide the replay id of
// a subscription without a stored marker.
type ReplayIDResolver interface {
	ReplayID(ctx context.Context, subscription string) (int64, bool, error)
}

// MemoryStorage keeps markers in a map.
type MemoryStorage struct {
	mu      sync.RWMutex
	markers map[string]core.ReplayMarker
}

func NewMemoryStorage(seed map[string]core.ReplayMarker) *MemoryStorage {
	markers := make(map[string]core.ReplayMarker, len(seed))
	for subscription, marker := range seed {
		markers[subscription] = marker
	}
	return &MemoryStorage{markers: markers}
}

func (s *MemoryStorage) GetReplayMarker(_ context.Context, subscription string) (core.ReplayMarker, bool, error) {
	if s == nil {
		return core.ReplayMarker{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	marker, ok := s.markers[subscription]
	return marker, ok, nil
}

func (s *MemoryStorage) SetReplayMarker(_ context.Context, subscription string, marker core.ReplayMarker) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markers == nil {
		s.markers = map[string]core.ReplayMarker{}
	}
	s.markers[subscription] = marker
	return nil
}

func (s *MemoryStorage) Snapshot() map[string]core.ReplayMarker {
	if s == nil {
		return map[string]core.ReplayMarker{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.ReplayMarker, len(s.markers))
	for subscription, marker := range s.markers {
		out[subscription] = marker
	}
	return out
}

const defaultLRUSize = 1024

// LRUStorage keeps the markers of the most recently used subscriptions.
type LRUStorage struct {
	cache *lru.Cache[string, core.ReplayMarker]
}

func NewLRUStorage(size int) (*LRUStorage, error) {
	if size <= 0 {
		size = defaultLRUSize
	}
	cache, err := lru.New[string, core.ReplayMarker](size)
	if err != nil {
		return nil, err
	}
	return &LRUStorage{cache: cache}, nil
}

func (s *LRUStorage) GetReplayMarker(_ context.Context, subscription string) (core.ReplayMarker, bool, error) {
	if s == nil || s.cache == nil {
		return core.ReplayMarker{}, false, nil
	}
	marker, ok := s.cache.Get(subscription)
	return marker, ok, nil
}

func (s *LRUStorage) SetReplayMarker(_ context.Context, subscription string, marker core.ReplayMarker) error {
	if s == nil || s.cache == nil {
		return nil
	}
	s.cache.Add(subscription, marker)
	return nil
}

func (s *LRUStorage) Len() int {
	if s == nil || s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

// ConstantStorage never stores anything.
type ConstantStorage struct{}

func (ConstantStorage) GetReplayMarker(context.Context, string) (core.ReplayMarker, bool, error) {
	return core.ReplayMarker{}, false, nil
}

func (ConstantStorage) SetReplayMarker(context.Context, string, core.ReplayMarker) error {
	return nil
}

// DefaultReplayID wraps a storage and reports DefaultID for subscriptions
// without a stored marker.
type DefaultReplayID struct {
	Storage   Storage
	DefaultID int64
}

func (d DefaultReplayID) GetReplayMarker(ctx context.Context, subscription string) (core.ReplayMarker, bool, error) {
	if d.Storage == nil {
		return core.ReplayMarker{}, false, nil
	}
	return d.Storage.GetReplayMarker(ctx, subscription)
}

func (d DefaultReplayID) SetReplayMarker(ctx context.Context, subscription string, marker core.ReplayMarker) error {
	if d.Storage == nil {
		return nil
	}
	return d.Storage.SetReplayMarker(ctx, subscription, marker)
}

func (d DefaultReplayID) ReplayID(ctx context.Context, subscription string) (int64, bool, error) {
	marker, ok, err := d.GetReplayMarker(ctx, subscription)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return marker.ReplayID, true, nil
	}
	return d.DefaultID, true, nil
}

var (
	_ Storage          = (*MemoryStorage)(nil)
	_ Storage          = (*LRUStorage)(nil)
	_ Storage          = ConstantStorage{}
	_ Storage          = DefaultReplayID{}
	_ ReplayIDResolver = DefaultReplayID{}
)
