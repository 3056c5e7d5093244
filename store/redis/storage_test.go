package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-sfstream/core"
	"github.com/goliatone/go-sfstream/replay"
)

func newTestStorage(t *testing.T, ttl time.Duration) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	storage, err := NewStorage(client, "test:replay:", ttl)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	return storage, mr
}

func TestStorage_RoundTripsMarkers(t *testing.T) {
	ctx := context.Background()
	storage, mr := newTestStorage(t, 0)

	if _, ok, err := storage.GetReplayMarker(ctx, "/event/Foo"); err != nil || ok {
		t.Fatalf("expected missing marker, got ok=%v err=%v", ok, err)
	}
	marker := core.ReplayMarker{Date: "2024-01-01T00:00:00Z", ReplayID: 42}
	if err := storage.SetReplayMarker(ctx, "/event/Foo", marker); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := storage.GetReplayMarker(ctx, "/event/Foo")
	if err != nil || !ok || got != marker {
		t.Fatalf("unexpected marker %#v ok=%v err=%v", got, ok, err)
	}
	if !mr.Exists("test:replay:/event/Foo") {
		t.Fatalf("expected prefixed key in redis")
	}
}

func TestStorage_ExpiresMarkersWithTTL(t *testing.T) {
	ctx := context.Background()
	storage, mr := newTestStorage(t, time.Minute)
	if err := storage.SetReplayMarker(ctx, "/event/Foo", core.ReplayMarker{Date: "d", ReplayID: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := storage.GetReplayMarker(ctx, "/event/Foo"); ok {
		t.Fatalf("expected marker to expire")
	}
}

func TestStorage_BacksReplayStore(t *testing.T) {
	ctx := context.Background()
	storage, _ := newTestStorage(t, 0)
	store := replay.NewMappingStore(storage)

	message := core.Message{
		"channel": "/event/Foo",
		"data": map[string]any{
			"event": map[string]any{"createdDate": "2024-01-01T00:00:00Z", "replayId": float64(42)},
		},
	}
	if err := store.ExtractReplayID(ctx, message); err != nil {
		t.Fatalf("extract: %v", err)
	}
	id, ok, err := store.GetReplayID(ctx, "/event/Foo")
	if err != nil || !ok || id != 42 {
		t.Fatalf("expected replay id 42, got %d ok=%v err=%v", id, ok, err)
	}
}
