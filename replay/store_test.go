package replay

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-sfstream/core"
)

func eventMessage(channel, date string, replayID any) core.Message {
	return core.Message{
		"channel": channel,
		"data": map[string]any{
			"event": map[string]any{
				"createdDate": date,
				"replayId":    replayID,
			},
		},
	}
}

func subscribeMessage(channel string) core.Message {
	return core.Message{
		"channel":      core.ChannelSubscribe,
		"subscription": channel,
	}
}

func replayExt(t *testing.T, message core.Message) map[string]any {
	t.Helper()
	ext := message.Ext(false)
	if ext == nil {
		return nil
	}
	replay, ok := ext["replay"].(map[string]any)
	if !ok {
		t.Fatalf("expected ext.replay object, got %#v", ext["replay"])
	}
	return replay
}

func TestStore_ExtractStoresNewerAndIgnoresOlderMarkers(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(nil)
	store := NewMappingStore(storage)

	if err := store.ExtractReplayID(ctx, eventMessage("/event/Foo", "2024-01-01T00:00:00Z", float64(42))); err != nil {
		t.Fatalf("extract: %v", err)
	}
	marker, ok, _ := storage.GetReplayMarker(ctx, "/event/Foo")
	if !ok || marker.Date != "2024-01-01T00:00:00Z" || marker.ReplayID != 42 {
		t.Fatalf("unexpected marker %#v", marker)
	}

	if err := store.ExtractReplayID(ctx, eventMessage("/event/Foo", "2023-12-31T00:00:00Z", float64(10))); err != nil {
		t.Fatalf("extract older: %v", err)
	}
	marker, _, _ = storage.GetReplayMarker(ctx, "/event/Foo")
	if marker.ReplayID != 42 {
		t.Fatalf("expected older marker to be ignored, got %#v", marker)
	}

	if err := store.ExtractReplayID(ctx, eventMessage("/event/Foo", "2024-01-01T00:00:00Z", float64(43))); err != nil {
		t.Fatalf("extract same date: %v", err)
	}
	marker, _, _ = storage.GetReplayMarker(ctx, "/event/Foo")
	if marker.ReplayID != 43 {
		t.Fatalf("expected equal date to overwrite, got %#v", marker)
	}
}

func TestStore_ExtractComparesOffsetsTemporally(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(map[string]core.ReplayMarker{
		"/topic/Accounts": {Date: "2024-01-01T10:00:00.000+0000", ReplayID: 5},
	})
	store := NewMappingStore(storage)

	// 09:30 in UTC-01:00 is 10:30 UTC, newer than the stored marker.
	if err := store.ExtractReplayID(ctx, eventMessage("/topic/Accounts", "2024-01-01T09:30:00.000-0100", "6")); err != nil {
		t.Fatalf("extract: %v", err)
	}
	marker, _, _ := storage.GetReplayMarker(ctx, "/topic/Accounts")
	if marker.ReplayID != 6 {
		t.Fatalf("expected newer marker by instant, got %#v", marker)
	}
}

func TestStore_ExtractWithoutDateFailsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	seed := core.ReplayMarker{Date: "2024-01-01T00:00:00Z", ReplayID: 42}
	storage := NewMemoryStorage(map[string]core.ReplayMarker{"/event/Foo": seed})
	store := NewMappingStore(storage)

	err := store.ExtractReplayID(ctx, core.Message{
		"channel": "/event/Foo",
		"data":    map[string]any{"event": map[string]any{"replayId": float64(50)}},
	})
	if !core.IsReplayError(err) {
		t.Fatalf("expected replay error, got %v", err)
	}
	if got := storage.Snapshot()["/event/Foo"]; got != seed {
		t.Fatalf("expected untouched marker, got %#v", got)
	}

	err = store.ExtractReplayID(ctx, core.Message{
		"channel": "/event/Foo",
		"data":    map[string]any{"payload": map[string]any{"CreatedDate": "2025-01-01T00:00:00Z"}},
	})
	if !core.IsReplayError(err) {
		t.Fatalf("expected replay error for missing replay id, got %v", err)
	}
	if got := storage.Snapshot()["/event/Foo"]; got != seed {
		t.Fatalf("expected untouched marker, got %#v", got)
	}
}

func TestStore_ExtractUsesPayloadCreatedDate(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(nil)
	store := NewMappingStore(storage)
	err := store.ExtractReplayID(ctx, core.Message{
		"channel": "/event/Order__e",
		"data": map[string]any{
			"payload": map[string]any{"CreatedDate": "2024-02-02T00:00:00Z"},
			"event":   map[string]any{"replayId": float64(7)},
		},
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := storage.Snapshot()["/event/Order__e"]; got.ReplayID != 7 || got.Date != "2024-02-02T00:00:00Z" {
		t.Fatalf("unexpected marker %#v", got)
	}
}

func TestStore_InsertWithoutMarkerLeavesMessageUntouched(t *testing.T) {
	store := NewMappingStore(NewMemoryStorage(nil))
	message := subscribeMessage("/event/Foo")
	if err := store.BeforeSend(context.Background(), []core.Message{message}, http.Header{}); err != nil {
		t.Fatalf("before send: %v", err)
	}
	if _, ok := message["ext"]; ok {
		t.Fatalf("expected no ext, got %#v", message["ext"])
	}
}

func TestStore_InsertUsesStoredMarkerAndKeepsExistingExt(t *testing.T) {
	storage := NewMemoryStorage(map[string]core.ReplayMarker{
		"/event/Foo": {Date: "2024-01-01T00:00:00Z", ReplayID: 42},
	})
	store := NewMappingStore(storage)
	message := subscribeMessage("/event/Foo")
	message["ext"] = map[string]any{"other": true}

	if err := store.BeforeSend(context.Background(), []core.Message{message, {"channel": "/meta/connect"}}, nil); err != nil {
		t.Fatalf("before send: %v", err)
	}
	if got := replayExt(t, message)["/event/Foo"]; got != int64(42) {
		t.Fatalf("expected replay id 42, got %#v", got)
	}
	if message.Ext(false)["other"] != true {
		t.Fatalf("expected existing ext keys to be kept")
	}
}

func TestStore_FallbackConsumedOnce(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(map[string]core.ReplayMarker{
		"/event/Foo": {Date: "2024-01-01T00:00:00Z", ReplayID: 42},
	})
	store := NewMappingStore(storage)
	store.SetFallback(core.ReplayAllEvents)

	first := subscribeMessage("/event/Foo")
	if err := store.InsertReplayID(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := replayExt(t, first)["/event/Foo"]; got != int64(-2) {
		t.Fatalf("expected fallback -2, got %#v", got)
	}
	if _, armed := store.Fallback(); armed {
		t.Fatalf("expected fallback to be consumed")
	}

	second := subscribeMessage("/event/Foo")
	if err := store.InsertReplayID(ctx, second); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := replayExt(t, second)["/event/Foo"]; got != int64(42) {
		t.Fatalf("expected stored marker after fallback, got %#v", got)
	}
}

func TestConstantReplayID_ReportsIDAndStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := NewConstantReplayID(core.ReplayNewEvents)
	if err := store.ExtractReplayID(ctx, eventMessage("/event/Foo", "2024-01-01T00:00:00Z", float64(1))); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if _, ok, _ := store.GetReplayMarker(ctx, "/event/Foo"); ok {
		t.Fatalf("expected no stored marker")
	}
	id, ok, err := store.GetReplayID(ctx, "/event/Foo")
	if err != nil || !ok || id != -1 {
		t.Fatalf("expected constant -1, got %d %v %v", id, ok, err)
	}
}

func TestDefaultMappingStore_FallsBackToDefaultID(t *testing.T) {
	ctx := context.Background()
	store := NewDefaultMappingStore(NewMemoryStorage(nil), int64(core.ReplayAllEvents))
	id, ok, _ := store.GetReplayID(ctx, "/event/Foo")
	if !ok || id != -2 {
		t.Fatalf("expected default id -2, got %d", id)
	}
	if err := store.ExtractReplayID(ctx, eventMessage("/event/Foo", "2024-01-01T00:00:00Z", float64(9))); err != nil {
		t.Fatalf("extract: %v", err)
	}
	id, _, _ = store.GetReplayID(ctx, "/event/Foo")
	if id != 9 {
		t.Fatalf("expected stored id 9, got %d", id)
	}
}

func TestStore_ProcessCommitsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(nil)
	store := NewMappingStore(storage)
	message := eventMessage("/event/Foo", "2024-01-01T00:00:00Z", float64(3))

	handlerErr := errors.New("handler failed")
	err := store.Process(ctx, message, func(context.Context, core.Message) error { return handlerErr })
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if _, ok, _ := storage.GetReplayMarker(ctx, "/event/Foo"); ok {
		t.Fatalf("expected no marker after failed handler")
	}

	if err := store.Process(ctx, message, func(context.Context, core.Message) error { return nil }); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, ok, _ := storage.GetReplayMarker(ctx, "/event/Foo"); !ok {
		t.Fatalf("expected marker after successful handler")
	}
}

type failingStorage struct{ err error }

func (f failingStorage) GetReplayMarker(context.Context, string) (core.ReplayMarker, bool, error) {
	return core.ReplayMarker{}, false, f.err
}

func (f failingStorage) SetReplayMarker(context.Context, string, core.ReplayMarker) error {
	return f.err
}

func TestStore_StorageFailuresSurfaceAsReplayErrors(t *testing.T) {
	cause := errors.New("backend down")
	store := NewMappingStore(failingStorage{err: cause})
	err := store.ExtractReplayID(context.Background(), eventMessage("/event/Foo", "2024-01-01T00:00:00Z", float64(1)))
	if !core.IsReplayError(err) || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped replay error, got %v", err)
	}
}

func TestLRUStorage_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	storage, err := NewLRUStorage(2)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}
	_ = storage.SetReplayMarker(ctx, "a", core.ReplayMarker{Date: "d", ReplayID: 1})
	_ = storage.SetReplayMarker(ctx, "b", core.ReplayMarker{Date: "d", ReplayID: 2})
	_, _, _ = storage.GetReplayMarker(ctx, "a")
	_ = storage.SetReplayMarker(ctx, "c", core.ReplayMarker{Date: "d", ReplayID: 3})

	if _, ok, _ := storage.GetReplayMarker(ctx, "b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok, _ := storage.GetReplayMarker(ctx, "a"); !ok {
		t.Fatalf("expected a to be kept")
	}
	if storage.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", storage.Len())
	}
}

func TestCompareDates(t *testing.T) {
	if CompareDates("2024-01-01T00:00:00Z", "2024-01-01T01:00:00+01:00") != 0 {
		t.Fatalf("expected equal instants")
	}
	if CompareDates("not-a-date-b", "not-a-date-a") <= 0 {
		t.Fatalf("expected lexical fallback")
	}
}
