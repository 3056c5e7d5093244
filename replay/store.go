// Package replay keeps the replay position of each subscription and injects
// it into outgoing subscribe requests.
package replay

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-sfstream/core"
)

type StoreOption func(*Store)

func WithLogger(logger core.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is the message extension that maintains replay continuity. It
// writes ext.replay on outgoing subscribe messages and records the marker of
// consumed messages, never replacing a stored marker with an older one.
type Store struct {
	storage Storage
	logger  core.Logger

	mu          sync.Mutex
	fallback    core.ReplayOption
	hasFallback bool

	extractMu sync.Mutex
}

func NewStore(storage Storage, opts ...StoreOption) *Store {
	if storage == nil {
		storage = NewMemoryStorage(nil)
	}
	store := &Store{storage: storage}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	store.logger = glog.Ensure(store.logger)
	return store
}

// NewMappingStore stores markers in storage and supplies no replay id for
// unknown subscriptions.
func NewMappingStore(storage Storage, opts ...StoreOption) *Store {
	return NewStore(storage, opts...)
}

// NewConstantReplayID always reports id and stores nothing.
func NewConstantReplayID(id core.ReplayOption, opts ...StoreOption) *Store {
	return NewStore(DefaultReplayID{Storage: ConstantStorage{}, DefaultID: int64(id)}, opts...)
}

// NewDefaultMappingStore stores markers in storage and reports defaultID for
// subscriptions without one.
func NewDefaultMappingStore(storage Storage, defaultID int64, opts ...StoreOption) *Store {
	if storage == nil {
		storage = NewMemoryStorage(nil)
	}
	return NewStore(DefaultReplayID{Storage: storage, DefaultID: defaultID}, opts...)
}

func (s *Store) Storage() Storage {
	if s == nil {
		return nil
	}
	return s.storage
}

func (s *Store) BeforeSend(ctx context.Context, messages []core.Message, _ http.Header) error {
	for _, message := range messages {
		if message.Channel() != core.ChannelSubscribe {
			continue
		}
		if err := s.InsertReplayID(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AfterReceive(context.Context, []core.Message, http.Header) error {
	return nil
}

// SetFallback arms a replay id used once by the next subscribe message.
func (s *Store) SetFallback(option core.ReplayOption) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = option
	s.hasFallback = true
}

func (s *Store) Fallback() (core.ReplayOption, bool) {
	if s == nil {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback, s.hasFallback
}

func (s *Store) takeFallback() (core.ReplayOption, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasFallback {
		return 0, false
	}
	option := s.fallback
	s.fallback = 0
	s.hasFallback = false
	return option, true
}

// InsertReplayID writes ext.replay for the message subscription. A pending
// fallback wins over the stored marker and is consumed. Without a replay id
// the message is left untouched.
func (s *Store) InsertReplayID(ctx context.Context, message core.Message) error {
	if s == nil || message == nil {
		return nil
	}
	subscription := message.Subscription()
	if subscription == "" {
		return nil
	}

	var replayID int64
	if option, ok := s.takeFallback(); ok {
		replayID = int64(option)
	} else {
		id, found, err := s.GetReplayID(ctx, subscription)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		replayID = id
	}

	ext := message.Ext(true)
	replay, ok := ext["replay"].(map[string]any)
	if !ok {
		replay = map[string]any{}
		ext["replay"] = replay
	}
	replay[subscription] = replayID
	return nil
}

// ExtractReplayID records the marker of a consumed message. It fails with a
// replay error, leaving the stored markers untouched, when the message has
// no creation date or replay id.
func (s *Store) ExtractReplayID(ctx context.Context, message core.Message) error {
	if s == nil {
		return core.NewReplayError("replay: store is nil")
	}
	subscription := message.Channel()
	if subscription == "" {
		return core.NewReplayError("No message channel found")
	}
	date, ok := messageDate(message)
	if !ok {
		return core.NewReplayError("No message creation date found")
	}
	replayID, ok := messageReplayID(message)
	if !ok {
		return core.NewReplayError("No message replay id found")
	}
	candidate := core.ReplayMarker{Date: date, ReplayID: replayID}

	s.extractMu.Lock()
	defer s.extractMu.Unlock()

	stored, found, err := s.storage.GetReplayMarker(ctx, subscription)
	if err != nil {
		return core.WrapReplayError(err, "replay: load marker failed")
	}
	if found && CompareDates(stored.Date, candidate.Date) > 0 {
		s.logger.Debug("replay marker older than stored one, skipped",
			"subscription", subscription,
			"stored_date", stored.Date,
			"candidate_date", candidate.Date,
		)
		return nil
	}
	if err := s.storage.SetReplayMarker(ctx, subscription, candidate); err != nil {
		return core.WrapReplayError(err, "replay: store marker failed")
	}
	return nil
}

func (s *Store) GetReplayMarker(ctx context.Context, subscription string) (core.ReplayMarker, bool, error) {
	if s == nil {
		return core.ReplayMarker{}, false, nil
	}
	marker, found, err := s.storage.GetReplayMarker(ctx, subscription)
	if err != nil {
		return core.ReplayMarker{}, false, core.WrapReplayError(err, "replay: load marker failed")
	}
	return marker, found, nil
}

// GetReplayID returns the stored replay id of subscription. Storages
// implementing ReplayIDResolver may report a default id instead.
func (s *Store) GetReplayID(ctx context.Context, subscription string) (int64, bool, error) {
	if s == nil {
		return 0, false, nil
	}
	if resolver, ok := s.storage.(ReplayIDResolver); ok {
		id, found, err := resolver.ReplayID(ctx, subscription)
		if err != nil {
			return 0, false, core.WrapReplayError(err, "replay: resolve replay id failed")
		}
		return id, found, nil
	}
	marker, found, err := s.GetReplayMarker(ctx, subscription)
	if err != nil || !found {
		return 0, false, err
	}
	return marker.ReplayID, true, nil
}

// Process hands message to handler and records its marker only when the
// handler succeeds.
func (s *Store) Process(ctx context.Context, message core.Message, handler func(context.Context, core.Message) error) error {
	if handler != nil {
		if err := handler(ctx, message); err != nil {
			return err
		}
	}
	return s.ExtractReplayID(ctx, message)
}

func messageDate(message core.Message) (string, bool) {
	data := message.Data()
	if event, ok := data["event"].(map[string]any); ok {
		if value, ok := event["createdDate"].(string); ok {
			return value, true
		}
	}
	if payload, ok := data["payload"].(map[string]any); ok {
		if value, ok := payload["CreatedDate"].(string); ok {
			return value, true
		}
	}
	return "", false
}

func messageReplayID(message core.Message) (int64, bool) {
	event, ok := message.Data()["event"].(map[string]any)
	if !ok {
		return 0, false
	}
	switch typed := event["replayId"].(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		if typed != math.Trunc(typed) {
			return 0, false
		}
		return int64(typed), true
	case json.Number:
		value, err := typed.Int64()
		return value, err == nil
	case string:
		value, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return value, err == nil
	default:
		return 0, false
	}
}

var _ core.ReplayStore = (*Store)(nil)
