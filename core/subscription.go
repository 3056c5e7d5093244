package core

import (
	"context"
	"errors"
	"net/http"
)

// SubscriptionManager subscribes through the transport and, when the server
// rejects the request with a 400 while a replay fallback is configured,
// arms the fallback on the replay store and retries exactly once.
type SubscriptionManager struct {
	transport Transport
	store     ReplayStore
	fallback  ReplayOption
	logger    Logger
}

func NewSubscriptionManager(transport Transport, store ReplayStore, fallback ReplayOption, logger Logger) *SubscriptionManager {
	return &SubscriptionManager{
		transport: transport,
		store:     store,
		fallback:  fallback,
		logger:    logger,
	}
}

func (m *SubscriptionManager) Subscribe(ctx context.Context, channel string) error {
	if m == nil || m.transport == nil {
		return ErrClientInvalidOperation
	}
	err := m.transport.Subscribe(ctx, channel)
	if err == nil || !m.shouldRetry(err) {
		return err
	}

	var serverErr *TransportServerError
	errors.As(err, &serverErr)
	logWithLevel(ctx, m.logger, "warn", "subscription failed, retrying with replay fallback", map[string]any{
		"channel":       channel,
		"error_message": serverErr.Description(),
		"fallback":      m.fallback.String(),
	})
	m.store.SetFallback(m.fallback)
	return m.transport.Subscribe(ctx, channel)
}

func (m *SubscriptionManager) Unsubscribe(ctx context.Context, channel string) error {
	if m == nil || m.transport == nil {
		return ErrClientInvalidOperation
	}
	return m.transport.Unsubscribe(ctx, channel)
}

func (m *SubscriptionManager) shouldRetry(err error) bool {
	if !m.fallback.Valid() || m.store == nil {
		return false
	}
	var serverErr *TransportServerError
	if !errors.As(err, &serverErr) {
		return false
	}
	code, ok := serverErr.Code()
	return ok && code == http.StatusBadRequest
}
