package transport

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-sfstream/core"
	"github.com/google/uuid"
)

const defaultMemoryQueueSize = 1024

// MemoryTransport is an in-process Transport. Outgoing control and publish
// messages run through the configured pipeline and are recorded; inbound
// messages are injected with Deliver.
type MemoryTransport struct {
	mu            sync.Mutex
	opts          core.TransportOptions
	clientID      string
	open          bool
	nextID        int
	sent          []core.Message
	headers       []http.Header
	subscriptions map[string]struct{}
	failures      map[string][]error
	inbound       chan core.Message
	done          chan struct{}
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		subscriptions: map[string]struct{}{},
		failures:      map[string][]error{},
	}
}

// NewMemoryFactory returns a factory building a fresh MemoryTransport per call.
func NewMemoryFactory() core.TransportFactory {
	return func(ctx context.Context, opts core.TransportOptions) (core.Transport, error) {
		return MemoryFactoryFor(NewMemoryTransport())(ctx, opts)
	}
}

// MemoryFactoryFor returns a factory that configures and hands out target,
// so callers keep a handle on the transport a Client opens.
func MemoryFactoryFor(target *MemoryTransport) core.TransportFactory {
	return func(_ context.Context, opts core.TransportOptions) (core.Transport, error) {
		if target == nil {
			return nil, fmt.Errorf("transport: memory transport is nil")
		}
		if strings.TrimSpace(opts.URL) == "" {
			return nil, fmt.Errorf("transport: url is required")
		}
		target.configure(opts)
		return target, nil
	}
}

func (t *MemoryTransport) configure(opts core.TransportOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts = opts
	size := opts.MaxPendingCount
	if size <= 0 {
		size = defaultMemoryQueueSize
	}
	t.inbound = make(chan core.Message, size)
	t.done = nil
}

func (t *MemoryTransport) Options() core.TransportOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts
}

func (t *MemoryTransport) ClientID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clientID
}

// FailSubscribe queues errors returned, in order, by the next subscribe
// requests for channel.
func (t *MemoryTransport) FailSubscribe(channel string, errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures == nil {
		t.failures = map[string][]error{}
	}
	t.failures[channel] = append(t.failures[channel], errs...)
}

func (t *MemoryTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	if t.open {
		t.mu.Unlock()
		return invalidOperation("transport is already open")
	}
	if t.inbound == nil {
		t.mu.Unlock()
		return invalidOperation("transport is not configured")
	}
	t.mu.Unlock()

	handshake := core.Message{
		"channel":                  core.ChannelHandshake,
		"version":                  "1.0",
		"supportedConnectionTypes": []any{"long-polling"},
	}
	if err := t.send(ctx, handshake); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.clientID = uuid.NewString()
	t.open = true
	t.done = make(chan struct{})
	t.log(ctx, "memory transport opened", "url", t.opts.URL, "client_id", t.clientID)
	return nil
}

func (t *MemoryTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	disconnect := core.Message{"channel": core.ChannelDisconnect}
	sendErr := t.send(ctx, disconnect)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	t.subscriptions = map[string]struct{}{}
	if t.done != nil {
		close(t.done)
	}
	return sendErr
}

func (t *MemoryTransport) Subscribe(ctx context.Context, channel string) error {
	if err := t.requireOpen("subscribe"); err != nil {
		return err
	}
	message := core.Message{
		"channel":      core.ChannelSubscribe,
		"subscription": channel,
	}
	if err := t.send(ctx, message); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if queued := t.failures[channel]; len(queued) > 0 {
		failure := queued[0]
		t.failures[channel] = queued[1:]
		return failure
	}
	t.subscriptions[channel] = struct{}{}
	return nil
}

func (t *MemoryTransport) Unsubscribe(ctx context.Context, channel string) error {
	if err := t.requireOpen("unsubscribe"); err != nil {
		return err
	}
	message := core.Message{
		"channel":      core.ChannelUnsubscribe,
		"subscription": channel,
	}
	if err := t.send(ctx, message); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscriptions, channel)
	return nil
}

func (t *MemoryTransport) Publish(ctx context.Context, channel string, data any) (core.Message, error) {
	if err := t.requireOpen("publish"); err != nil {
		return nil, err
	}
	message := core.Message{
		"channel": channel,
		"data":    data,
	}
	if err := t.send(ctx, message); err != nil {
		return nil, err
	}

	response := core.Message{
		"channel":    channel,
		"successful": true,
		"id":         message["id"],
	}
	if err := t.opts.Pipeline.AfterReceive(ctx, []core.Message{response}, http.Header{}); err != nil {
		return nil, err
	}
	return response, nil
}

// Deliver runs the inbound pipeline on message and queues it for Receive.
// It blocks while MaxPendingCount messages are pending.
func (t *MemoryTransport) Deliver(ctx context.Context, message core.Message) error {
	t.mu.Lock()
	inbound := t.inbound
	done := t.done
	open := t.open
	pipeline := t.opts.Pipeline
	t.mu.Unlock()
	if !open || inbound == nil {
		return invalidOperation("deliver on a closed transport")
	}
	if err := pipeline.AfterReceive(ctx, []core.Message{message}, http.Header{}); err != nil {
		return err
	}

	select {
	case inbound <- message:
		return nil
	case <-done:
		return core.ErrTransportConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next inbound message. Once the transport is closed
// the pending queue is drained first, then ErrClientInvalidOperation is
// returned.
func (t *MemoryTransport) Receive(ctx context.Context) (core.Message, error) {
	t.mu.Lock()
	inbound := t.inbound
	done := t.done
	t.mu.Unlock()
	if inbound == nil || done == nil {
		return nil, clientInvalidOperation("receive on a transport that was never opened")
	}

	select {
	case message := <-inbound:
		return message, nil
	default:
	}

	select {
	case message := <-inbound:
		return message, nil
	case <-done:
		select {
		case message := <-inbound:
			return message, nil
		default:
			return nil, clientInvalidOperation("the client is closed and there are no pending messages")
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Sent returns copies of the outgoing messages after the pipeline ran.
func (t *MemoryTransport) Sent() []core.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.Message, 0, len(t.sent))
	for _, message := range t.sent {
		out = append(out, message.Clone())
	}
	return out
}

// SentOn filters Sent by channel.
func (t *MemoryTransport) SentOn(channel string) []core.Message {
	out := []core.Message{}
	for _, message := range t.Sent() {
		if message.Channel() == channel {
			out = append(out, message)
		}
	}
	return out
}

// Headers returns the headers the pipeline produced for each sent message.
func (t *MemoryTransport) Headers() []http.Header {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]http.Header, 0, len(t.headers))
	for _, header := range t.headers {
		out = append(out, header.Clone())
	}
	return out
}

func (t *MemoryTransport) Subscriptions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.subscriptions))
	for channel := range t.subscriptions {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}

func (t *MemoryTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *MemoryTransport) requireOpen(operation string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return invalidOperation("%s on a closed transport", operation)
	}
	return nil
}

func (t *MemoryTransport) send(ctx context.Context, message core.Message) error {
	t.mu.Lock()
	t.nextID++
	message["id"] = strconv.Itoa(t.nextID)
	if t.clientID != "" {
		message["clientId"] = t.clientID
	}
	pipeline := t.opts.Pipeline
	t.mu.Unlock()

	headers := http.Header{}
	if err := pipeline.BeforeSend(ctx, []core.Message{message}, headers); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, message.Clone())
	t.headers = append(t.headers, headers)
	return nil
}

func (t *MemoryTransport) log(ctx context.Context, message string, args ...any) {
	if t.opts.Logger == nil {
		return
	}
	t.opts.Logger.WithContext(ctx).Debug(message, args...)
}

var _ core.Transport = (*MemoryTransport)(nil)
