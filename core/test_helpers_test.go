package core

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type stubAuthenticator struct {
	mu          sync.Mutex
	calls       int
	err         error
	instanceURL string
	credential  Credential
	order       *[]string
}

func (a *stubAuthenticator) Authenticate(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.order != nil {
		*a.order = append(*a.order, "authenticate")
	}
	if a.err != nil {
		a.credential = Credential{}
		return a.err
	}
	a.credential = Credential{TokenType: "Bearer", AccessToken: "token", InstanceURL: a.instanceURL}
	return nil
}

func (a *stubAuthenticator) Credential() Credential {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.credential
}

func (a *stubAuthenticator) InstanceURL() string {
	return a.Credential().InstanceURL
}

func (a *stubAuthenticator) BeforeSend(_ context.Context, _ []Message, headers http.Header) error {
	credential := a.Credential()
	if !credential.Authorized() {
		return NewAuthenticationError("called without authenticating first", nil)
	}
	headers.Set("Authorization", credential.AuthorizationHeader())
	return nil
}

func (a *stubAuthenticator) AfterReceive(context.Context, []Message, http.Header) error {
	return nil
}

type stubReplayStore struct {
	mu        sync.Mutex
	fallbacks []ReplayOption
	pending   *ReplayOption
	extracted []Message
	attempts  int
	ids       map[string]int64
	err       error
}

func (s *stubReplayStore) BeforeSend(_ context.Context, messages []Message, _ http.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range messages {
		if message.Channel() != ChannelSubscribe {
			continue
		}
		subscription := message.Subscription()
		var id int64
		switch {
		case s.pending != nil:
			id = int64(*s.pending)
			s.pending = nil
		default:
			known, ok := s.ids[subscription]
			if !ok {
				continue
			}
			id = known
		}
		message.Ext(true)["replay"] = map[string]any{subscription: id}
	}
	return nil
}

func (s *stubReplayStore) AfterReceive(context.Context, []Message, http.Header) error {
	return nil
}

func (s *stubReplayStore) SetFallback(option ReplayOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbacks = append(s.fallbacks, option)
	s.pending = &option
}

func (s *stubReplayStore) ExtractReplayID(_ context.Context, message Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return s.err
	}
	s.extracted = append(s.extracted, message)
	return nil
}

func (s *stubReplayStore) GetReplayID(_ context.Context, subscription string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[subscription]
	return id, ok, nil
}

func (s *stubReplayStore) extractAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *stubReplayStore) extractedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.extracted)
}

// scriptedTransport records calls and replays canned results.
type scriptedTransport struct {
	mu             sync.Mutex
	opts           TransportOptions
	order          *[]string
	subscribeErrs  []error
	subscribed     []Message
	inbox          []Message
	receiveErr     error
	openErr        error
	closed         bool
	publishReplies Message
}

func (t *scriptedTransport) factory() TransportFactory {
	return func(_ context.Context, opts TransportOptions) (Transport, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.opts = opts
		return t, nil
	}
}

func (t *scriptedTransport) Open(ctx context.Context) error {
	if t.order != nil {
		*t.order = append(*t.order, "open")
	}
	if t.openErr != nil {
		return t.openErr
	}
	handshake := Message{"channel": ChannelHandshake}
	return t.opts.Pipeline.BeforeSend(ctx, []Message{handshake}, http.Header{})
}

func (t *scriptedTransport) Close(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *scriptedTransport) Subscribe(ctx context.Context, channel string) error {
	message := Message{"channel": ChannelSubscribe, "subscription": channel}
	if err := t.opts.Pipeline.BeforeSend(ctx, []Message{message}, http.Header{}); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribed = append(t.subscribed, message.Clone())
	if len(t.subscribeErrs) > 0 {
		err := t.subscribeErrs[0]
		t.subscribeErrs = t.subscribeErrs[1:]
		return err
	}
	return nil
}

func (t *scriptedTransport) Unsubscribe(context.Context, string) error {
	return nil
}

func (t *scriptedTransport) Publish(_ context.Context, channel string, _ any) (Message, error) {
	if t.publishReplies != nil {
		return t.publishReplies.Clone(), nil
	}
	return Message{"channel": channel, "successful": true}, nil
}

func (t *scriptedTransport) Receive(context.Context) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbox) > 0 {
		message := t.inbox[0]
		t.inbox = t.inbox[1:]
		return message, nil
	}
	if t.receiveErr != nil {
		return nil, t.receiveErr
	}
	if t.closed {
		return nil, ErrClientInvalidOperation
	}
	return nil, errors.New("scripted transport: inbox is empty")
}

func (t *scriptedTransport) subscribeMessages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.subscribed...)
}

func serverError(field string) *TransportServerError {
	return &TransportServerError{
		Message:  "Subscribe request failed.",
		Response: Message{"channel": ChannelSubscribe, "successful": false, "error": field},
	}
}
