package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Extension observes and may mutate every message crossing the transport.
type Extension interface {
	BeforeSend(ctx context.Context, messages []Message, headers http.Header) error
	AfterReceive(ctx context.Context, messages []Message, headers http.Header) error
}

// Authenticator obtains a credential and stamps it on outgoing requests.
type Authenticator interface {
	Extension
	Authenticate(ctx context.Context) error
	Credential() Credential
	InstanceURL() string
}

// ReplayStore keeps the per-subscription replay markers and injects them
// into outgoing subscribe messages.
type ReplayStore interface {
	Extension
	SetFallback(option ReplayOption)
	ExtractReplayID(ctx context.Context, message Message) error
	GetReplayID(ctx context.Context, subscription string) (int64, bool, error)
}

// Transport is the pub/sub session. Implementations run the configured
// Pipeline on every outgoing and incoming message and report failures with
// the transport error vocabulary declared in transport_errors.go.
type Transport interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Publish(ctx context.Context, channel string, data any) (Message, error)
	Receive(ctx context.Context) (Message, error)
}

type TransportOptions struct {
	URL               string
	Pipeline          Pipeline
	ConnectionTimeout time.Duration
	MaxPendingCount   int
	Logger            Logger
}

type TransportFactory func(ctx context.Context, opts TransportOptions) (Transport, error)

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
