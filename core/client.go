package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Client is the Streaming API session. It authenticates before opening the
// transport, injects replay ids into subscribe requests through the replay
// store, and stores the replay marker of received messages according to the
// configured storage policy.
type Client struct {
	id               string
	config           Config
	authenticator    Authenticator
	replayStore      ReplayStore
	transportFactory TransportFactory
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	now              func() time.Time

	mu            sync.Mutex
	transport     Transport
	subscriptions *SubscriptionManager
	url           string
	closed        bool
}

type ClientDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	TransportFactory TransportFactory
	ReplayStore      ReplayStore
	Authenticator    Authenticator
}

func NewClient(authenticator Authenticator, opts ...Option) (*Client, error) {
	return NewClientWithConfig(Config{}, authenticator, opts...)
}

func NewClientWithConfig(cfg Config, authenticator Authenticator, opts ...Option) (*Client, error) {
	builder := defaultClientBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("sfstream", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("sfstream"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = time.Now
	}

	if authenticator == nil {
		return nil, mapBuildError(builder.errorMapper, NewBadInputError("core: authenticator is required"))
	}
	if builder.replayStore == nil {
		return nil, mapBuildError(builder.errorMapper, NewBadInputError("core: replay store is required"))
	}
	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	factory, err := resolveTransportFactory(builder, finalConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	client := &Client{
		id:               uuid.NewString(),
		config:           finalConfig,
		authenticator:    authenticator,
		replayStore:      builder.replayStore,
		transportFactory: factory,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorMapper:      builder.errorMapper,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		now:              builder.now,
		closed:           true,
	}
	fallback, _ := finalConfig.Fallback()
	client.logWithLevel(context.Background(), "debug", "client created", map[string]any{
		"storage_policy":  string(finalConfig.Policy()),
		"replay_fallback": fallback.String(),
	})
	return client, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (c *Client) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

func (c *Client) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.config
}

func (c *Client) Authenticator() Authenticator {
	if c == nil {
		return nil
	}
	return c.authenticator
}

func (c *Client) ReplayStore() ReplayStore {
	if c == nil {
		return nil
	}
	return c.replayStore
}

func (c *Client) Dependencies() ClientDependencies {
	if c == nil {
		return ClientDependencies{}
	}
	return ClientDependencies{
		Logger:           c.logger,
		LoggerProvider:   c.loggerProvider,
		MetricsRecorder:  c.metricsRecorder,
		ErrorMapper:      c.errorMapper,
		ConfigProvider:   c.configProvider,
		OptionsResolver:  c.optionsResolver,
		TransportFactory: c.transportFactory,
		ReplayStore:      c.replayStore,
		Authenticator:    c.authenticator,
	}
}

func (c *Client) Closed() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// URL returns the streaming endpoint the client connected to.
func (c *Client) URL() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Open authenticates, derives the endpoint URL from the instance URL and
// opens a new transport session.
func (c *Client) Open(ctx context.Context) (err error) {
	if c == nil {
		return NewClientInvalidOperation("core: client is nil")
	}
	startedAt := c.now()
	fields := map[string]any{}
	defer func() {
		c.observeOperation(ctx, startedAt, "open", err, fields)
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		return c.mapError(NewClientInvalidOperation("core: client is already open"))
	}

	if err := c.authenticator.Authenticate(ctx); err != nil {
		return c.mapError(err)
	}
	instanceURL := c.authenticator.InstanceURL()
	c.logWithLevel(ctx, "info", "authenticated", map[string]any{
		"client_id":    c.id,
		"instance_url": instanceURL,
	})

	url := c.config.EndpointURL(instanceURL)
	fields["url"] = url
	transport, err := c.transportFactory(ctx, TransportOptions{
		URL:               url,
		Pipeline:          NewPipeline(c.replayStore, c.authenticator),
		ConnectionTimeout: c.config.ConnectionTimeout(),
		MaxPendingCount:   c.config.MaxPendingCount,
		Logger:            c.logger,
	})
	if err != nil {
		return c.mapError(err)
	}
	if err := transport.Open(ctx); err != nil {
		return c.mapError(err)
	}

	fallback, _ := c.config.Fallback()
	c.transport = transport
	c.subscriptions = NewSubscriptionManager(transport, c.replayStore, fallback, c.logger)
	c.url = url
	c.closed = false
	return nil
}

// Close ends the transport session. Closing a closed client is a no-op.
// Messages already received by the transport stay available to Receive.
func (c *Client) Close(ctx context.Context) (err error) {
	if c == nil {
		return nil
	}
	startedAt := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	defer func() {
		c.observeOperation(ctx, startedAt, "close", err, nil)
	}()
	c.closed = true
	if c.transport == nil {
		return nil
	}
	if err := c.transport.Close(ctx); err != nil {
		return c.mapError(err)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, channel string) (err error) {
	startedAt := c.now()
	defer func() {
		c.observeOperation(ctx, startedAt, "subscribe", err, map[string]any{"channel": channel})
	}()
	subscriptions, err := c.openSubscriptions("subscribe")
	if err != nil {
		return err
	}
	if err := subscriptions.Subscribe(ctx, channel); err != nil {
		return c.mapError(err)
	}
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, channel string) (err error) {
	startedAt := c.now()
	defer func() {
		c.observeOperation(ctx, startedAt, "unsubscribe", err, map[string]any{"channel": channel})
	}()
	subscriptions, err := c.openSubscriptions("unsubscribe")
	if err != nil {
		return err
	}
	if err := subscriptions.Unsubscribe(ctx, channel); err != nil {
		return c.mapError(err)
	}
	return nil
}

// Publish sends data to channel and returns the server response.
func (c *Client) Publish(ctx context.Context, channel string, data any) (response Message, err error) {
	startedAt := c.now()
	defer func() {
		c.observeOperation(ctx, startedAt, "publish", err, map[string]any{"channel": channel})
	}()
	c.mu.Lock()
	transport, closed := c.transport, c.closed
	c.mu.Unlock()
	if closed || transport == nil {
		return nil, c.mapError(NewClientInvalidOperation("core: can't publish while the client is closed"))
	}
	response, err = transport.Publish(ctx, channel, data)
	if err != nil {
		return nil, c.mapError(err)
	}
	return response, nil
}

// Receive waits for the next incoming message. Under the automatic storage
// policy the replay marker of the message is stored once it has left the
// transport queue. When storing fails the message is returned together with
// the replay error.
func (c *Client) Receive(ctx context.Context) (Message, error) {
	if c == nil {
		return nil, NewClientInvalidOperation("core: client is nil")
	}
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil {
		return nil, c.mapError(NewClientInvalidOperation("core: can't receive messages before the client is opened"))
	}

	message, err := transport.Receive(ctx)
	if err != nil {
		return nil, c.mapError(err)
	}
	if c.config.Policy() != StoragePolicyAutomatic {
		return message, nil
	}
	if err := c.replayStore.ExtractReplayID(ctx, message); err != nil {
		c.logWithLevel(ctx, "warn", "replay marker not stored", map[string]any{
			"client_id": c.id,
			"channel":   message.Channel(),
			"error":     err.Error(),
		})
		return message, c.mapError(err)
	}
	return message, nil
}

// CommitReplayMarker stores the replay marker of a consumed message. It is
// meant for the manual storage policy.
func (c *Client) CommitReplayMarker(ctx context.Context, message Message) error {
	if c == nil || c.replayStore == nil {
		return NewClientInvalidOperation("core: client is nil")
	}
	if err := c.replayStore.ExtractReplayID(ctx, message); err != nil {
		return c.mapError(err)
	}
	return nil
}

// Messages yields received messages until the client is closed and drained,
// or ctx is done. A replay error is yielded alongside its message and
// iteration continues.
func (c *Client) Messages(ctx context.Context) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for {
			message, err := c.Receive(ctx)
			if err != nil && IsClientInvalidOperation(err) {
				return
			}
			if !yield(message, err) {
				return
			}
			if err != nil && message == nil {
				return
			}
		}
	}
}

func (c *Client) openSubscriptions(operation string) (*SubscriptionManager, error) {
	if c == nil {
		return nil, NewClientInvalidOperation("core: client is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.subscriptions == nil {
		return nil, c.mapError(NewClientInvalidOperation("core: can't " + operation + " while the client is closed"))
	}
	return c.subscriptions, nil
}

func (c *Client) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	translated := TranslateTransportError(err)
	var richErr *goerrors.Error
	if goerrors.As(translated, &richErr) && isStreamTextCode(richErr.TextCode) {
		return translated
	}
	return mapBuildError(c.errorMapper, translated)
}

func resolveTransportFactory(builder clientBuilder, cfg Config) (TransportFactory, error) {
	if builder.transportFactory != nil {
		return builder.transportFactory, nil
	}
	if builder.transportLookup == nil {
		return nil, NewBadInputError("core: transport factory is required")
	}
	kind := strings.TrimSpace(cfg.TransportKind)
	if kind == "" {
		return nil, NewBadInputError("core: transport_kind is required")
	}
	factory, err := builder.transportLookup(kind)
	if err != nil {
		return nil, NewBadInputError(err.Error())
	}
	if factory == nil {
		return nil, NewBadInputError(fmt.Sprintf("core: no transport factory for kind %q", kind))
	}
	return factory, nil
}
