package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type clientBuilder struct {
	runtimeConfig    Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	transportFactory TransportFactory
	transportLookup  TransportLookup
	replayStore      ReplayStore
	now              func() time.Time
}

type Option func(*clientBuilder)

// TransportLookup returns the factory registered for a transport kind.
type TransportLookup func(kind string) (TransportFactory, error)

func WithLogger(logger Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *clientBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *clientBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *clientBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *clientBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTransportFactory(factory TransportFactory) Option {
	return func(b *clientBuilder) {
		b.transportFactory = factory
	}
}

// WithTransportLookup resolves the transport factory from the resolved
// transport_kind. WithTransportFactory takes precedence.
func WithTransportLookup(lookup TransportLookup) Option {
	return func(b *clientBuilder) {
		b.transportLookup = lookup
	}
}

func WithTransportKind(kind string) Option {
	return func(b *clientBuilder) {
		b.runtimeConfig.TransportKind = kind
	}
}

func WithReplayStore(store ReplayStore) Option {
	return func(b *clientBuilder) {
		b.replayStore = store
	}
}

// WithReplayFallback sets the option used to retry a subscribe rejected
// with a 400 because the stored replay id fell outside the retention window.
func WithReplayFallback(option ReplayOption) Option {
	return func(b *clientBuilder) {
		b.runtimeConfig.ReplayFallback = int64(option)
	}
}

func WithStoragePolicy(policy StoragePolicy) Option {
	return func(b *clientBuilder) {
		b.runtimeConfig.StoragePolicy = string(policy)
	}
}

func WithConnectionTimeout(timeout time.Duration) Option {
	return func(b *clientBuilder) {
		seconds := int(timeout / time.Second)
		if timeout%time.Second != 0 {
			seconds++
		}
		b.runtimeConfig.ConnectionTimeoutSeconds = seconds
	}
}

func WithMaxPendingCount(count int) Option {
	return func(b *clientBuilder) {
		b.runtimeConfig.MaxPendingCount = count
	}
}

func WithAPIVersion(version string) Option {
	return func(b *clientBuilder) {
		b.runtimeConfig.APIVersion = version
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *clientBuilder) {
		b.now = now
	}
}

func defaultClientBuilder(runtime Config) clientBuilder {
	loggerProvider, logger := glog.Resolve("sfstream", nil, nil)
	return clientBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now:             time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return streamErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader serves a fixed raw map, typically decoded from a
// file or the environment by the caller.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = value
		}
	}
	setString("service_name", cfg.ServiceName)
	setString("api_version", cfg.APIVersion)
	setString("cometd_path", cfg.CometDPath)
	setString("storage_policy", cfg.StoragePolicy)
	setString("transport_kind", cfg.TransportKind)
	if includeZero || cfg.ConnectionTimeoutSeconds != 0 {
		layer["connection_timeout_seconds"] = cfg.ConnectionTimeoutSeconds
	}
	if includeZero || cfg.MaxPendingCount != 0 {
		layer["max_pending_count"] = cfg.MaxPendingCount
	}
	if includeZero || cfg.ReplayFallback != 0 {
		layer["replay_fallback"] = cfg.ReplayFallback
	}
	return layer
}
