package sfstream

import (
	"fmt"

	"github.com/goliatone/go-sfstream/core"
	"github.com/goliatone/go-sfstream/replay"
	"github.com/goliatone/go-sfstream/transport"
)

type Client = core.Client
type Config = core.Config
type Option = core.Option
type Message = core.Message
type Credential = core.Credential
type Authenticator = core.Authenticator
type ReplayStore = core.ReplayStore
type ReplayMarker = core.ReplayMarker
type ReplayOption = core.ReplayOption
type StoragePolicy = core.StoragePolicy
type TransportFactory = core.TransportFactory

const (
	ReplayNewEvents        = core.ReplayNewEvents
	ReplayAllEvents        = core.ReplayAllEvents
	StoragePolicyAutomatic = core.StoragePolicyAutomatic
	StoragePolicyManual    = core.StoragePolicyManual
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithTransportFactory  = core.WithTransportFactory
	WithTransportKind     = core.WithTransportKind
	WithReplayStore       = core.WithReplayStore
	WithReplayFallback    = core.WithReplayFallback
	WithStoragePolicy     = core.WithStoragePolicy
	WithConnectionTimeout = core.WithConnectionTimeout
	WithMaxPendingCount   = core.WithMaxPendingCount
	WithAPIVersion        = core.WithAPIVersion
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// ReplayStoreFor resolves the replay argument accepted by New:
//
//   - nil: NEW_EVENTS for every subscription
//   - ReplayOption: that option for every subscription, nothing stored
//   - ReplayStore: used as-is
//   - replay.Storage: markers kept in the storage
//   - map[string]ReplayMarker: markers seeded from the map and kept in memory
func ReplayStoreFor(value any) (ReplayStore, error) {
	switch typed := value.(type) {
	case nil:
		return replay.NewConstantReplayID(core.ReplayNewEvents), nil
	case core.ReplayOption:
		if !typed.Valid() {
			return nil, core.NewBadInputError(fmt.Sprintf("sfstream: invalid replay option %d", int64(typed)))
		}
		return replay.NewConstantReplayID(typed), nil
	case core.ReplayStore:
		return typed, nil
	case replay.Storage:
		return replay.NewMappingStore(typed), nil
	case map[string]core.ReplayMarker:
		return replay.NewMappingStore(replay.NewMemoryStorage(typed)), nil
	default:
		return nil, core.NewBadInputError(fmt.Sprintf("sfstream: unsupported replay parameter type %T", value))
	}
}

// New builds a Client on the default transport registry. The transport is
// chosen by transport_kind (WithTransportKind or a config provider) unless
// WithTransportFactory supplies one.
func New(authenticator Authenticator, replayParam any, opts ...Option) (*Client, error) {
	return NewWithConfig(Config{}, authenticator, replayParam, opts...)
}

func NewWithConfig(cfg Config, authenticator Authenticator, replayParam any, opts ...Option) (*Client, error) {
	return NewWithRegistry(cfg, transport.NewDefaultRegistry(), authenticator, replayParam, opts...)
}

// NewWithRegistry looks up the transport factory for the resolved
// transport_kind in registry. Without a kind or a WithTransportFactory
// option the build fails with a bad input error.
func NewWithRegistry(cfg Config, registry *transport.Registry, authenticator Authenticator, replayParam any, opts ...Option) (*Client, error) {
	store, err := ReplayStoreFor(replayParam)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, core.NewBadInputError("sfstream: transport registry is required")
	}
	base := []Option{
		core.WithReplayStore(store),
		core.WithTransportLookup(registry.Factory),
	}
	return core.NewClientWithConfig(cfg, authenticator, append(base, opts...)...)
}
