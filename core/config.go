package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAPIVersion               = "45.0"
	DefaultCometDPath               = "cometd"
	DefaultConnectionTimeoutSeconds = 10
	DefaultMaxPendingCount          = 100
)

type Config struct {
	ServiceName string `koanf:"service_name" mapstructure:"service_name"`
	APIVersion  string `koanf:"api_version" mapstructure:"api_version"`
	CometDPath  string `koanf:"cometd_path" mapstructure:"cometd_path"`
	// ConnectionTimeoutSeconds bounds how long the transport may spend
	// re-establishing a failed connection.
	ConnectionTimeoutSeconds int `koanf:"connection_timeout_seconds" mapstructure:"connection_timeout_seconds"`
	// MaxPendingCount is the prefetch limit. Values <= 0 mean unbounded.
	MaxPendingCount int `koanf:"max_pending_count" mapstructure:"max_pending_count"`
	// ReplayFallback is 0 when no fallback is configured.
	ReplayFallback int64  `koanf:"replay_fallback" mapstructure:"replay_fallback"`
	StoragePolicy  string `koanf:"storage_policy" mapstructure:"storage_policy"`
	TransportKind  string `koanf:"transport_kind" mapstructure:"transport_kind"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:              "sfstream",
		APIVersion:               DefaultAPIVersion,
		CometDPath:               DefaultCometDPath,
		ConnectionTimeoutSeconds: DefaultConnectionTimeoutSeconds,
		MaxPendingCount:          DefaultMaxPendingCount,
		StoragePolicy:            string(StoragePolicyAutomatic),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		return fmt.Errorf("core: api_version is required")
	}
	if strings.Trim(strings.TrimSpace(c.CometDPath), "/") == "" {
		return fmt.Errorf("core: cometd_path is required")
	}
	if c.ConnectionTimeoutSeconds < 0 {
		return fmt.Errorf("core: connection_timeout_seconds must be >= 0")
	}
	if c.ReplayFallback != 0 && !ReplayOption(c.ReplayFallback).Valid() {
		return fmt.Errorf("core: invalid replay_fallback %d", c.ReplayFallback)
	}
	if _, err := ParseStoragePolicy(c.StoragePolicy); err != nil {
		return err
	}
	return nil
}

func (c Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutSeconds) * time.Second
}

// Fallback returns the configured replay fallback, if any.
func (c Config) Fallback() (ReplayOption, bool) {
	option := ReplayOption(c.ReplayFallback)
	if !option.Valid() {
		return 0, false
	}
	return option, true
}

func (c Config) Policy() StoragePolicy {
	policy, err := ParseStoragePolicy(c.StoragePolicy)
	if err != nil {
		return StoragePolicyAutomatic
	}
	return policy
}

// EndpointURL joins the instance URL with the CometD path and API version.
func (c Config) EndpointURL(instanceURL string) string {
	return strings.Join([]string{
		strings.TrimRight(strings.TrimSpace(instanceURL), "/"),
		strings.Trim(strings.TrimSpace(c.CometDPath), "/"),
		strings.TrimSpace(c.APIVersion),
	}, "/")
}
