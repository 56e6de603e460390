package blocktracker

import (
	"time"

	"github.com/code-payments/wallet-server/pkg/config"
	"github.com/code-payments/wallet-server/pkg/config/env"
	"github.com/code-payments/wallet-server/pkg/config/memory"
	"github.com/code-payments/wallet-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "BLOCK_TRACKER_"

	PollIntervalConfigEnvName = envConfigPrefix + "POLL_INTERVAL"
	defaultPollInterval       = 20 * time.Second

	CacheTTLConfigEnvName = envConfigPrefix + "CACHE_TTL"
	defaultCacheTTL       = 20 * time.Second

	RequestTimeoutConfigEnvName = envConfigPrefix + "REQUEST_TIMEOUT"
	defaultRequestTimeout       = 10 * time.Second
)

type conf struct {
	pollInterval   config.Duration
	cacheTTL       config.Duration
	requestTimeout config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			pollInterval:   env.NewDurationConfig(PollIntervalConfigEnvName, defaultPollInterval),
			cacheTTL:       env.NewDurationConfig(CacheTTLConfigEnvName, defaultCacheTTL),
			requestTimeout: env.NewDurationConfig(RequestTimeoutConfigEnvName, defaultRequestTimeout),
		}
	}
}

// WithIntervals returns configuration with the provided poll interval and
// cache ttl.
func WithIntervals(pollInterval, cacheTTL time.Duration) ConfigProvider {
	return func() *conf {
		return &conf{
			pollInterval:   wrapper.NewDurationConfig(memory.NewConfig(pollInterval), defaultPollInterval),
			cacheTTL:       wrapper.NewDurationConfig(memory.NewConfig(cacheTTL), defaultCacheTTL),
			requestTimeout: wrapper.NewDurationConfig(memory.NewConfig(defaultRequestTimeout), defaultRequestTimeout),
		}
	}
}
