package simplehash

import (
	"time"

	"github.com/code-payments/wallet-server/pkg/config"
	"github.com/code-payments/wallet-server/pkg/config/env"
	"github.com/code-payments/wallet-server/pkg/config/memory"
	"github.com/code-payments/wallet-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "SIMPLEHASH_CLIENT_"

	BaseUrlConfigEnvName = envConfigPrefix + "BASE_URL"
	defaultBaseUrl       = "https://simplehash.wallet.brave.com"

	MaxPagesConfigEnvName = envConfigPrefix + "MAX_PAGES"
	defaultMaxPages       = 100

	RequestsPerSecondConfigEnvName = envConfigPrefix + "REQUESTS_PER_SECOND"
	defaultRequestsPerSecond       = 10

	RequestTimeoutConfigEnvName = envConfigPrefix + "REQUEST_TIMEOUT"
	defaultRequestTimeout       = 15 * time.Second
)

type conf struct {
	baseUrl           config.String
	maxPages          config.Uint64
	requestsPerSecond config.Uint64
	requestTimeout    config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			baseUrl:           env.NewStringConfig(BaseUrlConfigEnvName, defaultBaseUrl),
			maxPages:          env.NewUint64Config(MaxPagesConfigEnvName, defaultMaxPages),
			requestsPerSecond: env.NewUint64Config(RequestsPerSecondConfigEnvName, defaultRequestsPerSecond),
			requestTimeout:    env.NewDurationConfig(RequestTimeoutConfigEnvName, defaultRequestTimeout),
		}
	}
}

// WithOverrides returns configuration with the provided base URL and page
// ceiling, and defaults for everything else. Zero values keep the default.
func WithOverrides(baseUrl string, maxPages uint64) ConfigProvider {
	if len(baseUrl) == 0 {
		baseUrl = defaultBaseUrl
	}
	if maxPages == 0 {
		maxPages = defaultMaxPages
	}

	return func() *conf {
		return &conf{
			baseUrl:           wrapper.NewStringConfig(memory.NewConfig(baseUrl), defaultBaseUrl),
			maxPages:          wrapper.NewUint64Config(memory.NewConfig(maxPages), defaultMaxPages),
			requestsPerSecond: wrapper.NewUint64Config(memory.NewConfig(uint64(1000)), defaultRequestsPerSecond),
			requestTimeout:    wrapper.NewDurationConfig(memory.NewConfig(defaultRequestTimeout), defaultRequestTimeout),
		}
	}
}
