package txmanager

import (
	"github.com/code-payments/wallet-server/pkg/config"
	"github.com/code-payments/wallet-server/pkg/config/env"
	"github.com/code-payments/wallet-server/pkg/config/memory"
	"github.com/code-payments/wallet-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TX_MANAGER_"

	ValidBlockHeightThresholdConfigEnvName = envConfigPrefix + "VALID_BLOCK_HEIGHT_THRESHOLD"
	defaultValidBlockHeightThreshold       = 150

	LockStripesConfigEnvName = envConfigPrefix + "LOCK_STRIPES"
	defaultLockStripes       = 1024
)

type conf struct {
	validBlockHeightThreshold config.Uint64
	lockStripes               config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			validBlockHeightThreshold: env.NewUint64Config(ValidBlockHeightThresholdConfigEnvName, defaultValidBlockHeightThreshold),
			lockStripes:               env.NewUint64Config(LockStripesConfigEnvName, defaultLockStripes),
		}
	}
}

// WithDefaults returns the default configuration
func WithDefaults() ConfigProvider {
	return func() *conf {
		return &conf{
			validBlockHeightThreshold: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultValidBlockHeightThreshold)), defaultValidBlockHeightThreshold),
			lockStripes:               wrapper.NewUint64Config(memory.NewConfig(uint64(defaultLockStripes)), defaultLockStripes),
		}
	}
}
