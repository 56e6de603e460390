package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application section of the config file. Applications decode
// it into their own struct with mapstructure.
type Config map[string]interface{}

// BaseConfig is the process level configuration. Every key may also be set
// through the upper-cased environment variable of the same name.
type BaseConfig struct {
	AppName  string `mapstructure:"app_name"`
	LogLevel string `mapstructure:"log_level"`

	DebugListenAddress  string        `mapstructure:"debug_listen_address"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
	EnablePprof         bool          `mapstructure:"enable_pprof"`
	EnableExpvar        bool          `mapstructure:"enable_expvar"`

	// BallastCapacity is a fraction of total memory, capped at 0.5.
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// The process exits on this cron schedule so the supervisor can restart
	// it with a fresh heap.
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel:               "info",
	DebugListenAddress:     ":8123",
	ShutdownGracePeriod:    30 * time.Second,
	EnablePprof:            true,
	EnableExpvar:           true,
	BallastCapacity:        0.333,
	MemoryLeakCronSchedule: "0 5 * * *",
}

var envBoundKeys = []string{
	"app_name",
	"log_level",
	"debug_listen_address",
	"shutdown_grace_period",
	"enable_pprof",
	"enable_expvar",
	"enable_ballast",
	"ballast_capacity",
	"enable_memory_leak_cron",
	"memory_leak_cron_schedule",
	"new_relic_license_key",
}

func init() {
	for _, key := range envBoundKeys {
		_ = viper.BindEnv(key, strings.ToUpper(key))
	}
}
