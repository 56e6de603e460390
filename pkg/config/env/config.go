package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/code-payments/wallet-server/pkg/config"
	"github.com/code-payments/wallet-server/pkg/config/wrapper"
)

type conf struct {
	key string
}

// NewConfig returns a config sourced from the environment variable key. The
// variable is read on every Get.
func NewConfig(key string) config.Config {
	return &conf{key: strings.ToUpper(key)}
}

func (c *conf) Get(_ context.Context) (interface{}, error) {
	val, ok := os.LookupEnv(c.key)
	if !ok || len(val) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(val), nil
}

func (c *conf) Shutdown() {
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}

func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}
