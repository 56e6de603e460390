package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/wallet-server/pkg/config"
)

var errDeveloperInduced = errors.New("in memory config: developer induced error")

// Config is a mutable in memory config source for tests and overrides.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	err      error
	shutdown bool
}

// NewConfig returns a config holding value. A nil value means no value is set.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.err != nil:
		return nil, c.err
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

func (c *Config) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
}

func (c *Config) SetValue(value interface{}) {
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
}

func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceErrors makes subsequent Get calls fail until StopInducingErrors.
func (c *Config) InduceErrors() {
	c.mu.Lock()
	c.err = errDeveloperInduced
	c.mu.Unlock()
}

func (c *Config) StopInducingErrors() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}
