package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoValue indicates no value was set for the config
	ErrNoValue = errors.New("config: no value set")

	// ErrShutdown indicates the use of a Config after calling Shutdown
	ErrShutdown = errors.New("config: shutdown")
)

// Config is a source of raw configuration values.
type Config interface {
	// Get returns the latest raw value, or ErrNoValue if none is set.
	Get(ctx context.Context) (interface{}, error)

	Shutdown()
}

// Value is a typed view over a Config source that falls back to a default.
type Value[T any] interface {
	// Get returns the current value, or the last known good value when the
	// source fails.
	Get(ctx context.Context) T

	GetSafe(ctx context.Context) (T, error)

	Shutdown()
}

type (
	Bool     = Value[bool]
	Duration = Value[time.Duration]
	String   = Value[string]
	Uint64   = Value[uint64]
)
