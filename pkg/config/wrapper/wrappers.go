package wrapper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/config"
)

// ErrUnsupportedConversion indicates the raw value's type cannot be converted
var ErrUnsupportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// Parser converts a raw value from a config.Config into T.
type Parser[T any] func(raw interface{}) (T, error)

type value[T any] struct {
	override     config.Config
	defaultValue T
	parse        Parser[T]

	stateMu   sync.RWMutex
	lastValue T
}

// New wraps override with a typed value. The default is used while the source
// has no value.
func New[T any](override config.Config, defaultValue T, parse Parser[T]) config.Value[T] {
	return &value[T]{
		override:     override,
		defaultValue: defaultValue,
		parse:        parse,
		lastValue:    defaultValue,
	}
}

func (v *value[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := v.override.Get(ctx)

	v.stateMu.RLock()
	lastValue := v.lastValue
	v.stateMu.RUnlock()

	if err == config.ErrNoValue {
		v.setLast(v.defaultValue)
		return v.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	parsed, err := v.parse(raw)
	if err != nil {
		return lastValue, err
	}

	v.setLast(parsed)
	return parsed, nil
}

func (v *value[T]) Get(ctx context.Context) T {
	val, _ := v.GetSafe(ctx)
	return val
}

func (v *value[T]) Shutdown() {
	v.override.Shutdown()
}

func (v *value[T]) setLast(val T) {
	v.stateMu.Lock()
	v.lastValue = val
	v.stateMu.Unlock()
}

func NewBoolConfig(override config.Config, defaultValue bool) config.Bool {
	return New(override, defaultValue, ParseBool)
}

func NewDurationConfig(override config.Config, defaultValue time.Duration) config.Duration {
	return New(override, defaultValue, ParseDuration)
}

func NewStringConfig(override config.Config, defaultValue string) config.String {
	return New(override, defaultValue, ParseString)
}

func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	return New(override, defaultValue, ParseUint64)
}

func ParseBool(raw interface{}) (bool, error) {
	switch raw := raw.(type) {
	case []byte:
		return strconv.ParseBool(string(raw))
	case string:
		return strconv.ParseBool(raw)
	case bool:
		return raw, nil
	}
	return false, ErrUnsupportedConversion
}

// ParseDuration accepts Go duration strings, or a bare integer number of
// seconds.
func ParseDuration(raw interface{}) (time.Duration, error) {
	var s string
	switch raw := raw.(type) {
	case time.Duration:
		return raw, nil
	case []byte:
		s = string(raw)
	case string:
		s = raw
	default:
		return 0, ErrUnsupportedConversion
	}

	if seconds, err := strconv.ParseUint(s, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func ParseString(raw interface{}) (string, error) {
	switch raw := raw.(type) {
	case []byte:
		return string(raw), nil
	case string:
		return raw, nil
	}
	return "", ErrUnsupportedConversion
}

func ParseUint64(raw interface{}) (uint64, error) {
	switch raw := raw.(type) {
	case []byte:
		return strconv.ParseUint(string(raw), 10, 64)
	case string:
		return strconv.ParseUint(raw, 10, 64)
	case uint64:
		return raw, nil
	case uint:
		return uint64(raw), nil
	case uint32:
		return uint64(raw), nil
	case int:
		if raw < 0 {
			return 0, errors.Errorf("negative value %d", raw)
		}
		return uint64(raw), nil
	}
	return 0, ErrUnsupportedConversion
}
