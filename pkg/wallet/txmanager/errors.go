package txmanager

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidParams = errors.New("invalid parameters")
	ErrInternal      = errors.New("internal error")
	ErrNotFound      = errors.New("transaction not found")
	ErrNotRetriable  = errors.New("transaction is not retriable")
	ErrInvalidState  = errors.New("transaction is in an invalid state for this operation")
)

// ProviderError is returned when the chain RPC rejects or fails a request.
// The RPC error is forwarded as is.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return "provider error: " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Cause() error {
	return e.Err
}

func newProviderError(err error) error {
	return &ProviderError{Err: err}
}

// IsProviderError returns the ProviderError in err's chain, if any.
func IsProviderError(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}

func invalidParams(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidParams, format, args...)
}

func internal(err error, message string) error {
	return errors.Wrapf(ErrInternal, "%s: %v", message, err)
}
