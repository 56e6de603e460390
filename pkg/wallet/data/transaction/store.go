package transaction

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("no records could be found")
)

type Store interface {
	// Put inserts the record, or replaces the existing record with the same id.
	Put(ctx context.Context, record *Record) error

	// Get returns the record for the given id.
	//
	// ErrNotFound is returned if no record is found.
	Get(ctx context.Context, id string) (*Record, error)

	// GetAllByStatus returns every record in the given status, ordered by
	// creation time. A nil chainId matches all chains.
	//
	// An empty result is not an error.
	GetAllByStatus(ctx context.Context, chainId *string, status Status) ([]*Record, error)
}
