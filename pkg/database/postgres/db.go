package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/wallet-server/pkg/retry"
	"github.com/code-payments/wallet-server/pkg/retry/backoff"
)

const maxSerializationRetries = 5

// ExecuteRetryable runs fn, retrying a bounded number of times while it fails
// with a serialization failure.
func ExecuteRetryable(ctx context.Context, fn func() error) error {
	_, err := retry.Retry(
		fn,
		retry.Limit(maxSerializationRetries),
		retry.Context(ctx),
		func(_ uint, err error) bool {
			return IsSerializationFailure(err)
		},
		retry.BackoffWithJitter(backoff.BinaryExponential(10*time.Millisecond), 250*time.Millisecond, 0.1),
	)
	return err
}

// ExecuteInTx runs fn within a new DB transaction at the provided isolation
// level, committing if fn succeeds and rolling back otherwise.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted // Postgres default
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: isolation,
	})
	if err != nil {
		return errors.Wrap(err, "error beginning tx")
	}

	if err := fn(tx); err != nil {
		// Rollback is required so sql.DB releases the connection.
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(err, "rollback also failed: %v", rollbackErr)
		}
		return err
	}

	return tx.Commit()
}
