package pg

import (
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
)

// CheckNoRows maps sql.ErrNoRows to notFound and passes other errors through.
func CheckNoRows(err, notFound error) error {
	if IsNoRows(err) {
		return notFound
	}
	return err
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsSerializationFailure reports whether a serializable transaction lost a
// conflict and can be retried.
func IsSerializationFailure(err error) bool {
	return errorCode(err) == pgerrcode.SerializationFailure
}

func errorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
