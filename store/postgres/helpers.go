package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isNoRows reports whether err means the query matched nothing. Both
// sentinels are checked: pgx wraps sql.ErrNoRows since v5.7, but callers
// may also surface pgx.ErrNoRows directly.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey reports whether err is a unique_violation (SQLSTATE 23505),
// used to map duplicate job IDs to courier.ErrJobAlreadyExists.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
