package db

import (
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// placeholder renders the n-th positional SQL parameter ($1, $2, ...).
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// isNoRows reports whether the error is pgx's no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
