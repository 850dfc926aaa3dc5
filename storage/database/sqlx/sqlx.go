// Package sqlxrepos implements the repositories on PostgreSQL with sqlx & squirrel.
package sqlxrepos

import (
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02" // e.g. a malformed uuid
	operatorIntervention      = "57"    // class: admin shutdown, crash shutdown, ...
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// trapNoRowsErr maps psql "no rows" err to notFound. A database going down becomes a shutdown error.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == invalidTextRepresentation:
			return notFound
		case pqErr.Code.Class() == operatorIntervention:
			return core.NewShutdownError(msg + ": " + pqErr.Message)
		}
	}
	return errors.Wrap(err, msg)
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

// prefixed qualifies cols with a table alias, aliasing them "<alias>.<col>" for sqlx nested struct scans.
func prefixed(alias string, cols []string) []string {
	res := make([]string, 0, len(cols))
	for _, c := range cols {
		res = append(res, alias+"."+c+` AS "`+alias+"."+c+`"`)
	}
	return res
}
