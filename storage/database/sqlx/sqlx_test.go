package sqlxrepos

import (
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
)

func Test_trapNoRowsErr(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
		wantShutdown bool
	}{
		{name: "no rows", err: sql.ErrNoRows, wantNotFound: true},
		{name: "wrapped no rows", err: errors.Wrap(sql.ErrNoRows, "scanning"), wantNotFound: true},
		{name: "malformed uuid", err: &pq.Error{Code: invalidTextRepresentation}, wantNotFound: true},
		{name: "admin shutdown", err: &pq.Error{Code: "57P01", Message: "terminating connection due to administrator command"}, wantShutdown: true},
		{name: "unique violation", err: &pq.Error{Code: uniqueViolation}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := trapNoRowsErr(tt.err, batch.ErrNotFound, "getting batch")
			assert.Equal(t, tt.wantNotFound, err == batch.ErrNotFound)
			assert.Equal(t, tt.wantShutdown, core.IsShutdown(err))
		})
	}
}

func Test_prefixed(t *testing.T) {
	assert.Equal(t, []string{`b.id AS "b.id"`, `b.name AS "b.name"`}, prefixed("b", []string{"id", "name"}))
}
