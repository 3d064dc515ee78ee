package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"eventreg/pkg/platform/sentinel"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantConflict bool
	}{
		{"serialization failure", &pgconn.PgError{Code: codeSerializationFailure}, true},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, true},
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation}, true},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			assert.Equal(t, tt.wantConflict, errors.Is(got, sentinel.ErrConflict))
			assert.ErrorIs(t, got, tt.err)
			assert.False(t, errors.Is(got, sentinel.ErrUnavailable))
		})
	}
}
