package pgsql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, apperrors.ErrNotFound},
		{"serialization failure", &pgconn.PgError{Code: pgSerializationFailure}, apperrors.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: pgDeadlockDetected}, apperrors.ErrConflict},
		{"unique violation", &pgconn.PgError{Code: pgUniqueViolation}, apperrors.ErrDuplicate},
		{"check violation", &pgconn.PgError{Code: pgCheckViolation}, apperrors.ErrValidation},
		{"numeric overflow", &pgconn.PgError{Code: pgNumericOutOfRange, Message: "numeric field overflow"}, apperrors.ErrValidation},
		{"invalid numeric text", &pgconn.PgError{Code: pgInvalidTextRepr}, apperrors.ErrValidation},
		{"wrapped overflow", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgNumericOutOfRange}), apperrors.ErrValidation},
		{"already classified", fmt.Errorf("line 3: %w", apperrors.ErrInvalidFilter), apperrors.ErrInvalidFilter},
		{"cancelled", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyError("query failed", tt.err), tt.want)
		})
	}
}

func TestClassifyError_UnknownIsInternal(t *testing.T) {
	assert.NoError(t, classifyError("query failed", nil))

	err := classifyError("query failed", &pgconn.PgError{Code: "XX000"})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
}
