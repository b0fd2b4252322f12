package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"spot-risk-engine/internal/storage"
)

func TestStoreError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, storage.ErrDuplicateKey},
		{"wrapped unique violation", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), storage.ErrDuplicateKey},
		{"no rows", pgx.ErrNoRows, storage.ErrNotFound},
		{"other driver error", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, storeError("op", tt.err), tt.want)
		})
	}

	assert.NoError(t, storeError("op", nil))
	assert.Contains(t, storeError("insert backtest run", other).Error(), "insert backtest run")
	assert.NotErrorIs(t, storeError("op", &pgconn.PgError{Code: "23503"}), storage.ErrDuplicateKey)
}
