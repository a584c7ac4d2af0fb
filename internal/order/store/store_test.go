package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	shortCode := &pgconn.PgError{Code: "23505", ConstraintName: "orders_short_code_key"}
	idem := &pgconn.PgError{Code: "23505", ConstraintName: "order_idempotency_pkey"}

	assert.True(t, isUniqueViolation(shortCode, "short_code"))
	assert.False(t, isUniqueViolation(shortCode, "idempotency"))
	assert.True(t, isUniqueViolation(idem, "idempotency"))

	notUnique := &pgconn.PgError{Code: "23503", ConstraintName: "order_items_order_id_fkey"}
	assert.False(t, isUniqueViolation(notUnique, "order"))

	assert.False(t, isUniqueViolation(errors.New("connection refused"), "short_code"))
	assert.False(t, isUniqueViolation(nil, "short_code"))
}
