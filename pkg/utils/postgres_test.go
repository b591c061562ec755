package utils

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("x")))
}

func TestJSONB(t *testing.T) {
	v, err := JSONB(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	var m map[string]any
	v, err = JSONB(m)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = JSONB(map[string]any{"tipo": "pedido"})
	require.NoError(t, err)
	assert.Equal(t, `{"tipo":"pedido"}`, v)
}

func TestScanJSONB(t *testing.T) {
	var out map[string]any
	require.NoError(t, ScanJSONB(nil, &out))
	assert.Nil(t, out)

	require.NoError(t, ScanJSONB([]byte(`{"a":1}`), &out))
	assert.Equal(t, float64(1), out["a"])
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, NullString("").Valid)
	assert.True(t, NullString("x").Valid)

	assert.False(t, NullTime(nil).Valid)
	now := time.Unix(1700000000, 0).UTC()
	nt := NullTime(&now)
	require.True(t, nt.Valid)
	assert.Equal(t, now, *TimePtr(nt))
	assert.Nil(t, TimePtr(sql.NullTime{}))
}

func TestPoolDefaults(t *testing.T) {
	p := PostgresPoolConfig{}.withDefaults()
	assert.Equal(t, 25, p.MaxOpenConns)
	assert.Equal(t, 25, p.MaxIdleConns)
	assert.Equal(t, 5*time.Second, p.PingTimeout)

	p = PostgresPoolConfig{MaxOpenConns: 8, ConnMaxLifetime: time.Minute}.withDefaults()
	assert.Equal(t, 8, p.MaxIdleConns)
	assert.Equal(t, time.Minute, p.ConnMaxLifetime)
}
