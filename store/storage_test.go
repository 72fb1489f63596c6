package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finstack/types"
)

func TestMapStoreErrUndefinedTable(t *testing.T) {
	err := mapStoreErr(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})

	assert.True(t, errors.Is(err, types.ErrIndexUnavailable))
}

func TestMapStoreErrOtherSQLState(t *testing.T) {
	orig := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	err := mapStoreErr(orig)

	assert.False(t, errors.Is(err, types.ErrIndexUnavailable))
	assert.Equal(t, orig, err)
}

func TestMapStoreErrDialFailure(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	err := mapStoreErr(fmt.Errorf("query: %w", opErr))

	assert.True(t, errors.Is(err, types.ErrIndexUnavailable))
}

func TestMapStoreErrQueryTimeout(t *testing.T) {
	err := mapStoreErr(fmt.Errorf("query: %w", context.DeadlineExceeded))

	assert.True(t, errors.Is(err, types.ErrIndexUnavailable))
}

func TestMapStoreErrLeavesOtherErrorsAlone(t *testing.T) {
	orig := errors.New("scan failed")
	err := mapStoreErr(orig)

	require.Equal(t, orig, err)
	assert.False(t, errors.Is(err, types.ErrIndexUnavailable))
}

func TestMapStoreErrNil(t *testing.T) {
	assert.NoError(t, mapStoreErr(nil))
}
