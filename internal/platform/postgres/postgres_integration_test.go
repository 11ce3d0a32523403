//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"refsync/internal/reconcile/store"
	"refsync/pkg/testutil/containers"
)

func TestOpen(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t, store.Schema)

	db, err := Open(context.Background(), pg.DSN)
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT 1").Scan(&one))
	require.Equal(t, 1, one)
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://nobody@127.0.0.1:1/none?connect_timeout=1")
	require.Error(t, err)
}
