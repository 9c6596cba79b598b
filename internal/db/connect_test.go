package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	ctx := context.Background()
	dbh, err := Open(ctx, DriverSQLite, "file:connect_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer dbh.Close()

	_, err = dbh.Exec(`INSERT INTO kv (key, value, updated_at) VALUES ($1,$2,$3)`, "k", `"v"`, 1)
	require.NoError(t, err)
	_, err = dbh.Exec(`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`, "T", "k", "{}", 1)
	require.NoError(t, err)

	// idempotent
	require.NoError(t, ensureSchema(ctx, dbh, DriverSQLite))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Driver("mongo"), "")
	require.Error(t, err)
}
