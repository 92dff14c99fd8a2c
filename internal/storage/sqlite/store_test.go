package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrelay/internal/storage"
	"alertrelay/pkg/models"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	st, err := Open(context.Background(), Config{Path: path})
	require.NoError(t, err)
	return st
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t, filepath.Join(t.TempDir(), "relay.db"))
	defer st.Close()

	var id models.DeviceIdentity
	require.ErrorIs(t, st.Load(ctx, storage.KeyIdentity, &id), storage.ErrNotFound)

	require.NoError(t, st.Save(ctx, storage.KeyIdentity, models.DeviceIdentity{AndroidID: "first"}))
	require.NoError(t, st.Save(ctx, storage.KeyIdentity, models.DeviceIdentity{AndroidID: "second"}))
	require.NoError(t, st.Load(ctx, storage.KeyIdentity, &id))
	assert.Equal(t, "second", id.AndroidID)

	require.NoError(t, st.Delete(ctx, storage.KeyIdentity))
	assert.ErrorIs(t, st.Load(ctx, storage.KeyIdentity, &id), storage.ErrNotFound)
}

func TestReopenKeepsRecordsAndSkipsAppliedMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "relay.db")

	st := openTestStore(t, path)
	require.NoError(t, st.Save(ctx, storage.KeyCredential, models.Credential{Token: "tok", Auth: "au"}))
	require.NoError(t, st.Close())

	st = openTestStore(t, path)
	defer st.Close()

	var cred models.Credential
	require.NoError(t, st.Load(ctx, storage.KeyCredential, &cred))
	assert.Equal(t, "tok", cred.Token)

	var n int
	require.NoError(t, st.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations;").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("0007_add_index.sql")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = parseVersion("abc_init.sql")
	assert.Error(t, err)
}
