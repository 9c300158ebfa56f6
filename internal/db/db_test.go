package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUp_Idempotent(t *testing.T) {
	ctx := context.Background()

	database, err := OpenInMemory()
	require.NoError(t, err)
	defer database.Close()

	applied, err := database.MigrateUp(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), applied)

	applied, err = database.MigrateUp(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	version, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].version, version)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pulse.db")

	database, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer database.Close()

	assert.Equal(t, path, database.Path())
	assert.FileExists(t, path)
}
