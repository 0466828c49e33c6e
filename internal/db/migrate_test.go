package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	var all strings.Builder
	for _, e := range entries {
		data, err := fs.ReadFile(migrations, migrationsDir+"/"+e.Name())
		require.NoError(t, err)
		content := string(data)
		assert.Contains(t, content, "-- +goose Up", e.Name())
		assert.Contains(t, content, "-- +goose Down", e.Name())
		all.WriteString(content)
	}

	schema := all.String()
	assert.Contains(t, schema, "uq_scheduled_notifications_dedup")
	assert.Contains(t, schema, "WHERE status <> 'CANCELLED'")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS job_locks")
}
