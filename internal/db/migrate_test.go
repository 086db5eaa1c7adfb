package db

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"010_payments.sql": {Data: []byte("CREATE TABLE payments ();")},
		"002_users.sql":    {Data: []byte("CREATE TABLE users ();")},
		"README.md":        {Data: []byte("docs")},
		"seed.sql":         {Data: []byte("INSERT")},
		"abc_bad.sql":      {Data: []byte("SELECT 1;")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "002_users.sql", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestEmbeddedSchema(t *testing.T) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	require.NoError(t, err)

	migrations, err := LoadMigrations(sub)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	schema := migrations[0].SQL
	assert.True(t, strings.Contains(schema, "appointments_active_slot_uniq"))
	assert.True(t, strings.Contains(schema, "WHERE status <> 'Cancelled'"))
	assert.True(t, strings.Contains(schema, "appointment_number_seq"))
}
