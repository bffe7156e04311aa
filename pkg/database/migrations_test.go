package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644))
}

func TestLoadMigrationsSortsByVersion(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "010_add_index.sql", "CREATE INDEX i ON t(c);")
	writeMigration(t, dir, "002_seed.sql", "INSERT INTO t VALUES (1);")
	writeMigration(t, dir, "001_init.sql", "CREATE TABLE t (c INTEGER);")

	migrations, err := loadMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "init", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE t (c INTEGER);", migrations[0].SQL)
}

func TestLoadMigrationsRejectsStrayFiles(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_init.sql", "CREATE TABLE t (c INTEGER);")
	writeMigration(t, dir, "notes.txt", "not a migration")

	_, err := loadMigrations(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.txt")
}

func TestLoadMigrationsRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_init.sql", "CREATE TABLE t (c INTEGER);")
	writeMigration(t, dir, "1_also_init.sql", "CREATE TABLE u (c INTEGER);")

	_, err := loadMigrations(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 1")
}

func TestLoadMigrationsSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_init.sql", "CREATE TABLE t (c INTEGER);")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

	migrations, err := loadMigrations(dir)
	require.NoError(t, err)
	assert.Len(t, migrations, 1)
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	_, err := loadMigrations(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
