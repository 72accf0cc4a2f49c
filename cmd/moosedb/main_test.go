package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moosedb/moosedb/internal/app"
	"github.com/moosedb/moosedb/internal/config"
	"github.com/moosedb/moosedb/internal/schema"
)

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "moosedb dev")
}

func TestCollectionsEmptyThenListed(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "collections")
	require.NoError(t, err)
	assert.Contains(t, out, "No collections")

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	a, err := app.New(cfg, "test")
	require.NoError(t, err)
	require.NoError(t, a.Open(context.Background()))
	_, err = a.Builder().CreateCollection(context.Background(), "notes",
		[]schema.Field{{Title: "title", Type: schema.TypeText, Nullable: true}})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	out, err = run(t, dir, "collections")
	require.NoError(t, err)
	assert.Contains(t, out, "notes")
	assert.Contains(t, out, "moo_")

	out, err = run(t, dir, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog is consistent")
}

func TestAdminCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "create-admin", "--name", "Ops", "-e", "ops@moosedb.com", "-p", "pw", "--confirm", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "ops@moosedb.com created")

	_, err = run(t, dir, "create-admin", "--name", "Ops", "-e", "ops@moosedb.com", "-p", "pw", "--confirm", "pw")
	assert.Error(t, err)

	out, err = run(t, dir, "upsuper", "-e", "ops@moosedb.com", "-p", "n3w")
	require.NoError(t, err)
	assert.Contains(t, out, "Password updated")

	_, err = run(t, dir, "upsuper", "-e", "ghost@moosedb.com", "-p", "n3w")
	assert.Error(t, err)

	out, err = run(t, dir, "rotate-secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Secret rotated")
}

func TestBackupCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No snapshots")

	out, err = run(t, dir, "backup")
	require.NoError(t, err)
	assert.Contains(t, out, "Snapshot snapshots/moosedb-")

	out, err = run(t, dir, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, ".sqlite.snappy")

	assert.FileExists(t, filepath.Join(dir, "database.sqlite"))
}

func TestDataDirMovesDefaultBackupPath(t *testing.T) {
	c := &cli{dataDir: "/tmp/elsewhere"}
	cfg, err := c.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/elsewhere", "backups"), cfg.Backup.Path)
}
