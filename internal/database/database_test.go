package database

import (
	"path/filepath"
	"testing"

	"github.com/orbitpath/planner/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SqliteInMemory(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(""))
	t.Cleanup(func() { _ = m.Close() })

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.Setup())

	for _, mdl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(mdl), "%T", mdl)
	}
}

func TestGetSqliteDBStandalone_IsolatedInMemory(t *testing.T) {
	a, err := GetSqliteDBStandalone("")
	require.NoError(t, err)
	b, err := GetSqliteDBStandalone("")
	require.NoError(t, err)

	require.NoError(t, Migrate(a))
	require.NoError(t, a.Create(&model.Mission{ID: "m1", Name: "one"}).Error)

	assert.False(t, b.Migrator().HasTable(&model.Mission{}))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDBStandalone("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.Mission{ID: "m1", Name: "dumped"}).Error)

	path := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	// second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := GetSqliteDBStandalone(path)
	require.NoError(t, err)

	var got model.Mission
	require.NoError(t, disk.First(&got, "id = ?", "m1").Error)
	assert.Equal(t, "dumped", got.Name)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := GetSqliteDBStandalone("")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestManager_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.ErrorIs(t, m.Setup(), ErrNotConnected)
	assert.ErrorIs(t, m.DumpMemoryToDisk(), ErrNotConnected)
	assert.NoError(t, m.Close())
}

func TestManager_DumpMemoryToDisk(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(""))
	require.NoError(t, m.Setup())

	m.SqliteFilePath = filepath.Join(t.TempDir(), "planner.db")
	require.NoError(t, m.DumpMemoryToDisk())
	assert.FileExists(t, m.SqliteFilePath)
}
