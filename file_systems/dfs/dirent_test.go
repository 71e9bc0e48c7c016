package dfs_test

import (
	"io/fs"
	"testing"
	"time"

	"github.com/dargueta/acornfs"
	"github.com/dargueta/acornfs/file_systems/dfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDir(t *testing.T) {
	driver, _ := newFormattedDisk(t, dfs.SectorsFortyTrack, "")
	addFile(t, driver, "PLAIN", randomData(t, 123))
	addFile(t, driver, "TAGGED.T", randomData(t, 4567))

	locked := true
	_, err := driver.Update("TAGGED.T", acornfs.FileUpdate{Locked: &locked})
	require.NoError(t, err)

	entries, err := driver.ReadDir()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "PLAIN", entries[0].Name())
	assert.EqualValues(t, 123, entries[0].Size())
	assert.Equal(t, fs.FileMode(0o644), entries[0].Mode())
	assert.False(t, entries[0].IsDir())
	assert.Equal(t, time.Time{}, entries[0].ModTime())

	assert.Equal(t, "TAGGED.T", entries[1].Name())
	assert.EqualValues(t, 4567, entries[1].Size())
	assert.Equal(t, fs.FileMode(0o444), entries[1].Mode())

	file, ok := entries[1].Sys().(acornfs.File)
	require.True(t, ok, "Sys() should return an acornfs.File")
	assert.EqualValues(t, 'T', file.Directory)
	assert.True(t, file.Locked)
}

func TestReadDir__Empty(t *testing.T) {
	driver, _ := newFormattedDisk(t, dfs.SectorsFortyTrack, "")
	entries, err := driver.ReadDir()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
