package dfs

import (
	"os"
	"time"

	"github.com/dargueta/acornfs"
)

// DirectoryEntry exposes a catalogue entry as an [os.FileInfo].
type DirectoryEntry struct {
	file acornfs.File
}

var _ os.FileInfo = (*DirectoryEntry)(nil)

func NewDirectoryEntry(file acornfs.File) *DirectoryEntry {
	return &DirectoryEntry{file: file}
}

// Name returns the display name, including the directory tag unless it's the
// default directory.
func (d *DirectoryEntry) Name() string {
	return DisplayName(&d.file)
}

func (d *DirectoryEntry) Size() int64 {
	return int64(d.file.Length)
}

// Mode returns the permissions of the file. Locked files are read-only.
func (d *DirectoryEntry) Mode() os.FileMode {
	return acornfs.HostFileMode(d.file.Locked)
}

// ModTime returns the zero time. DFS doesn't store timestamps.
func (d *DirectoryEntry) ModTime() time.Time {
	return time.Time{}
}

func (d *DirectoryEntry) IsDir() bool {
	return false
}

// Sys returns a copy of the [acornfs.File] backing this directory entry.
func (d *DirectoryEntry) Sys() any {
	return d.file
}

// ReadDir returns the files on the disk in catalogue order.
func (driver *Driver) ReadDir() ([]os.FileInfo, error) {
	directory, err := driver.ReadCatalogue()
	if err != nil {
		return nil, err
	}

	entries := make([]os.FileInfo, len(directory.Files))
	for i, file := range directory.Files {
		entries[i] = NewDirectoryEntry(file)
	}
	return entries, nil
}
