// Package dfs implements the Acorn DFS file system used by the BBC Micro.
//
// A DFS disk has a single catalogue stored in its first two sectors. Sector 0
// holds the first half of the disk title and the file names, sector 1 holds
// the rest of the title, the disk parameters, and each file's addresses,
// length, and start sector. Files occupy contiguous runs of sectors after the
// catalogue.
package dfs

import (
	"fmt"

	"github.com/dargueta/acornfs"
)

const (
	SectorSize       = 256
	CatalogueSectors = 2
	SectorsPerTrack  = 10

	MaxFiles          = 31
	MaxDiskNameLength = 12
	MaxFileNameLength = 7

	// DefaultDirectory is the directory tag files get if none is given.
	DefaultDirectory = '$'

	SectorsFortyTrack  = 40 * SectorsPerTrack
	SectorsEightyTrack = 80 * SectorsPerTrack
)

// IsValidSectorCount reports whether a disk with `totalSectors` sectors can
// hold a DFS file system.
func IsValidSectorCount(totalSectors uint) bool {
	return totalSectors == SectorsFortyTrack || totalSectors == SectorsEightyTrack
}

// TracksToSectors converts a track count (40 or 80) to the total number of
// sectors on the disk.
func TracksToSectors(tracks uint) (uint, error) {
	sectors := tracks * SectorsPerTrack
	if !IsValidSectorCount(sectors) {
		return 0, acornfs.ErrInvalidNumberOfSectors.WithMessage(
			fmt.Sprintf("DFS disks have 40 or 80 tracks, not %d", tracks),
		)
	}
	return sectors, nil
}

// SectorsForLength gives the number of sectors a file of `length` bytes
// actually occupies.
func SectorsForLength(length uint32) uint32 {
	return (length + SectorSize - 1) / SectorSize
}
