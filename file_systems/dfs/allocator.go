package dfs

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/acornfs"
	"github.com/hashicorp/go-multierror"
)

// FindAppendSector gives the sector a new file would be written to. DFS only
// ever allocates after the file with the highest start sector, so space freed
// by deleting files is never reused.
//
// The end of the last file is computed as start + length/256 + 1. For files
// whose length is a multiple of 256 this leaves one unused sector after the
// file. Existing images were written this way, so it's kept.
func FindAppendSector(files []acornfs.File) uint32 {
	if len(files) == 0 {
		return CatalogueSectors
	}

	last := &files[0]
	for i := 1; i < len(files); i++ {
		if files[i].StartSector > last.StartSector {
			last = &files[i]
		}
	}
	return last.StartSector + last.Length/SectorSize + 1
}

// CheckCapacity fails with [acornfs.ErrDiskFull] if a file of `length` bytes
// written at `appendSector` won't fit on a disk of `totalSectors` sectors.
func CheckCapacity(totalSectors uint, appendSector uint32, length uint32) error {
	if uint(appendSector) > totalSectors {
		return acornfs.ErrDiskFull.WithMessage(
			fmt.Sprintf(
				"next free sector %d is past the end of the %d-sector disk",
				appendSector,
				totalSectors,
			),
		)
	}

	available := uint64(totalSectors-uint(appendSector)) * SectorSize
	if available < uint64(length) {
		return acornfs.ErrDiskFull.WithMessage(
			fmt.Sprintf("file is %d bytes; only %d bytes are free", length, available),
		)
	}
	return nil
}

// FreeSectors gives the number of sectors after the last file. It doesn't
// count gaps left by deleted files since DFS can't allocate them.
func FreeSectors(directory *acornfs.Directory) uint {
	appendSector := uint(FindAppendSector(directory.Files))
	if appendSector >= directory.TotalSectors {
		return 0
	}
	return directory.TotalSectors - appendSector
}

////////////////////////////////////////////////////////////////////////////////

// SectorMap tracks which sectors of a disk are occupied by the catalogue or a
// file.
type SectorMap struct {
	used  bitmap.Bitmap
	total uint
}

// NewSectorMap creates a map of a disk with only the catalogue marked as used.
func NewSectorMap(totalSectors uint) *SectorMap {
	sectors := &SectorMap{
		used:  bitmap.New(int(totalSectors)),
		total: totalSectors,
	}
	for i := 0; i < CatalogueSectors && uint(i) < totalSectors; i++ {
		sectors.used.Set(i, true)
	}
	return sectors
}

// MarkFile marks the sectors occupied by `file` as used. It returns an error
// for every sector that's past the end of the disk or is already in use.
func (sectors *SectorMap) MarkFile(file *acornfs.File) error {
	var result error

	end := uint(file.StartSector) + uint(SectorsForLength(file.Length))
	if end > sectors.total {
		result = multierror.Append(
			result,
			acornfs.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf(
					"%s: sectors [%d, %d) extend past end of %d-sector disk",
					DisplayName(file),
					file.StartSector,
					end,
					sectors.total,
				),
			),
		)
		end = sectors.total
	}

	firstOverlap := -1
	for sector := uint(file.StartSector); sector < end; sector++ {
		if sectors.used.Get(int(sector)) {
			if firstOverlap < 0 {
				firstOverlap = int(sector)
			}
			continue
		}
		sectors.used.Set(int(sector), true)
	}

	if firstOverlap >= 0 {
		result = multierror.Append(
			result,
			acornfs.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf(
					"%s: sector %d is already used by the catalogue or another file",
					DisplayName(file),
					firstOverlap,
				),
			),
		)
	}
	return result
}

// IsUsed reports whether a sector is occupied.
func (sectors *SectorMap) IsUsed(sector uint) bool {
	if sector >= sectors.total {
		return false
	}
	return sectors.used.Get(int(sector))
}

// UsedSectors counts the occupied sectors.
func (sectors *SectorMap) UsedSectors() uint {
	count := uint(0)
	for i := 0; i < int(sectors.total); i++ {
		if sectors.used.Get(i) {
			count++
		}
	}
	return count
}
