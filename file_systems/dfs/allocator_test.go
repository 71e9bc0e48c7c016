package dfs_test

import (
	"testing"

	"github.com/dargueta/acornfs"
	"github.com/dargueta/acornfs/file_systems/dfs"
	"github.com/stretchr/testify/assert"
)

func TestFindAppendSector__Empty(t *testing.T) {
	assert.EqualValues(t, 2, dfs.FindAppendSector(nil))
}

func TestFindAppendSector__SingleFile(t *testing.T) {
	files := []acornfs.File{{Name: "A", StartSector: 2, Length: 300}}
	assert.EqualValues(t, 4, dfs.FindAppendSector(files))
}

func TestFindAppendSector__UsesHighestStartSector(t *testing.T) {
	files := []acornfs.File{
		{Name: "BIG", StartSector: 2, Length: 10000},
		{Name: "LAST", StartSector: 100, Length: 10},
		{Name: "MIDDLE", StartSector: 50, Length: 256 * 100},
	}
	assert.EqualValues(t, 101, dfs.FindAppendSector(files))
}

func TestFindAppendSector__TieGoesToFirst(t *testing.T) {
	files := []acornfs.File{
		{Name: "A", StartSector: 10, Length: 600},
		{Name: "B", StartSector: 10, Length: 5000},
	}
	assert.EqualValues(t, 13, dfs.FindAppendSector(files))
}

func TestFindAppendSector__ExactMultipleOverAllocates(t *testing.T) {
	files := []acornfs.File{{Name: "A", StartSector: 2, Length: 512}}
	assert.EqualValues(t, 5, dfs.FindAppendSector(files))

	files[0].Length = 0
	assert.EqualValues(t, 3, dfs.FindAppendSector(files))
}

func TestCheckCapacity(t *testing.T) {
	tests := []struct {
		Name         string
		AppendSector uint32
		Length       uint32
		Fits         bool
	}{
		{"empty_file_at_end", 400, 0, true},
		{"past_end", 401, 0, false},
		{"fills_disk", 2, 398 * 256, true},
		{"one_byte_over", 2, 398*256 + 1, false},
		{"last_sector", 399, 256, true},
		{"last_sector_over", 399, 257, false},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			err := dfs.CheckCapacity(dfs.SectorsFortyTrack, test.AppendSector, test.Length)
			if test.Fits {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, acornfs.ErrDiskFull)
			}
		})
	}
}

func TestFreeSectors(t *testing.T) {
	directory := &acornfs.Directory{TotalSectors: dfs.SectorsFortyTrack}
	assert.EqualValues(t, 398, dfs.FreeSectors(directory))

	directory.Files = []acornfs.File{{Name: "A", StartSector: 390, Length: 256 * 10}}
	assert.EqualValues(t, 0, dfs.FreeSectors(directory))
}

func TestSectorMap__CatalogueReserved(t *testing.T) {
	sectors := dfs.NewSectorMap(dfs.SectorsFortyTrack)
	assert.True(t, sectors.IsUsed(0))
	assert.True(t, sectors.IsUsed(1))
	assert.False(t, sectors.IsUsed(2))
	assert.False(t, sectors.IsUsed(dfs.SectorsFortyTrack), "sector past end reported used")
	assert.EqualValues(t, 2, sectors.UsedSectors())
}

func TestSectorMap__MarkFile(t *testing.T) {
	sectors := dfs.NewSectorMap(dfs.SectorsFortyTrack)

	err := sectors.MarkFile(&acornfs.File{Name: "A", Directory: '$', StartSector: 2, Length: 513})
	assert.NoError(t, err)
	assert.EqualValues(t, 5, sectors.UsedSectors())
	assert.True(t, sectors.IsUsed(4))
	assert.False(t, sectors.IsUsed(5))

	err = sectors.MarkFile(&acornfs.File{Name: "B", Directory: '$', StartSector: 4, Length: 10})
	assert.ErrorIs(t, err, acornfs.ErrFileSystemCorrupted, "overlap not detected")

	err = sectors.MarkFile(&acornfs.File{Name: "C", Directory: '$', StartSector: 0, Length: 1})
	assert.ErrorIs(t, err, acornfs.ErrFileSystemCorrupted, "catalogue overlap not detected")
}

func TestSectorMap__PastEnd(t *testing.T) {
	sectors := dfs.NewSectorMap(dfs.SectorsFortyTrack)

	err := sectors.MarkFile(&acornfs.File{Name: "A", Directory: '$', StartSector: 398, Length: 1000})
	assert.ErrorIs(t, err, acornfs.ErrFileSystemCorrupted)
	assert.True(t, sectors.IsUsed(399), "sectors inside the disk should still be marked")
	assert.EqualValues(t, 4, sectors.UsedSectors())
}
