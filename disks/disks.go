// Package disks holds the predefined geometries of the floppy disks that DFS
// images can be created for.
package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

type DiskGeometry struct {
	Slug               string `csv:"slug"`
	Name               string `csv:"name"`
	FileSystem         string `csv:"file_system"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	// Tracks gives the number of data tracks per side.
	Tracks          uint   `csv:"tracks"`
	Sides           uint   `csv:"sides"`
	SectorsPerTrack uint   `csv:"sectors_per_track"`
	BytesPerSector  uint   `csv:"bytes_per_sector"`
	ImageExtension  string `csv:"image_extension"`
	Notes           string `csv:"notes"`
}

// TotalSectors gives the number of sectors on the whole disk.
func (g *DiskGeometry) TotalSectors() uint {
	return g.Tracks * g.Sides * g.SectorsPerTrack
}

// TotalSizeBytes gives the size of the storage device in bytes. This is the
// size of an image file of the disk.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	return int64(g.TotalSectors()) * int64(g.BytesPerSector)
}

////////////////////////////////////////////////////////////////////////////////

//go:embed disk-geometries.csv
var diskGeometriesRawCSV string
var diskGeometries map[string]DiskGeometry

// GetPredefinedDiskGeometry returns the geometry with the given slug, e.g.
// "acorn-dfs-80".
func GetPredefinedDiskGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}

	err := fmt.Errorf(
		"no predefined disk geometry exists with slug %q; valid slugs are: %s",
		slug,
		strings.Join(Slugs(), ", "),
	)
	return DiskGeometry{}, err
}

// Slugs returns the slugs of all predefined geometries in sorted order.
func Slugs() []string {
	slugs := make([]string, 0, len(diskGeometries))
	for slug := range diskGeometries {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// All returns every predefined geometry, sorted by slug.
func All() []DiskGeometry {
	geometries := make([]DiskGeometry, 0, len(diskGeometries))
	for _, slug := range Slugs() {
		geometries = append(geometries, diskGeometries[slug])
	}
	return geometries
}

func loadGeometries(rawCSV string) (map[string]DiskGeometry, error) {
	csvReader := csv.NewReader(strings.NewReader(rawCSV))
	csvReader.Comma = '|'

	var rows []DiskGeometry
	err := gocsv.UnmarshalCSV(csvReader, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to decode disk geometries: %w", err)
	}

	geometries := make(map[string]DiskGeometry, len(rows))
	for i, row := range rows {
		_, exists := geometries[row.Slug]
		if exists {
			return nil, fmt.Errorf(
				"duplicate definition for disk %q found on row %d", row.Slug, i+1)
		}
		geometries[row.Slug] = row
	}
	return geometries, nil
}

func init() {
	var err error
	diskGeometries, err = loadGeometries(diskGeometriesRawCSV)
	if err != nil {
		panic(err)
	}
}
