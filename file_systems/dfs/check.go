package dfs

import (
	"fmt"

	"github.com/dargueta/acornfs"
	"github.com/hashicorp/go-multierror"
)

// Check verifies that the catalogue is consistent with itself and the image.
// It returns nil if no problems were found. Otherwise the error matches
// [acornfs.ErrFileSystemCorrupted] and describes every problem found.
//
// Errors reading the catalogue itself are returned as-is.
func (driver *Driver) Check() error {
	directory, err := driver.ReadCatalogue()
	if err != nil {
		return err
	}

	extent, err := driver.image.Extent()
	if err != nil {
		return acornfs.ErrFailed.Wrap(err)
	}

	problems := CheckDirectory(directory, extent)
	if problems != nil {
		driver.logger.Warn("catalogue has problems", "error", problems)
		return acornfs.ErrFileSystemCorrupted.Wrap(problems)
	}
	return nil
}

// CheckDirectory finds problems in a decoded catalogue of an image that's
// `extent` bytes long. It returns a [multierror.Error] with one error per
// problem, or nil if there are none.
func CheckDirectory(directory *acornfs.Directory, extent int64) error {
	var problems *multierror.Error

	expectedSize := int64(directory.TotalSectors) * SectorSize
	if extent < expectedSize {
		problems = multierror.Append(
			problems,
			fmt.Errorf(
				"image is %d bytes; catalogue says the disk is %d bytes",
				extent,
				expectedSize,
			),
		)
	}

	sectors := NewSectorMap(directory.TotalSectors)
	seen := make(map[string]int, len(directory.Files))

	for i := range directory.Files {
		file := &directory.Files[i]
		displayName := DisplayName(file)

		err := ValidateEntry(file)
		if err != nil {
			problems = multierror.Append(problems, fmt.Errorf("entry %d: %w", i, err))
		}

		previous, duplicate := seen[displayName]
		if duplicate {
			problems = multierror.Append(
				problems,
				fmt.Errorf("entry %d: %s is also entry %d", i, displayName, previous),
			)
		} else {
			seen[displayName] = i
		}

		end := int64(file.StartSector)*SectorSize + int64(file.Length)
		if end > extent {
			problems = multierror.Append(
				problems,
				fmt.Errorf(
					"%s: ends at byte %d, past the end of the %d-byte image",
					displayName,
					end,
					extent,
				),
			)
		}

		err = sectors.MarkFile(file)
		if err != nil {
			problems = multierror.Append(problems, err)
		}
	}

	return problems.ErrorOrNil()
}
