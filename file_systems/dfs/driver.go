package dfs

import (
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dargueta/acornfs"
	"github.com/dargueta/acornfs/errors"
	c "github.com/dargueta/acornfs/file_systems/common"
	"github.com/dargueta/acornfs/file_systems/common/basicstream"
	"github.com/dargueta/acornfs/file_systems/common/blockcache"
)

// Driver reads and modifies a DFS disk image. It keeps no state between calls;
// every operation reads the catalogue from the image again, so it's safe to
// modify the image by other means between calls.
type Driver struct {
	image  c.DiskImage
	logger *slog.Logger
}

var _ acornfs.Driver = (*Driver)(nil)

type Option func(driver *Driver)

// WithLogger makes the driver log to `logger`. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(driver *Driver) {
		driver.logger = logger
	}
}

func NewDriver(image c.DiskImage, options ...Option) *Driver {
	driver := &Driver{
		image:  image,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(driver)
	}
	return driver
}

// loadedCatalogue is a decoded catalogue along with the cache holding its raw
// sectors, so that it can be written back with only the changed bits modified.
type loadedCatalogue struct {
	cache     *blockcache.BlockCache
	sector0   []byte
	sector1   []byte
	directory *acornfs.Directory
}

func (driver *Driver) loadCatalogue() (*loadedCatalogue, error) {
	cache := blockcache.WrapImage(driver.image, 0, SectorSize, CatalogueSectors)
	sectors, err := cache.GetSlice(0, CatalogueSectors)
	if err != nil {
		return nil, acornfs.ErrNotADFSDisk.Wrap(err)
	}

	catalogue := &loadedCatalogue{
		cache:   cache,
		sector0: sectors[:SectorSize],
		sector1: sectors[SectorSize:],
	}
	catalogue.directory, err = DecodeCatalogue(catalogue.sector0, catalogue.sector1)
	if err != nil {
		driver.logger.Warn("failed to decode catalogue", "error", err)
		return nil, err
	}

	directory := catalogue.directory
	driver.logger.Debug(
		"read catalogue",
		"title", directory.Name,
		"boot_option", directory.BootOption.String(),
		"cycle", fmt.Sprintf("%02x", directory.CycleNumber),
		"sectors", directory.TotalSectors,
		"files", len(directory.Files),
	)
	for i := range directory.Files {
		file := &directory.Files[i]
		driver.logger.Debug(
			"catalogue entry",
			"index", i,
			"name", DisplayName(file),
			"locked", file.Locked,
			"load", fmt.Sprintf("%08x", file.LoadAddress),
			"exec", fmt.Sprintf("%08x", file.ExecAddress),
			"length", file.Length,
			"start_sector", file.StartSector,
		)
	}
	return catalogue, nil
}

// save advances the cycle number and writes the catalogue back to the image.
// Sector 0 is written before sector 1.
func (driver *Driver) save(catalogue *loadedCatalogue) error {
	directory := catalogue.directory
	directory.CycleNumber = NextCycleNumber(directory.CycleNumber)

	err := EncodeCatalogueInto(directory, catalogue.sector0, catalogue.sector1)
	if err != nil {
		return err
	}

	err = catalogue.cache.MarkBlockRangeDirty(0, CatalogueSectors)
	if err != nil {
		return acornfs.ErrFailed.Wrap(err)
	}
	err = catalogue.cache.Flush()
	if err != nil {
		return acornfs.ErrFailed.Wrap(err)
	}

	driver.logger.Debug(
		"wrote catalogue",
		"cycle", fmt.Sprintf("%02x", directory.CycleNumber),
		"files", len(directory.Files),
	)
	return nil
}

// ReadCatalogue reads and decodes the disk's catalogue.
func (driver *Driver) ReadCatalogue() (*acornfs.Directory, error) {
	catalogue, err := driver.loadCatalogue()
	if err != nil {
		return nil, err
	}
	return catalogue.directory, nil
}

// Format creates an empty DFS file system on the image, overwriting anything
// already there. If the image can be resized it's resized to exactly
// `totalSectors` sectors, otherwise it must already be at least that big.
//
// All the data sectors are written before the catalogue.
func (driver *Driver) Format(totalSectors uint, title string) error {
	if !IsValidSectorCount(totalSectors) {
		return acornfs.ErrInvalidNumberOfSectors.WithMessage(
			fmt.Sprintf(
				"can't format a disk with %d sectors; must be %d or %d",
				totalSectors,
				SectorsFortyTrack,
				SectorsEightyTrack,
			),
		)
	}

	directory := &acornfs.Directory{
		Name:         title,
		BootOption:   acornfs.BootNone,
		CycleNumber:  1,
		TotalSectors: totalSectors,
	}

	// Encode first so that an invalid title fails before the image is touched.
	catalogueData, sector1, err := EncodeCatalogue(directory)
	if err != nil {
		return err
	}
	catalogueData = append(catalogueData, sector1...)

	cache := blockcache.WrapImage(driver.image, 0, SectorSize, 0)
	err = cache.Resize(totalSectors)
	if err != nil {
		return acornfs.ErrFailed.Wrap(err)
	}

	_, err = cache.WriteAt(catalogueData, 0)
	if err != nil {
		return acornfs.ErrFailed.Wrap(err)
	}

	err = cache.FlushRange(CatalogueSectors, totalSectors-CatalogueSectors)
	if err == nil {
		err = cache.FlushRange(0, CatalogueSectors)
	}
	if err != nil {
		return acornfs.ErrFailed.Wrap(err)
	}

	driver.logger.Info("formatted disk", "title", title, "sectors", totalSectors)
	return nil
}

// Open returns a read-only stream over the contents of `file`.
func (driver *Driver) Open(file *acornfs.File) (*basicstream.BasicStream, error) {
	cache := blockcache.WrapImage(
		driver.image,
		c.LogicalBlock(file.StartSector),
		SectorSize,
		uint(SectorsForLength(file.Length)),
	)
	return basicstream.New(int64(file.Length), cache, acornfs.O_RDONLY)
}

// Extract copies the contents of `file` to `w`, one sector at a time.
func (driver *Driver) Extract(file *acornfs.File, w io.Writer) (int64, error) {
	extent, err := driver.image.Extent()
	if err != nil {
		return 0, acornfs.ErrFailed.Wrap(err)
	}

	end := int64(file.StartSector)*SectorSize + int64(file.Length)
	if end > extent {
		return 0, acornfs.ErrFailed.WithMessage(
			fmt.Sprintf(
				"%s ends at byte %d but the image is only %d bytes",
				DisplayName(file),
				end,
				extent,
			),
		)
	}

	stream, err := driver.Open(file)
	if err != nil {
		return 0, acornfs.ErrFailed.Wrap(err)
	}

	written, err := stream.WriteTo(w)
	if err != nil {
		return written, acornfs.ErrFailed.Wrap(err)
	}
	if written != int64(file.Length) {
		return written, acornfs.ErrFailed.WithMessage(
			fmt.Sprintf("extracted %d of %d bytes of %s", written, file.Length, DisplayName(file)),
		)
	}

	driver.logger.Debug("extracted file", "name", DisplayName(file), "bytes", written)
	return written, nil
}

// Find returns the index of the file with the given display name in the
// directory. Names are matched exactly.
func Find(directory *acornfs.Directory, displayName string) (int, error) {
	name, tag, err := SplitFileName(displayName)
	if err != nil {
		return -1, err
	}

	for i := range directory.Files {
		if directory.Files[i].Name == name && directory.Files[i].Directory == tag {
			return i, nil
		}
	}
	return -1, acornfs.ErrFileNotFound.WithMessage(displayName)
}

// hasEntry checks the raw catalogue for a file with the given name and
// directory tag. Names are compared the way they're decoded, so padding with
// spaces or NULs doesn't matter. The lock flag is ignored.
func (catalogue *loadedCatalogue) hasEntry(name string, tag byte) bool {
	const entrySize = MaxFileNameLength + 1

	for i := range catalogue.directory.Files {
		offset := 8 + i*entrySize
		entry := catalogue.sector0[offset : offset+entrySize]
		if trimName(entry[:MaxFileNameLength]) == name &&
			entry[MaxFileNameLength]&^lockedFlag == tag {
			return true
		}
	}
	return false
}

// Add writes a new file to the disk after the last file, and adds it to the
// catalogue. All of `data` is copied.
//
// The image isn't modified if the disk is full, the name is invalid, or a file
// with the same name already exists. The file's data is written before the
// catalogue, so if writing the data fails the old catalogue is still intact.
func (driver *Driver) Add(metadata acornfs.FileMetadata, data io.Reader) (*acornfs.File, error) {
	catalogue, err := driver.loadCatalogue()
	if err != nil {
		return nil, err
	}
	directory := catalogue.directory

	if len(directory.Files) >= MaxFiles {
		return nil, acornfs.ErrDiskFull.WithMessage(
			fmt.Sprintf("catalogue already has %d files", MaxFiles),
		)
	}

	name, tag, err := SplitFileName(metadata.Name)
	if err != nil {
		return nil, err
	}

	if catalogue.hasEntry(name, tag) {
		return nil, acornfs.ErrFileExists.WithMessage(metadata.Name)
	}

	appendSector := FindAppendSector(directory.Files)
	err = CheckCapacity(directory.TotalSectors, appendSector, 0)
	if err != nil {
		return nil, err
	}

	length, err := driver.writeFileData(directory.TotalSectors, appendSector, data)
	if err != nil {
		return nil, err
	}

	directory.Files = append(
		directory.Files,
		acornfs.File{
			Name:        name,
			Directory:   tag,
			Locked:      metadata.Locked,
			LoadAddress: metadata.LoadAddress,
			ExecAddress: metadata.ExecAddress,
			Length:      length,
			StartSector: appendSector,
		},
	)

	err = driver.save(catalogue)
	if err != nil {
		return nil, err
	}

	newFile := directory.Files[len(directory.Files)-1]
	driver.logger.Info(
		"added file",
		"name", DisplayName(&newFile),
		"length", newFile.Length,
		"start_sector", newFile.StartSector,
	)
	return &newFile, nil
}

// writeFileData copies `data` to the disk starting at `startSector` and
// returns the number of bytes written. Nothing is written to the image unless
// all of `data` fits on the disk.
func (driver *Driver) writeFileData(
	totalSectors uint, startSector uint32, data io.Reader,
) (uint32, error) {
	freeSectors := totalSectors - uint(startSector)
	cache := blockcache.WrapImage(
		driver.image, c.LogicalBlock(startSector), SectorSize, freeSectors)

	stream, err := basicstream.New(cache.Size(), cache, acornfs.O_WRONLY)
	if err != nil {
		return 0, acornfs.ErrFailed.Wrap(err)
	}

	length, err := stream.ReadFrom(data)
	if err != nil {
		if goerrors.Is(err, errors.ErrNoSpaceOnDevice) {
			return 0, acornfs.ErrDiskFull.WithMessage(
				fmt.Sprintf(
					"file is larger than the %d bytes free after sector %d",
					cache.Size(),
					startSector,
				),
			)
		}
		return 0, acornfs.ErrFailed.Wrap(err)
	}

	err = CheckCapacity(totalSectors, startSector, uint32(length))
	if err != nil {
		return 0, err
	}

	err = stream.Sync()
	if err != nil {
		return 0, acornfs.ErrFailed.Wrap(err)
	}
	return uint32(length), nil
}
