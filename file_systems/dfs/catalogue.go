package dfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/acornfs"
	"github.com/noxer/bytewriter"
)

// rawFileName is a file's entry in sector 0 of the catalogue.
type rawFileName struct {
	Name [MaxFileNameLength]byte
	// Directory is the directory tag in the low 7 bits, and the lock flag in
	// bit 7.
	Directory byte
}

type rawSector0 struct {
	TitleStart [8]byte
	Files      [MaxFiles]rawFileName
}

// rawFileInfo is a file's entry in sector 1 of the catalogue. The bits of the
// addresses, length, and start sector that don't fit in their own fields are
// packed together in ExtraBits.
type rawFileInfo struct {
	LoadAddress    uint16
	ExecAddress    uint16
	Length         uint16
	ExtraBits      uint8
	StartSectorLow uint8
}

type rawSector1 struct {
	TitleEnd    [4]byte
	CycleNumber uint8
	// FileCount holds the number of files in its top five bits.
	FileCount uint8
	// Options holds the boot option and the top two bits of the sector count.
	Options        uint8
	SectorCountLow uint8
	Files          [MaxFiles]rawFileInfo
}

const lockedFlag = 0x80

func (entry *rawFileName) locked() bool {
	return entry.Directory&lockedFlag != 0
}

func (entry *rawFileName) directory() byte {
	return entry.Directory &^ lockedFlag
}

func (header *rawSector1) fileCount() uint8 {
	return fieldFileCount.get(header.FileCount)
}

func (header *rawSector1) totalSectors() uint {
	high := fieldSectorCountHigh.get(header.Options)
	return uint(high)<<8 | uint(header.SectorCountLow)
}

func (header *rawSector1) bootOption() acornfs.BootOption {
	return acornfs.BootOption(fieldBootOption.get(header.Options))
}

// trimName cuts a name read from the catalogue at the first NUL or space.
func trimName(raw []byte) string {
	end := bytes.IndexAny(raw, "\x00 ")
	if end < 0 {
		return string(raw)
	}
	return string(raw[:end])
}

// readRawCatalogue parses the two catalogue sectors without interpreting them.
func readRawCatalogue(sector0, sector1 []byte) (*rawSector0, *rawSector1, error) {
	if len(sector0) != SectorSize || len(sector1) != SectorSize {
		return nil, nil, acornfs.ErrNotADFSDisk.WithMessage(
			fmt.Sprintf(
				"catalogue sectors must be %d bytes, got %d and %d",
				SectorSize,
				len(sector0),
				len(sector1),
			),
		)
	}

	var raw0 rawSector0
	var raw1 rawSector1

	err := binary.Read(bytes.NewReader(sector0), binary.LittleEndian, &raw0)
	if err != nil {
		return nil, nil, acornfs.ErrFailed.Wrap(err)
	}
	err = binary.Read(bytes.NewReader(sector1), binary.LittleEndian, &raw1)
	if err != nil {
		return nil, nil, acornfs.ErrFailed.Wrap(err)
	}
	return &raw0, &raw1, nil
}

// writeRawCatalogue serializes the catalogue into the two sector buffers.
func writeRawCatalogue(raw0 *rawSector0, raw1 *rawSector1, sector0, sector1 []byte) error {
	err := binary.Write(bytewriter.New(sector0), binary.LittleEndian, raw0)
	if err != nil {
		return acornfs.ErrFailed.Wrap(err)
	}
	err = binary.Write(bytewriter.New(sector1), binary.LittleEndian, raw1)
	if err != nil {
		return acornfs.ErrFailed.Wrap(err)
	}
	return nil
}

// DecodeCatalogue interprets the two catalogue sectors of a disk.
func DecodeCatalogue(sector0, sector1 []byte) (*acornfs.Directory, error) {
	raw0, raw1, err := readRawCatalogue(sector0, sector1)
	if err != nil {
		return nil, err
	}

	totalSectors := raw1.totalSectors()
	if !IsValidSectorCount(totalSectors) {
		return nil, acornfs.ErrNotADFSDisk.WithMessage(
			fmt.Sprintf(
				"catalogue gives disk size as %d sectors; expected %d or %d",
				totalSectors,
				SectorsFortyTrack,
				SectorsEightyTrack,
			),
		)
	}

	fileCount := int(raw1.fileCount())
	if fileCount > MaxFiles {
		return nil, acornfs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("catalogue claims %d files; max is %d", fileCount, MaxFiles),
		)
	}

	directory := &acornfs.Directory{
		Name:         rawTitle(raw0, raw1),
		BootOption:   raw1.bootOption(),
		CycleNumber:  raw1.CycleNumber,
		TotalSectors: totalSectors,
		Files:        make([]acornfs.File, fileCount),
	}

	for i := 0; i < fileCount; i++ {
		directory.Files[i] = decodeFile(&raw0.Files[i], &raw1.Files[i])
	}
	return directory, nil
}

func decodeFile(name *rawFileName, info *rawFileInfo) acornfs.File {
	extra := info.ExtraBits
	return acornfs.File{
		Name:        trimName(name.Name[:]),
		Directory:   name.directory(),
		Locked:      name.locked(),
		LoadAddress: joinAddress(info.LoadAddress, fieldLoadAddressHigh.get(extra)),
		ExecAddress: joinAddress(info.ExecAddress, fieldExecAddressHigh.get(extra)),
		Length:      joinLength(info.Length, fieldLengthHigh.get(extra)),
		StartSector: joinStartSector(info.StartSectorLow, fieldStartSectorHigh.get(extra)),
	}
}

func encodeFile(file *acornfs.File) (rawFileName, rawFileInfo, error) {
	var name rawFileName
	var info rawFileInfo

	paddedName, err := PadFileName(file.Name)
	if err != nil {
		return name, info, err
	}
	err = validateDirectoryTag(file.Directory)
	if err != nil {
		return name, info, err
	}

	name.Name = paddedName
	name.Directory = file.Directory
	if file.Locked {
		name.Directory |= lockedFlag
	}

	var loadHigh, execHigh, lengthHigh, sectorHigh uint8
	info.LoadAddress, loadHigh = splitAddress(file.LoadAddress)
	info.ExecAddress, execHigh = splitAddress(file.ExecAddress)
	info.Length, lengthHigh = splitLength(file.Length)
	info.StartSectorLow, sectorHigh = splitStartSector(file.StartSector)

	extra := fieldLoadAddressHigh.set(0, loadHigh)
	extra = fieldExecAddressHigh.set(extra, execHigh)
	extra = fieldLengthHigh.set(extra, lengthHigh)
	info.ExtraBits = fieldStartSectorHigh.set(extra, sectorHigh)
	return name, info, nil
}

// EncodeCatalogue creates the two catalogue sectors for `directory`. Unused
// file entries are zeroed.
func EncodeCatalogue(directory *acornfs.Directory) ([]byte, []byte, error) {
	sector0 := make([]byte, SectorSize)
	sector1 := make([]byte, SectorSize)

	err := EncodeCatalogueInto(directory, sector0, sector1)
	if err != nil {
		return nil, nil, err
	}
	return sector0, sector1, nil
}

// EncodeCatalogueInto updates existing catalogue sectors in place so that they
// describe `directory`. Bits of the header that aren't part of the directory's
// fields and the entries after the last file are left as they were. The
// sectors are only modified if encoding succeeds.
//
// Files that already have an identical entry in the sectors keep their raw
// bytes and aren't validated again, so a disk written by another tool with an
// unusual name on it can still be modified. The same goes for the title.
func EncodeCatalogueInto(directory *acornfs.Directory, sector0, sector1 []byte) error {
	if len(directory.Files) > MaxFiles {
		return acornfs.ErrDiskFull.WithMessage(
			fmt.Sprintf("%d files given; a disk holds at most %d", len(directory.Files), MaxFiles),
		)
	}
	if !IsValidSectorCount(directory.TotalSectors) {
		return acornfs.ErrInvalidNumberOfSectors.WithMessage(
			fmt.Sprintf("%d is not a valid DFS disk size", directory.TotalSectors),
		)
	}
	if directory.BootOption > acornfs.BootExec {
		return acornfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid boot option %d", uint8(directory.BootOption)),
		)
	}

	raw0, raw1, err := readRawCatalogue(sector0, sector1)
	if err != nil {
		return err
	}

	if directory.Name != rawTitle(raw0, raw1) {
		title, err := PadDiskTitle(directory.Name)
		if err != nil {
			return err
		}
		copy(raw0.TitleStart[:], title[:8])
		copy(raw1.TitleEnd[:], title[8:])
	}

	existing := existingEntries(raw0, raw1)
	raw1.CycleNumber = directory.CycleNumber
	raw1.FileCount = fieldFileCount.set(raw1.FileCount, uint8(len(directory.Files)))
	raw1.Options = fieldBootOption.set(raw1.Options, uint8(directory.BootOption))
	raw1.Options = fieldSectorCountHigh.set(
		raw1.Options, uint8(directory.TotalSectors>>8))
	raw1.SectorCountLow = uint8(directory.TotalSectors)

	names := raw0.Files
	infos := raw1.Files
	for i := range directory.Files {
		file := directory.Files[i]
		if indexes := existing[file]; len(indexes) > 0 {
			raw0.Files[i] = names[indexes[0]]
			raw1.Files[i] = infos[indexes[0]]
			existing[file] = indexes[1:]
			continue
		}

		raw0.Files[i], raw1.Files[i], err = encodeFile(&file)
		if err != nil {
			return err
		}
	}

	return writeRawCatalogue(raw0, raw1, sector0, sector1)
}

func rawTitle(raw0 *rawSector0, raw1 *rawSector1) string {
	title := make([]byte, 0, MaxDiskNameLength)
	title = append(title, raw0.TitleStart[:]...)
	title = append(title, raw1.TitleEnd[:]...)
	return trimName(title)
}

// existingEntries maps each file in the raw catalogue to the indexes of the
// entries that decode to it.
func existingEntries(raw0 *rawSector0, raw1 *rawSector1) map[acornfs.File][]int {
	count := int(raw1.fileCount())
	if count > MaxFiles {
		count = MaxFiles
	}

	entries := make(map[acornfs.File][]int, count)
	for i := 0; i < count; i++ {
		file := decodeFile(&raw0.Files[i], &raw1.Files[i])
		entries[file] = append(entries[file], i)
	}
	return entries
}

// NextCycleNumber gives the cycle number a catalogue gets after being
// rewritten. Cycle numbers are two-digit BCD values, so they run 0x00-0x99 and
// then wrap around.
func NextCycleNumber(current uint8) uint8 {
	next := current + 1
	if next&0x0f == 0x0a {
		next += 6
	}
	if next >= 0xa0 {
		next = 0
	}
	return next
}
