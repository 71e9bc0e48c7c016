package acornfs

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// BootOption is the action the BBC Micro takes on the !BOOT file when the disk
// is booted with SHIFT+BREAK.
type BootOption uint8

const (
	BootNone BootOption = iota
	BootLoad
	BootRun
	BootExec
)

var bootOptionNames = [...]string{"None", "Load", "Run", "Exec"}

func (o BootOption) String() string {
	if int(o) < len(bootOptionNames) {
		return bootOptionNames[o]
	}
	return fmt.Sprintf("BootOption(%d)", uint8(o))
}

// ParseBootOption accepts either the name of a boot option (case-insensitive)
// or its numeric value, 0-3.
func ParseBootOption(value string) (BootOption, error) {
	for i, name := range bootOptionNames {
		if strings.EqualFold(name, value) {
			return BootOption(i), nil
		}
	}

	numeric, err := strconv.ParseUint(value, 10, 8)
	if err != nil || numeric >= uint64(len(bootOptionNames)) {
		return BootNone, ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q is not a boot option; expected 0-3 or one of %v", value, bootOptionNames),
		)
	}
	return BootOption(numeric), nil
}

// File is a single entry in a DFS catalogue.
type File struct {
	// Name is the file name without the directory tag or trailing padding.
	Name string
	// Directory is the one-character directory tag. The default directory is '$'.
	Directory byte
	Locked    bool

	// LoadAddress and ExecAddress are 18-bit values. If both of the top two
	// bits are set the address refers to the I/O processor and the value is
	// sign-extended, e.g. 0xFFFF1900.
	LoadAddress uint32
	ExecAddress uint32
	Length      uint32
	StartSector uint32
}

// Directory is the decoded catalogue of a disk.
type Directory struct {
	// Name is the disk title, at most 12 characters.
	Name        string
	BootOption  BootOption
	CycleNumber uint8
	// TotalSectors is the size of the disk as recorded in the catalogue. It's
	// always 400 or 800.
	TotalSectors uint
	// Files are given in catalogue order, which is not necessarily sorted.
	Files []File
}

// FileMetadata is what a caller provides when adding a file to a disk.
type FileMetadata struct {
	// Name is the display name, e.g. "LOADER" or "DATA.B".
	Name        string
	LoadAddress uint32
	ExecAddress uint32
	Locked      bool
}

// FileUpdate describes changes to an existing file's attributes. Nil fields
// are left unchanged.
type FileUpdate struct {
	LoadAddress *uint32
	ExecAddress *uint32
	Locked      *bool
}

// ReadingDriver is the interface for drivers that can read a catalogue and the
// files it describes.
type ReadingDriver interface {
	ReadCatalogue() (*Directory, error)
	ReadDir() ([]os.FileInfo, error)
	// Extract writes the contents of `file` to `w`, returning the number of
	// bytes written.
	Extract(file *File, w io.Writer) (int64, error)
}

// WritingDriver is the interface for drivers supporting write operations.
type WritingDriver interface {
	Format(totalSectors uint, title string) error
	Add(metadata FileMetadata, data io.Reader) (*File, error)
	Remove(name string) error
	Update(name string, update FileUpdate) (*File, error)
	SetBootOption(option BootOption) error
	SetTitle(title string) error
}

// Driver is the interface for drivers implementing all driver capabilities.
type Driver interface {
	ReadingDriver
	WritingDriver

	// Check verifies the consistency of the catalogue against the image,
	// returning every problem found.
	Check() error
}
