package acornfs

import "github.com/dargueta/acornfs/errors"

// DriverError is the error type returned by every operation in this module.
type DriverError = errors.DriverError

// Errors specific to Acorn DFS images. Each carries the errno code closest to
// its meaning so callers that only understand POSIX codes still get something
// sensible.
var (
	ErrNotADFSDisk            = errors.NewWithMessage(errors.EMEDIUMTYPE, "Not an Acorn DFS disk")
	ErrInvalidNumberOfSectors = errors.NewWithMessage(errors.EINVAL, "Invalid number of sectors")
	ErrInvalidFileName        = errors.NewWithMessage(errors.EINVAL, "Invalid file name")
	ErrInvalidDiskTitle       = errors.NewWithMessage(errors.ENAMETOOLONG, "Invalid disk title")
	ErrDiskFull               = errors.NewWithMessage(errors.ENOSPC, "Disk full")
	ErrFileExists             = errors.NewWithMessage(errors.EEXIST, "File exists")
	ErrFileNotFound           = errors.NewWithMessage(errors.ENOENT, "File not found")
	ErrFileLocked             = errors.NewWithMessage(errors.EPERM, "File locked")
	ErrFileSystemCorrupted    = errors.NewWithMessage(errors.EUCLEAN, "Catalogue is corrupted")
	ErrFailed                 = errors.NewWithMessage(errors.EIO, "Disk image I/O failed")
	ErrInvalidArgument        = errors.ErrInvalidArgument
)
