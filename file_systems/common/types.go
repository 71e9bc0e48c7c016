// Package common contains definitions of fundamental types and functions used
// across multiple parts of the file system implementation.
package common

import "io"

type LogicalBlock uint

// Truncator is an interface for objects that support a Truncate() method. This
// method must behave just like [os.File.Truncate].
type Truncator interface {
	Truncate(size int64) error
}

// DiskImage is the storage the file system lives on. All offsets are absolute
// byte positions from the beginning of the image; implementations must not
// rely on any cursor state between calls.
type DiskImage interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Extent returns the current size of the image, in bytes.
	Extent() (int64, error)
}

// ResizableDiskImage is a [DiskImage] whose size can be changed.
type ResizableDiskImage interface {
	DiskImage
	Truncator
}
