// Package imagefile provides [common.DiskImage] implementations backed by files
// on the host system or by arbitrary seekable streams.
package imagefile

import (
	"io"
	"os"

	"github.com/dargueta/acornfs/errors"
	c "github.com/dargueta/acornfs/file_systems/common"
)

// Mode determines how an image file is opened.
type Mode int

const (
	// ModeRead opens an existing image read-only.
	ModeRead Mode = iota
	// ModeCreate creates a new, empty image, destroying any existing file.
	ModeCreate
	// ModeUpdate opens an existing image for reading and writing.
	ModeUpdate
)

func (m Mode) osFlags() int {
	switch m {
	case ModeCreate:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC
	case ModeUpdate:
		return os.O_RDWR
	default:
		return os.O_RDONLY
	}
}

// ImageFile is a disk image stored in a file on the host.
type ImageFile struct {
	file *os.File
	mode Mode
	// extent is the cached size of the file, or -1 if it hasn't been determined
	// yet.
	extent int64
}

var _ c.ResizableDiskImage = (*ImageFile)(nil)

// Open opens the image at `path`. If the file doesn't exist and `mode` isn't
// [ModeCreate], the error matches [errors.ErrNotFound].
func Open(path string, mode Mode) (*ImageFile, error) {
	file, err := os.OpenFile(path, mode.osFlags(), 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNotFound.Wrap(err)
		}
		if os.IsPermission(err) {
			return nil, errors.ErrNotPermitted.Wrap(err)
		}
		return nil, errors.ErrIOFailed.Wrap(err)
	}

	image := &ImageFile{file: file, mode: mode, extent: -1}
	if mode == ModeCreate {
		image.extent = 0
	}
	return image, nil
}

func (image *ImageFile) Mode() Mode {
	return image.mode
}

func (image *ImageFile) ReadAt(buffer []byte, offset int64) (int, error) {
	return image.file.ReadAt(buffer, offset)
}

func (image *ImageFile) WriteAt(buffer []byte, offset int64) (int, error) {
	if image.mode == ModeRead {
		return 0, errors.ErrNotPermitted.WithMessage("image was opened read-only")
	}

	n, err := image.file.WriteAt(buffer, offset)
	if image.extent >= 0 && offset+int64(n) > image.extent {
		image.extent = offset + int64(n)
	}
	return n, err
}

// Extent returns the size of the image file. It's computed once and cached.
func (image *ImageFile) Extent() (int64, error) {
	if image.extent >= 0 {
		return image.extent, nil
	}

	info, err := image.file.Stat()
	if err != nil {
		return 0, errors.ErrIOFailed.Wrap(err)
	}
	image.extent = info.Size()
	return image.extent, nil
}

func (image *ImageFile) Truncate(size int64) error {
	if image.mode == ModeRead {
		return errors.ErrNotPermitted.WithMessage("image was opened read-only")
	}

	err := image.file.Truncate(size)
	if err != nil {
		image.extent = -1
		return errors.ErrIOFailed.Wrap(err)
	}
	image.extent = size
	return nil
}

func (image *ImageFile) Close() error {
	return image.file.Close()
}

////////////////////////////////////////////////////////////////////////////////

// StreamImage adapts an [io.ReadWriteSeeker] to a [common.DiskImage]. Every
// read and write seeks to its offset first, so nothing depends on where the
// stream pointer was left by a previous call.
type StreamImage struct {
	stream io.ReadWriteSeeker
}

var _ c.ResizableDiskImage = (*StreamImage)(nil)

func WrapStream(stream io.ReadWriteSeeker) *StreamImage {
	return &StreamImage{stream: stream}
}

func (image *StreamImage) ReadAt(buffer []byte, offset int64) (int, error) {
	_, err := image.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return 0, err
	}

	n, err := io.ReadFull(image.stream, buffer)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (image *StreamImage) WriteAt(buffer []byte, offset int64) (int, error) {
	_, err := image.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return 0, err
	}

	n, err := image.stream.Write(buffer)
	if err == nil && n < len(buffer) {
		err = io.ErrShortWrite
	}
	return n, err
}

func (image *StreamImage) Extent() (int64, error) {
	return image.stream.Seek(0, io.SeekEnd)
}

// Truncate resizes the stream if it supports [common.Truncator], and fails
// with [errors.ErrNotSupported] otherwise.
func (image *StreamImage) Truncate(size int64) error {
	truncator, ok := image.stream.(c.Truncator)
	if !ok {
		return errors.ErrNotSupported.WithMessage("image stream can't be resized")
	}
	return truncator.Truncate(size)
}

// Close closes the underlying stream if it implements [io.Closer].
func (image *StreamImage) Close() error {
	closer, ok := image.stream.(io.Closer)
	if ok {
		return closer.Close()
	}
	return nil
}
