// Package basicstream implements a basic file-like abstraction around a
// block-oriented cache.

package basicstream

import (
	"fmt"
	"io"

	"github.com/dargueta/acornfs"
	"github.com/dargueta/acornfs/errors"
	c "github.com/dargueta/acornfs/file_systems/common"
	"github.com/dargueta/acornfs/file_systems/common/blockcache"
)

// BasicStream is a fixed-size, file-like wrapper around a BlockCache that
// emulates a subset of the functionality provided by an [os.File] instance.
type BasicStream struct {
	size     int64
	position int64
	data     *blockcache.BlockCache
	ioFlags  acornfs.IOFlags
}

var _ io.ReadWriteSeeker = (*BasicStream)(nil)
var _ io.ReaderAt = (*BasicStream)(nil)
var _ io.WriterAt = (*BasicStream)(nil)
var _ io.WriterTo = (*BasicStream)(nil)
var _ io.ReaderFrom = (*BasicStream)(nil)

// New creates a BasicStream on top of a block cache. The `size` argument gives
// the exact size of the stream, in bytes. It must be between 0 and
// `data.Size()` (inclusive). The size of the stream never changes.
//
// Read/write permissions in `flags` are enforced, e.g. attempting to write a
// stream created with [acornfs.O_RDONLY] fails with [errors.EPERM].
func New(
	size int64,
	data *blockcache.BlockCache,
	flags acornfs.IOFlags,
) (*BasicStream, error) {
	maxSize := data.Size()
	if size < 0 || size > maxSize {
		return nil, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid stream size: %d not in the range [0, %d]", size, maxSize),
		)
	}

	return &BasicStream{
		size:     size,
		position: 0,
		data:     data,
		ioFlags:  flags,
	}, nil
}

func (stream *BasicStream) convertLinearAddr(offset int64) (c.LogicalBlock, uint) {
	bytesPerBlock := int64(stream.data.BytesPerBlock())
	return c.LogicalBlock(offset / bytesPerBlock), uint(offset % bytesPerBlock)
}

// blockSpan gives the first block and the number of blocks covering the byte
// range [offset, offset + length). `length` must be positive.
func (stream *BasicStream) blockSpan(offset, length int64) (c.LogicalBlock, uint, uint) {
	firstBlock, firstBlockOffset := stream.convertLinearAddr(offset)
	lastBlock, _ := stream.convertLinearAddr(offset + length - 1)
	return firstBlock, uint(lastBlock-firstBlock) + 1, firstBlockOffset
}

// Close writes out all pending changes to the underlying storage. The stream
// should not be used for I/O operations after calling this method.
func (stream *BasicStream) Close() error {
	return stream.Sync()
}

func (stream *BasicStream) Read(buffer []byte) (int, error) {
	totalRead, err := stream.ReadAt(buffer, stream.position)
	stream.position += int64(totalRead)
	return totalRead, err
}

func (stream *BasicStream) ReadAt(buffer []byte, offset int64) (int, error) {
	if !stream.ioFlags.Read() {
		return 0, errors.ErrNotPermitted.WithMessage("stream is write-only")
	}
	if offset < 0 {
		return 0, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("negative read offset %d", offset),
		)
	}

	bufLen := int64(len(buffer))
	if offset >= stream.size {
		if bufLen == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	// Clamp the number of bytes to read to whichever is smaller; the length of
	// the buffer or the end of the file.
	numBytesToRead := bufLen
	if offset+bufLen > stream.size {
		numBytesToRead = stream.size - offset
	}
	if numBytesToRead == 0 {
		return 0, nil
	}

	firstBlock, blockCount, firstBlockOffset := stream.blockSpan(offset, numBytesToRead)
	sourceData, err := stream.data.GetSlice(firstBlock, blockCount)
	if err != nil {
		return 0, err
	}

	copy(buffer, sourceData[firstBlockOffset:firstBlockOffset+uint(numBytesToRead)])
	if numBytesToRead < bufLen {
		return int(numBytesToRead), io.EOF
	}
	return int(numBytesToRead), nil
}

// ReadFrom fills the stream from `r`, starting at the current position, until
// either `r` is exhausted or the stream is full. If the stream fills up and
// `r` still has data, the error matches [errors.ErrNoSpaceOnDevice].
func (stream *BasicStream) ReadFrom(r io.Reader) (int64, error) {
	if !stream.ioFlags.Write() {
		return 0, errors.ErrNotPermitted.WithMessage("stream is read-only")
	}

	buffer := make([]byte, stream.data.BytesPerBlock())
	totalBytesRead := int64(0)

	for {
		lastReadSize, readErr := r.Read(buffer)
		if lastReadSize > 0 {
			n, writeErr := stream.Write(buffer[:lastReadSize])
			totalBytesRead += int64(n)
			if writeErr != nil {
				return totalBytesRead, writeErr
			}
		}

		if readErr == io.EOF {
			return totalBytesRead, nil
		} else if readErr != nil {
			return totalBytesRead, readErr
		}
	}
}

// Seek resets the stream pointer to `offset` bytes from the origin specified in
// `whence`. It must be one of [io.SeekStart], [io.SeekCurrent], or [io.SeekEnd].
//
// Seeking past the end of the stream is allowed, but reads from there return
// no data and writes fail.
func (stream *BasicStream) Seek(offset int64, whence int) (int64, error) {
	var absoluteOffset int64

	switch whence {
	case io.SeekStart:
		absoluteOffset = offset
	case io.SeekCurrent:
		absoluteOffset = stream.position + offset
	case io.SeekEnd:
		absoluteOffset = stream.size + offset
	default:
		return stream.position, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid seek origin: %d", whence),
		)
	}

	if absoluteOffset < 0 {
		return stream.position, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("result of Seek(offset=%d, whence=%d) is negative", offset, whence),
		)
	}

	stream.position = absoluteOffset
	return absoluteOffset, nil
}

// Size returns the size of the stream, in bytes.
func (stream *BasicStream) Size() int64 {
	return stream.size
}

// Sync writes out all pending changes to the backing storage. After calling this,
// all loaded blocks will be marked clean.
func (stream *BasicStream) Sync() error {
	return stream.data.Flush()
}

// Tell returns the current stream position. It's a more concise way of calling
// `Seek(0, io.SeekCurrent)`.
func (stream *BasicStream) Tell() int64 {
	return stream.position
}

func (stream *BasicStream) Write(buffer []byte) (int, error) {
	totalWritten, err := stream.WriteAt(buffer, stream.position)
	stream.position += int64(totalWritten)
	return totalWritten, err
}

// WriteAt writes as much of `buffer` as fits between `offset` and the end of
// the stream. Changes stay in the cache until [BasicStream.Sync] is called.
func (stream *BasicStream) WriteAt(buffer []byte, offset int64) (int, error) {
	if !stream.ioFlags.Write() {
		return 0, errors.ErrNotPermitted.WithMessage("stream is read-only")
	}
	if offset < 0 {
		return 0, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("negative write offset %d", offset),
		)
	}

	bufLen := int64(len(buffer))
	if bufLen == 0 {
		return 0, nil
	}

	numBytesToWrite := bufLen
	if offset+bufLen > stream.size {
		numBytesToWrite = stream.size - offset
	}
	if numBytesToWrite <= 0 {
		return 0, errors.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf("can't write past end of %d-byte stream", stream.size),
		)
	}

	firstBlock, blockCount, firstBlockOffset := stream.blockSpan(offset, numBytesToWrite)
	targetSlice, err := stream.data.GetSlice(firstBlock, blockCount)
	if err != nil {
		return 0, err
	}

	copy(targetSlice[firstBlockOffset:], buffer[:numBytesToWrite])
	err = stream.data.MarkBlockRangeDirty(firstBlock, blockCount)
	if err != nil {
		return 0, err
	}

	if numBytesToWrite < bufLen {
		return int(numBytesToWrite), errors.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf(
				"stream is %d bytes; only %d of %d bytes written",
				stream.size,
				numBytesToWrite,
				bufLen,
			),
		)
	}
	return int(numBytesToWrite), nil
}

// WriteTo copies the stream from the current position to the end into `w`,
// one block at a time.
func (stream *BasicStream) WriteTo(w io.Writer) (int64, error) {
	buffer := make([]byte, stream.data.BytesPerBlock())
	totalWritten := int64(0)

	for {
		blockSize, readErr := stream.Read(buffer)

		// Always write out what we've read regardless of whether an error
		// occurred or not.
		if blockSize > 0 {
			n, writeErr := w.Write(buffer[:blockSize])
			totalWritten += int64(n)
			if writeErr != nil {
				return totalWritten, writeErr
			}
			if n < blockSize {
				return totalWritten, io.ErrShortWrite
			}
		}

		if readErr == io.EOF {
			return totalWritten, nil
		} else if readErr != nil {
			return totalWritten, readErr
		}
		if blockSize == 0 {
			return totalWritten, nil
		}
	}
}
