// Package blockcache provides a block-oriented cache that gives a linear view
// of a run of blocks in a disk image.
//
// All block indices begin at 0, relative to the start of the cache rather than
// the start of the image.

package blockcache

import (
	goerrors "errors"
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/acornfs/errors"
	c "github.com/dargueta/acornfs/file_systems/common"
)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. The following guarantees
// apply:
//
// - `blockIndex` is in the range [0, TotalBlocks).
// - `buffer` is always BytesPerBlock bytes.
type FetchBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

// FlushBlockCallback is a pointer to a function that writes the contents of the
// given buffer to a block in the backing storage. All restrictions and
// guarantees in [FetchBlockCallback] apply here too.
type FlushBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

// ResizeCallback is a pointer to a function that is called to allocate or free
// blocks in the backing storage. It takes one argument, the new total number of
// blocks to occupy.
//
// The implementation of the callback can do anything so long as 1) it doesn't
// modify the data in the blocks; 2) at least the requested number of blocks are
// available once the function returns.
//
// Standard conditions for error codes:
//
//   - [errors.ENOSPC]: Can't increase the size of the object because there's no
//     space left on the volume.
//   - [errors.ENOTSUP]: The object can't be resized as a general rule.
type ResizeCallback func(newTotalBlocks c.LogicalBlock) error

type BlockCache struct {
	loadedBlocks  bitmap.Bitmap
	dirtyBlocks   bitmap.Bitmap
	fetch         FetchBlockCallback
	flush         FlushBlockCallback
	resize        ResizeCallback
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a new BlockCache.
//
// There are three callback functions:
//
//   - `fetchCb` reads a single block from the backing storage.
//   - `flushCb` writes a single block to the backing storage.
//   - `resizeCb` resizes the backing storage to a given number of blocks. If
//     nil is passed for this argument, a stub function is provided that always
//     returns an error with code [errors.ENOTSUP].
func New(
	bytesPerBlock uint,
	totalBlocks uint,
	fetchCb FetchBlockCallback,
	flushCb FlushBlockCallback,
	resizeCb ResizeCallback,
) *BlockCache {
	if resizeCb == nil {
		resizeCb = func(newTotalBlocks c.LogicalBlock) error {
			return errors.ErrNotSupported.WithMessage(
				fmt.Sprintf(
					"resizing is not supported; size fixed at %d bytes",
					bytesPerBlock*totalBlocks,
				),
			)
		}
	}

	return &BlockCache{
		loadedBlocks:  bitmap.NewSlice(int(totalBlocks)),
		dirtyBlocks:   bitmap.NewSlice(int(totalBlocks)),
		data:          make([]byte, int(bytesPerBlock*totalBlocks)),
		fetch:         fetchCb,
		flush:         flushCb,
		resize:        resizeCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
	}
}

// WrapImage creates a [BlockCache] over `totalBlocks` consecutive blocks of a
// disk image, beginning at block `firstBlock` of the image. Block 0 of the
// cache is block `firstBlock` of the image.
//
// Resizing the cache resizes the image to end exactly at the last block of the
// cache if the image supports [common.Truncator]. Otherwise, resizing succeeds
// only if the image is already big enough.
func WrapImage(
	image c.DiskImage,
	firstBlock c.LogicalBlock,
	bytesPerBlock uint,
	totalBlocks uint,
) *BlockCache {
	blockOffset := func(block c.LogicalBlock) int64 {
		return (int64(firstBlock) + int64(block)) * int64(bytesPerBlock)
	}

	fetchCb := func(block c.LogicalBlock, buffer []byte) error {
		n, err := image.ReadAt(buffer, blockOffset(block))
		if n == len(buffer) {
			return nil
		}
		if err == nil || goerrors.Is(err, io.EOF) {
			return errors.ErrIOFailed.WithMessage(
				fmt.Sprintf(
					"short read of block %d: got %d of %d bytes",
					uint(firstBlock)+uint(block),
					n,
					len(buffer),
				),
			)
		}
		return errors.ErrIOFailed.Wrap(err)
	}

	flushCb := func(block c.LogicalBlock, buffer []byte) error {
		n, err := image.WriteAt(buffer, blockOffset(block))
		if err != nil {
			return errors.ErrIOFailed.Wrap(err)
		}
		if n != len(buffer) {
			return errors.ErrIOFailed.WithMessage(
				fmt.Sprintf(
					"short write to block %d: wrote %d of %d bytes",
					uint(firstBlock)+uint(block),
					n,
					len(buffer),
				),
			)
		}
		return nil
	}

	resizeCb := func(newTotalBlocks c.LogicalBlock) error {
		requiredSize := blockOffset(newTotalBlocks)

		truncator, canTruncate := image.(c.Truncator)
		if canTruncate {
			err := truncator.Truncate(requiredSize)
			if err == nil || !goerrors.Is(err, errors.ErrNotSupported) {
				return err
			}
		}

		extent, err := image.Extent()
		if err != nil {
			return err
		}
		if extent < requiredSize {
			return errors.ErrNoSpaceOnDevice.WithMessage(
				fmt.Sprintf(
					"image is %d bytes and can't be resized to %d",
					extent,
					requiredSize,
				),
			)
		}
		return nil
	}

	return New(bytesPerBlock, totalBlocks, fetchCb, flushCb, resizeCb)
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *BlockCache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// TotalBlocks returns the size of the cache, in blocks. To change the size of
// the cache, use the Resize() function.
func (cache *BlockCache) TotalBlocks() uint {
	return cache.totalBlocks
}

// Size gives the size of the cache, in bytes (not blocks!).
func (cache *BlockCache) Size() int64 {
	return int64(cache.bytesPerBlock) * int64(cache.totalBlocks)
}

// LengthToNumBlocks gives the minimum number of blocks required to hold the
// given number of bytes.
func (cache *BlockCache) LengthToNumBlocks(size uint) uint {
	return (size + cache.bytesPerBlock - 1) / cache.bytesPerBlock
}

// checkBounds verifies that `bufferSize` bytes can be accessed in the cache
// starting from block `start`. If not, it returns an error describing the exact
// conditions. If no error would occur, this returns nil.
func (cache *BlockCache) checkBounds(start c.LogicalBlock, bufferSize uint) error {
	numBlocks := cache.LengthToNumBlocks(bufferSize)

	if uint(start) >= cache.totalBlocks || uint(start)+numBlocks > cache.totalBlocks {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"can't access %d bytes (%d blocks) from block %d; range not in [0, %d)",
				bufferSize,
				numBlocks,
				start,
				cache.totalBlocks,
			),
		)
	}
	return nil
}

func (cache *BlockCache) blockSlice(start c.LogicalBlock, count uint) []byte {
	startOffset := uint(start) * cache.bytesPerBlock
	endOffset := startOffset + (count * cache.bytesPerBlock)
	return cache.data[startOffset:endOffset]
}

// GetSlice returns a slice pointing to the cache's storage, beginning at block
// `start` and continuing for `count` blocks.
//
// If the returned slice is modified, the modified blocks MUST be marked as
// dirty.
func (cache *BlockCache) GetSlice(
	start c.LogicalBlock,
	count uint,
) ([]byte, error) {
	err := cache.loadBlockRange(start, count)
	if err != nil {
		return nil, err
	}
	return cache.blockSlice(start, count), nil
}

// Data returns a slice of the entire cache's data. This requires loading all
// blocks not yet in the cache.
//
// If the returned slice is modified, the modified blocks MUST be marked as
// dirty.
func (cache *BlockCache) Data() ([]byte, error) {
	err := cache.LoadAll()
	if err != nil {
		return nil, err
	}
	return cache.data[:], nil
}

// loadBlockRange ensures that all blocks in the range [start, start + count) are
// present in the cache, and loads any missing ones from storage.
func (cache *BlockCache) loadBlockRange(start c.LogicalBlock, count uint) error {
	err := cache.checkBounds(start, count*cache.bytesPerBlock)
	if err != nil {
		return err
	}

	for blockIndex := int(start); uint(blockIndex) < uint(start)+count; blockIndex++ {
		// Dirty blocks are always loaded, so we don't need to check both maps.
		if cache.loadedBlocks.Get(blockIndex) {
			continue
		}

		buffer := cache.blockSlice(c.LogicalBlock(blockIndex), 1)
		err = cache.fetch(c.LogicalBlock(blockIndex), buffer)
		if err != nil {
			return fmt.Errorf("failed to load block %d from source: %w", blockIndex, err)
		}

		cache.loadedBlocks.Set(blockIndex, true)
		cache.dirtyBlocks.Set(blockIndex, false)
	}

	return nil
}

// FlushRange writes out all dirty blocks (and only dirty blocks) in the range
// [start, start + count) to the underlying storage and marks them as clean.
// Blocks are written in ascending order.
func (cache *BlockCache) FlushRange(start c.LogicalBlock, count uint) error {
	if count == 0 {
		return nil
	}

	err := cache.checkBounds(start, count*cache.bytesPerBlock)
	if err != nil {
		return err
	}

	for blockIndex := int(start); uint(blockIndex) < uint(start)+count; blockIndex++ {
		// Blocks that were never loaded are clean by definition.
		if !cache.dirtyBlocks.Get(blockIndex) {
			continue
		}

		buffer := cache.blockSlice(c.LogicalBlock(blockIndex), 1)
		err = cache.flush(c.LogicalBlock(blockIndex), buffer)
		if err != nil {
			return fmt.Errorf("failed to flush block %d to storage: %w", blockIndex, err)
		}
		cache.dirtyBlocks.Set(blockIndex, false)
	}

	return nil
}

// LoadAll ensures all missing blocks are loaded from storage into the cache.
func (cache *BlockCache) LoadAll() error {
	if cache.totalBlocks == 0 {
		return nil
	}
	return cache.loadBlockRange(0, cache.totalBlocks)
}

// Flush flushes all dirty blocks from the cache into storage, and marks them
// as clean.
func (cache *BlockCache) Flush() error {
	return cache.FlushRange(0, cache.totalBlocks)
}

// ReadAt fills `buffer` with data beginning at block `start`, loading any
// missing blocks first. `buffer` does not need to be an exact multiple of the
// size of one block.
//
// Attempting to read past the end of the cache will result in an error, and
// `buffer` will be left unmodified.
func (cache *BlockCache) ReadAt(buffer []byte, start c.LogicalBlock) (int, error) {
	bufLen := uint(len(buffer))
	err := cache.checkBounds(start, bufLen)
	if err != nil {
		return 0, err
	}

	sourceData, err := cache.GetSlice(start, cache.LengthToNumBlocks(bufLen))
	if err != nil {
		return 0, err
	}
	return copy(buffer, sourceData), nil
}

// WriteAt copies data into the cache from `buffer`, beginning at block `start`.
// All modified blocks are marked as dirty. `buffer` does not need to be an
// exact multiple of the size of one block.
//
// Blocks only partially covered by `buffer` are loaded first so that the bytes
// after the end of `buffer` are preserved. Attempting to write past the end of
// the cache will result in an error, and the cache will be left unmodified.
func (cache *BlockCache) WriteAt(buffer []byte, start c.LogicalBlock) (int, error) {
	bufLen := uint(len(buffer))
	err := cache.checkBounds(start, bufLen)
	if err != nil {
		return 0, err
	}

	numBlocks := cache.LengthToNumBlocks(bufLen)
	if bufLen%cache.bytesPerBlock != 0 {
		lastBlock := start + c.LogicalBlock(numBlocks-1)
		err = cache.loadBlockRange(lastBlock, 1)
		if err != nil {
			return 0, err
		}
	}

	written := copy(cache.blockSlice(start, numBlocks), buffer)
	for i := uint(0); i < numBlocks; i++ {
		currentBlockIndex := int(start) + int(i)
		cache.loadedBlocks.Set(currentBlockIndex, true)
		cache.dirtyBlocks.Set(currentBlockIndex, true)
	}
	return written, nil
}

// Resize changes the number of blocks in the cache. Blocks are added to and
// removed from the end.
//
// If the cache size is increased, zeroed-out blocks are appended to the end of
// the slice. These new blocks are treated as dirty, so flushing the cache will
// write them out.
func (cache *BlockCache) Resize(newTotalBlocks uint) error {
	err := cache.resize(c.LogicalBlock(newTotalBlocks))
	if err != nil {
		return err
	}

	newCacheData := make([]byte, newTotalBlocks*cache.bytesPerBlock)
	copy(newCacheData, cache.data)

	newDirtyBlocks := bitmap.Bitmap(bitmap.NewSlice(int(newTotalBlocks)))
	newLoadedBlocks := bitmap.Bitmap(bitmap.NewSlice(int(newTotalBlocks)))

	keptBlocks := cache.totalBlocks
	if newTotalBlocks < keptBlocks {
		keptBlocks = newTotalBlocks
	}
	for i := 0; i < int(keptBlocks); i++ {
		newDirtyBlocks.Set(i, cache.dirtyBlocks.Get(i))
		newLoadedBlocks.Set(i, cache.loadedBlocks.Get(i))
	}

	// New blocks are zeroed and dirty so that flushing overwrites whatever was
	// in the image there before.
	for i := cache.totalBlocks; i < newTotalBlocks; i++ {
		newDirtyBlocks.Set(int(i), true)
		newLoadedBlocks.Set(int(i), true)
	}

	cache.data = newCacheData
	cache.dirtyBlocks = newDirtyBlocks
	cache.loadedBlocks = newLoadedBlocks
	cache.totalBlocks = newTotalBlocks
	return nil
}

// MarkBlockRangeDirty marks a range of blocks as modified. They will be written
// out to the backing storage on the next call to [BlockCache.Flush].
func (cache *BlockCache) MarkBlockRangeDirty(
	start c.LogicalBlock,
	count uint,
) error {
	err := cache.checkBounds(start, count*cache.bytesPerBlock)
	if err != nil {
		return err
	}

	for i := uint(0); i < count; i++ {
		bitIndex := int(start) + int(i)
		cache.dirtyBlocks.Set(bitIndex, true)
		cache.loadedBlocks.Set(bitIndex, true)
	}
	return nil
}
