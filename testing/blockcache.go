// Package testing contains helpers shared by the tests of the other packages
// in this module. It's conventionally imported as `acorntest`.
package testing

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/dargueta/acornfs/errors"
	c "github.com/dargueta/acornfs/file_systems/common"
	"github.com/dargueta/acornfs/file_systems/common/blockcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CreateRandomImage creates an image with the given number of blocks and bytes
// per block, filled with random data. It either returns a valid slice or fails
// the test and aborts.
func CreateRandomImage(bytesPerBlock, totalBlocks uint, t *testing.T) []byte {
	backingData := make([]byte, bytesPerBlock*totalBlocks)

	_, err := rand.Read(backingData)
	require.NoErrorf(
		t,
		err,
		"failed to initialize %d blocks of size %d with random bytes",
		totalBlocks,
		bytesPerBlock,
	)
	return backingData
}

// CreateDefaultCache creates a block cache over `backingData` that can't be
// resized. If `backingData` is nil, a random image is created for it.
//
// If `writable` is false, any attempt to flush a block fails the test. Access
// outside of the image also fails the test, so negative conditions must be
// tested by checking the cache's own bounds checks.
func CreateDefaultCache(
	bytesPerBlock,
	totalBlocks uint,
	writable bool,
	backingData []byte,
	t *testing.T,
) *blockcache.BlockCache {
	if backingData == nil {
		backingData = CreateRandomImage(bytesPerBlock, totalBlocks, t)
	}

	blockData := func(blockIndex c.LogicalBlock, operation string) ([]byte, error) {
		if uint(blockIndex) >= totalBlocks {
			message := fmt.Sprintf(
				"attempted to %s outside bounds: block %d not in [0, %d)",
				operation,
				blockIndex,
				totalBlocks,
			)
			t.Error(message)
			return nil, errors.ErrIOFailed.WithMessage(message)
		}
		start := uint(blockIndex) * bytesPerBlock
		return backingData[start : start+bytesPerBlock], nil
	}

	fetchCallback := func(blockIndex c.LogicalBlock, buffer []byte) error {
		block, err := blockData(blockIndex, "read")
		if err == nil {
			copy(buffer, block)
		}
		return err
	}

	flushCallback := func(blockIndex c.LogicalBlock, buffer []byte) error {
		if !writable {
			message := fmt.Sprintf(
				"attempted to write %d bytes to block %d of read-only image",
				len(buffer),
				blockIndex,
			)
			t.Error(message)
			return errors.ErrNotPermitted.WithMessage(message)
		}

		block, err := blockData(blockIndex, "write")
		if err == nil {
			copy(block, buffer)
		}
		return err
	}

	cache := blockcache.New(
		bytesPerBlock, totalBlocks, fetchCallback, flushCallback, nil,
	)
	assert.EqualValues(t, bytesPerBlock, cache.BytesPerBlock(), "wrong bytes per block")
	assert.EqualValues(t, totalBlocks, cache.TotalBlocks(), "wrong total blocks")
	assert.EqualValues(t, bytesPerBlock*totalBlocks, cache.Size(), "total size is wrong")
	return cache
}
