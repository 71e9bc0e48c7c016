package testing

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	c "github.com/dargueta/acornfs/file_systems/common"
	"github.com/dargueta/acornfs/file_systems/common/imagefile"
	"github.com/dargueta/acornfs/utilities/compression"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// fixedSizeImage hides any Truncate method of the wrapped image so that it
// can't be resized.
type fixedSizeImage struct {
	c.DiskImage
}

// NewMemoryImage returns a disk image that reads and writes `data` directly.
// The image can't be resized.
func NewMemoryImage(data []byte) c.DiskImage {
	stream := bytesextra.NewReadWriteSeeker(data)
	return fixedSizeImage{DiskImage: imagefile.WrapStream(stream)}
}

// NewBlankImage returns a zero-filled in-memory image of the given size along
// with the slice backing it.
func NewBlankImage(sectorSize, totalSectors uint) (c.DiskImage, []byte) {
	data := make([]byte, sectorSize*totalSectors)
	return NewMemoryImage(data), data
}

// NewImageFile creates an empty image file in a temporary directory that's
// deleted when the test finishes. The returned image is open for writing and
// is closed automatically.
func NewImageFile(t *testing.T, name string) (*imagefile.ImageFile, string) {
	path := filepath.Join(t.TempDir(), name)
	image, err := imagefile.Open(path, imagefile.ModeCreate)
	require.NoErrorf(t, err, "failed to create image file %q", path)

	t.Cleanup(func() { image.Close() })
	return image, path
}

// ReadImageFile returns the raw contents of an image file on the host.
func ReadImageFile(t *testing.T, path string) []byte {
	data, err := os.ReadFile(path)
	require.NoErrorf(t, err, "failed to read image file %q", path)
	return data
}

// LoadDiskImage takes a compressed disk image and returns an in-memory image
// holding the uncompressed data.
//
//   - Writes to the image do not affect `compressedImageBytes`.
//   - The image's size is fixed to `sectorSize * totalSectors`.
func LoadDiskImage(
	t *testing.T, compressedImageBytes []byte, sectorSize, totalSectors uint,
) (c.DiskImage, []byte) {
	require.Greater(t, len(compressedImageBytes), 0, "compressed image is empty")

	imageBytes, err := compression.DecompressImageToBytes(
		bytes.NewReader(compressedImageBytes))
	require.NoError(t, err)

	require.Equal(
		t,
		totalSectors*sectorSize,
		uint(len(imageBytes)),
		"uncompressed image is wrong size",
	)
	return NewMemoryImage(imageBytes), imageBytes
}

// CompressDiskImage is the inverse of [LoadDiskImage]. It's used to build
// fixtures from images created during a test.
func CompressDiskImage(t *testing.T, imageBytes []byte) []byte {
	compressed, err := compression.CompressImageToBytes(bytes.NewReader(imageBytes))
	require.NoError(t, err, "failed to compress image")
	return compressed
}
