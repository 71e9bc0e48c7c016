package imagefile_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dargueta/acornfs/errors"
	"github.com/dargueta/acornfs/file_systems/common/imagefile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func TestOpen__MissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.ssd")

	_, err := imagefile.Open(path, imagefile.ModeRead)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = imagefile.Open(path, imagefile.ModeUpdate)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestImageFile__CreateWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.ssd")

	image, err := imagefile.Open(path, imagefile.ModeCreate)
	require.NoError(t, err)

	extent, err := image.Extent()
	require.NoError(t, err)
	assert.EqualValues(t, 0, extent, "new image should be empty")

	n, err := image.WriteAt([]byte("HELLO"), 256)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	extent, err = image.Extent()
	require.NoError(t, err)
	assert.EqualValues(t, 261, extent, "extent not updated after write past end")
	require.NoError(t, image.Close())

	image, err = imagefile.Open(path, imagefile.ModeRead)
	require.NoError(t, err)
	defer image.Close()

	extent, err = image.Extent()
	require.NoError(t, err)
	assert.EqualValues(t, 261, extent)

	buffer := make([]byte, 5)
	_, err = image.ReadAt(buffer, 256)
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO"), buffer)

	_, err = image.WriteAt([]byte("X"), 0)
	assert.ErrorIs(t, err, errors.ErrNotPermitted, "read-only image accepted a write")
}

func TestImageFile__Truncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.ssd")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024), 0o644))

	image, err := imagefile.Open(path, imagefile.ModeUpdate)
	require.NoError(t, err)
	defer image.Close()

	require.NoError(t, image.Truncate(102400))
	extent, err := image.Extent()
	require.NoError(t, err)
	assert.EqualValues(t, 102400, extent)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 102400, info.Size())
}

func TestStreamImage__ReadAtIgnoresCursor(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i)
	}

	stream := bytesextra.NewReadWriteSeeker(data)
	image := imagefile.WrapStream(stream)

	_, err := stream.Seek(300, io.SeekStart)
	require.NoError(t, err)

	buffer := make([]byte, 4)
	n, err := image.ReadAt(buffer, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{10, 11, 12, 13}, buffer)

	extent, err := image.Extent()
	require.NoError(t, err)
	assert.EqualValues(t, 512, extent)
}

func TestStreamImage__ShortReadReportsEOF(t *testing.T) {
	image := imagefile.WrapStream(bytesextra.NewReadWriteSeeker(make([]byte, 300)))

	buffer := make([]byte, 256)
	n, err := image.ReadAt(buffer, 256)
	assert.Equal(t, 44, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamImage__WriteAt(t *testing.T) {
	data := make([]byte, 16)
	image := imagefile.WrapStream(bytesextra.NewReadWriteSeeker(data))

	_, err := image.WriteAt([]byte{0xAA, 0xBB}, 7)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), data[7])
	assert.Equal(t, byte(0xBB), data[8])
}
