package compression_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	c "github.com/dargueta/acornfs/utilities/compression"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type RLE8TestCase struct {
	Input          []byte
	ExpectedOutput []byte
	Name           string
}

func TestCompressRLE8__Basic(t *testing.T) {
	tests := []RLE8TestCase{
		{[]byte{}, []byte{}, "empty"},
		{[]byte{4, 4}, []byte{4, 4, 0}, "run with two only"},
		{[]byte{0, 1, 2, 3, 4}, []byte{0, 1, 2, 3, 4}, "no runs"},
		{[]byte{6, 1, 3, 0, 0}, []byte{6, 1, 3, 0, 0, 0}, "two at end"},
		{[]byte{6, 1, 0, 0, 0}, []byte{6, 1, 0, 0, 1}, "three at end"},
		{[]byte{9, 5, 5, 5, 5, 5, 3, 7}, []byte{9, 5, 5, 3, 3, 7}, "short run"},
		{
			[]byte{9, 5, 5, 5, 5, 5, 5, 3, 3, 3, 3, 7, 2, 6},
			[]byte{9, 5, 5, 4, 3, 3, 2, 7, 2, 6},
			"adjacent runs",
		},
		{
			bytes.Repeat([]byte{5}, 1024),
			[]byte{5, 5, 255, 5, 5, 255, 5, 5, 255, 5, 5, 251},
			"single long run",
		},
		{bytes.Repeat([]byte{8}, 257), []byte{8, 8, 255}, "257"},
		{bytes.Repeat([]byte{8}, 258), []byte{8, 8, 255, 8}, "258"},
		{bytes.Repeat([]byte{8}, 259), []byte{8, 8, 255, 8, 8, 0}, "259"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			output := bytes.Buffer{}
			n, err := c.CompressRLE8(bytes.NewReader(test.Input), &output)
			require.NoError(t, err)
			assert.EqualValues(t, len(test.ExpectedOutput), n, "bytes written is wrong")
			assert.Truef(
				t,
				bytes.Equal(test.ExpectedOutput, output.Bytes()),
				"output data is wrong: expected %v, got %v",
				test.ExpectedOutput,
				output.Bytes(),
			)
		})
	}
}

func TestRLE8RoundTrip(t *testing.T) {
	randomData := make([]byte, 1852)
	rand.Read(randomData)

	tests := []struct {
		Name string
		Data []byte
	}{
		{"completely_random", randomData},
		{"entirely_nulls", make([]byte, 571)},
		{"entirely_non_null_run", bytes.Repeat([]byte{182}, 934)},
		{"empty", []byte{}},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			runRoundTripTestCase(t, test.Data)
		})
	}
}

func TestRLE8Decompress__MissingRepeatCount(t *testing.T) {
	data := []byte{9, 1, 4, 4}
	decompressed := make([]byte, 16)
	writer := bytewriter.New(decompressed)

	_, err := c.DecompressRLE8(bytes.NewReader(data), writer)
	require.Error(t, err, "read with missing repeat count should've failed but didn't")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func runRoundTripTestCase(t *testing.T, originalData []byte) {
	// Sufficiently random data can "compress" to something larger than the
	// input, so the compressed buffer needs room to grow.
	compressedBuffer := make([]byte, len(originalData)*2)
	compressedWriter := bytewriter.New(compressedBuffer)

	n, err := c.CompressRLE8(bytes.NewReader(originalData), compressedWriter)
	require.NoError(t, err, "unexpected error while compressing")
	t.Logf("compressed %d to %d", len(originalData), n)

	outputBuffer := make([]byte, len(originalData))
	outputWriter := bytewriter.New(outputBuffer)

	n, err = c.DecompressRLE8(bytes.NewReader(compressedBuffer[:n]), outputWriter)
	require.NoError(t, err, "unexpected error while decompressing")
	assert.EqualValues(t, len(originalData), n, "returned decompressed size is wrong")
	assert.Equal(t, originalData, outputBuffer, "decompressed data doesn't match original data")
}
