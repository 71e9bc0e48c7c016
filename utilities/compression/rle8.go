package compression

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// maxRunLength is the longest run one RLE8 group can represent: the byte twice,
// followed by up to 255 more.
const maxRunLength = 257

// nextRun reads the next run of identical bytes from `source`, stopping after
// [maxRunLength] bytes. The returned length is 0 only if an error occurred,
// including EOF.
func nextRun(source *bufio.Reader) (byte, int, error) {
	first, err := source.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	length := 1
	for length < maxRunLength {
		current, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return 0, 0, err
		}

		if current != first {
			source.UnreadByte()
			break
		}
		length++
	}
	return first, length, nil
}

// CompressRLE8 reads bytes from the input and writes compressed data to the
// output until the input is exhausted. The return value is the number of bytes
// written.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	totalBytesWritten := int64(0)

	for {
		value, length, err := nextRun(source)
		if errors.Is(err, io.EOF) {
			return totalBytesWritten, nil
		} else if err != nil {
			return totalBytesWritten, fmt.Errorf("error reading input: %w", err)
		}

		var group []byte
		if length == 1 {
			group = []byte{value}
		} else {
			group = []byte{value, value, byte(length - 2)}
		}

		n, err := output.Write(group)
		totalBytesWritten += int64(n)
		if err != nil {
			return totalBytesWritten, fmt.Errorf("failed to write to output: %w", err)
		}
	}
}

// DecompressRLE8 expands RLE8-encoded data from `input` into `output`. The
// return value is the number of bytes written.
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	previous := -1
	totalBytesWritten := int64(0)

	for {
		currentByte, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			return totalBytesWritten, nil
		} else if err != nil {
			return totalBytesWritten, fmt.Errorf("error reading input: %w", err)
		}

		expanded := []byte{currentByte}
		if int(currentByte) == previous {
			repeatCount, err := source.ReadByte()
			if errors.Is(err, io.EOF) {
				return totalBytesWritten, fmt.Errorf(
					"%w: missing repeat count after two %02x bytes",
					io.ErrUnexpectedEOF,
					currentByte,
				)
			} else if err != nil {
				return totalBytesWritten, fmt.Errorf("error reading input: %w", err)
			}

			// The first copy of this byte was written on the previous iteration.
			expanded = bytes.Repeat(expanded, int(repeatCount)+1)

			// A completed group can't be the first half of another one.
			previous = -1
		} else {
			previous = int(currentByte)
		}

		n, err := output.Write(expanded)
		totalBytesWritten += int64(n)
		if err != nil {
			return totalBytesWritten, fmt.Errorf("failed to write to output: %w", err)
		}
	}
}
