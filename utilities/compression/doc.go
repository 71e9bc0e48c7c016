// Package compression compresses disk images for storage as test fixtures and
// for the `compress` and `decompress` commands.
//
// A DFS image is mostly unused sectors full of null bytes: a blank 80-track
// disk is 200 KiB of zeroes apart from the catalogue. The best results come
// from run-length encoding the raw image first and then gzipping the result.
//
// The run-length encoding is RLE8, the scheme used by the Microsoft BMP format.
// If a byte B occurs N times where N >= 2, B is written twice, followed by a
// third (unsigned) byte giving how many additional times B occurred:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
//
// One group represents at most 257 bytes, so longer runs are split into
// several groups. A run of 300 "X" is encoded as `XX 255 XX 41`. Because a
// byte is its own escape sequence, a byte occurring exactly twice costs three
// bytes.
package compression
