package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dargueta/acornfs"
	"github.com/dargueta/acornfs/file_systems/dfs"
	acorntest "github.com/dargueta/acornfs/testing"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand runs dfsutil with the given arguments, returning the exit code and
// what was written to stdout and stderr.
func runCommand(t *testing.T, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"dfsutil"}, args...), &stdout, &stderr)
	t.Logf("dfsutil %s -> %d\nstdout:\n%s\nstderr:\n%s",
		strings.Join(args, " "), code, stdout.String(), stderr.String())
	return code, stdout.String(), stderr.String()
}

func writeHostFile(t *testing.T, dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readCatalogue(t *testing.T, imagePath string) *acornfs.Directory {
	data := acorntest.ReadImageFile(t, imagePath)
	require.GreaterOrEqual(t, len(data), 2*dfs.SectorSize)

	directory, err := dfs.DecodeCatalogue(data[:dfs.SectorSize], data[dfs.SectorSize:2*dfs.SectorSize])
	require.NoError(t, err)
	return directory
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		Input    string
		Expected uint32
	}{
		{"0", 0},
		{"6400", 6400},
		{"0x1900", 0x1900},
		{"0XFFFF8023", 0xffff8023},
		{"&E00", 0xe00},
	}
	for _, test := range tests {
		t.Run(test.Input, func(t *testing.T) {
			address, err := parseAddress(test.Input)
			require.NoError(t, err)
			assert.Equal(t, test.Expected, address)
		})
	}

	for _, input := range []string{"", "&", "0x", "12ab", "0x100000000", "-1"} {
		_, err := parseAddress(input)
		assert.ErrorIsf(t, err, acornfs.ErrInvalidArgument, "input %q", input)
	}
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, "ERROR", logLevel(0).String())
	assert.Equal(t, "WARN", logLevel(1).String())
	assert.Equal(t, "INFO", logLevel(2).String())
	assert.Equal(t, "DEBUG", logLevel(3).String())
	assert.Equal(t, "DEBUG", logLevel(10).String())
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, 2, exitCodeFor(acornfs.ErrNotADFSDisk.WithMessage("x")))
	assert.Equal(t, 3, exitCodeFor(acornfs.ErrFileNotFound))
	assert.Equal(t, 4, exitCodeFor(acornfs.ErrDiskFull))
	assert.Equal(t, 5, exitCodeFor(acornfs.ErrInvalidFileName))
	assert.Equal(t, 6, exitCodeFor(acornfs.ErrFileExists))
	assert.Equal(t, 1, exitCodeFor(acornfs.ErrFailed))
}

func TestFormatAndList(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	hello := writeHostFile(t, dir, "HELLO", []byte("hello world"))

	code, stdout, _ := runCommand(t, "format", "--tracks", "40", imagePath, "MYDISK", hello)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Added: HELLO")

	info, err := os.Stat(imagePath)
	require.NoError(t, err)
	assert.EqualValues(t, dfs.SectorsFortyTrack*dfs.SectorSize, info.Size())

	code, stdout, _ = runCommand(t, "list", imagePath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Name   : MYDISK\n")
	assert.Contains(t, stdout, "Options: 0 (None)\n")
	assert.Contains(t, stdout, "Cycle  : 02\n")
	assert.Contains(t, stdout, "  HELLO            0x00000000 0x00000000         11          2\n")
	assert.Contains(t, stdout, "1 files\n")
}

func TestFormat__Geometry(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "disk.ssd")

	code, _, _ := runCommand(t, "format", "--geometry", "acorn-dfs-80", imagePath, "BIG")
	require.Equal(t, 0, code)
	assert.EqualValues(t, dfs.SectorsEightyTrack, readCatalogue(t, imagePath).TotalSectors)

	code, _, stderr := runCommand(t, "format", "--geometry", "ibm-pc-1440", imagePath, "BAD")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "acorn-dfs-40")
}

func TestFormat__InvalidTracks(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "disk.ssd")
	code, _, _ := runCommand(t, "format", "--tracks", "35", imagePath, "BAD")
	assert.Equal(t, 1, code)
}

func TestAddExtract(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	code, _, _ := runCommand(t, "format", imagePath, "GAMES")
	require.Equal(t, 0, code)

	contents := acorntest.CreateRandomImage(1, 3000, t)
	source := writeHostFile(t, dir, "source.bin", contents)

	code, _, _ = runCommand(
		t, "add", "--name", "ELITE.G", "--load", "&1900", "--exec", "0x801F", "--locked",
		imagePath, source,
	)
	require.Equal(t, 0, code)

	directory := readCatalogue(t, imagePath)
	require.Len(t, directory.Files, 1)
	file := directory.Files[0]
	assert.Equal(t, "ELITE", file.Name)
	assert.EqualValues(t, 'G', file.Directory)
	assert.EqualValues(t, 0x1900, file.LoadAddress)
	assert.EqualValues(t, 0x801f, file.ExecAddress)
	assert.True(t, file.Locked)

	outputDir := filepath.Join(dir, "out")
	code, stdout, _ := runCommand(t, "extract", "--dir", outputDir, imagePath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "1 files extracted")

	extractedPath := filepath.Join(outputDir, "ELITE.G")
	extracted, err := os.ReadFile(extractedPath)
	require.NoError(t, err)
	assert.Equal(t, contents, extracted)

	info, err := os.Stat(extractedPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o444), info.Mode().Perm(), "locked file should be read-only")
}

func TestExtract__DefaultsToTitleDirectory(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	source := writeHostFile(t, dir, "DATA", []byte("some data"))

	code, _, _ := runCommand(t, "format", imagePath, "TITLED", source)
	require.Equal(t, 0, code)

	workDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(workDir) })

	code, _, _ = runCommand(t, "extract", imagePath, "DATA")
	require.Equal(t, 0, code)

	extracted, err := os.ReadFile(filepath.Join(dir, "TITLED", "DATA"))
	require.NoError(t, err)
	assert.Equal(t, "some data", string(extracted))
}

func TestExtract__UnsafeNames(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	sources := []string{
		writeHostFile(t, dir, "AAA", []byte("a")),
		writeHostFile(t, dir, "BBB", []byte("b")),
		writeHostFile(t, dir, "CCC", []byte("c")),
	}

	code, _, _ := runCommand(t, append([]string{"format", imagePath, ""}, sources...)...)
	require.Equal(t, 0, code)

	data := acorntest.ReadImageFile(t, imagePath)
	copy(data[8:8+7], "../../x")
	copy(data[16:16+7], "SUB/X  ")
	require.NoError(t, os.WriteFile(imagePath, data, 0o644))

	outputDir := filepath.Join(dir, "out", "nested")
	code, stdout, _ := runCommand(t, "extract", "--dir", outputDir, imagePath)
	assert.Equal(t, 5, code)
	assert.Contains(t, stdout, "1 files extracted")

	extracted, err := os.ReadFile(filepath.Join(outputDir, "CCC"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(extracted))

	for _, path := range []string{
		filepath.Join(dir, "x"),
		filepath.Join(outputDir, "SUB"),
	} {
		_, err = os.Stat(path)
		assert.ErrorIsf(t, err, os.ErrNotExist, "%s was created", path)
	}
}

func TestExtract__UnsafeTitle(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	source := writeHostFile(t, dir, "DATA", []byte("some data"))

	code, _, _ := runCommand(t, "format", imagePath, "", source)
	require.Equal(t, 0, code)

	data := acorntest.ReadImageFile(t, imagePath)
	copy(data[:8], "../ESC\x00\x00")
	require.NoError(t, os.WriteFile(imagePath, data, 0o644))

	workDir := filepath.Join(dir, "work")
	require.NoError(t, os.Mkdir(workDir, 0o755))

	previousDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workDir))
	t.Cleanup(func() { os.Chdir(previousDir) })

	code, _, stderr := runCommand(t, "extract", imagePath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--dir")

	_, err = os.Stat(filepath.Join(dir, "ESC"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	code, _, _ = runCommand(t, "extract", "--dir", "safe", imagePath)
	require.Equal(t, 0, code)
	_, err = os.Stat(filepath.Join(workDir, "safe", "DATA"))
	assert.NoError(t, err)
}

func TestExtract__NotFound(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "disk.ssd")
	code, _, _ := runCommand(t, "format", imagePath, "")
	require.Equal(t, 0, code)

	code, _, _ = runCommand(t, "extract", "--dir", t.TempDir(), imagePath, "NOPE")
	assert.Equal(t, 3, code)
}

func TestAdd__ExitCodes(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	code, _, _ := runCommand(t, "format", "--tracks", "40", imagePath, "")
	require.Equal(t, 0, code)

	small := writeHostFile(t, dir, "SMALL", []byte("x"))
	code, _, _ = runCommand(t, "add", imagePath, small)
	require.Equal(t, 0, code)

	code, _, _ = runCommand(t, "add", imagePath, small)
	assert.Equal(t, 6, code, "duplicate")

	code, _, _ = runCommand(t, "add", "--name", "BAD:NAME", imagePath, small)
	assert.Equal(t, 5, code, "invalid name")

	huge := writeHostFile(t, dir, "HUGE", make([]byte, dfs.SectorsFortyTrack*dfs.SectorSize))
	code, _, _ = runCommand(t, "add", imagePath, huge)
	assert.Equal(t, 4, code, "disk full")

	code, _, _ = runCommand(t, "add", "--name", "ONE", imagePath, small, huge)
	assert.Equal(t, 1, code, "--name with several files")
}

func TestList__NotDFS(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeHostFile(t, dir, "junk.ssd", make([]byte, 100))

	code, _, stderr := runCommand(t, "list", imagePath)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Not an Acorn DFS disk")
}

func TestList__CSV(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	first := writeHostFile(t, dir, "FIRST", []byte("1234"))
	second := writeHostFile(t, dir, "SECOND", []byte("5678"))

	code, _, _ := runCommand(t, "format", imagePath, "CSV", first, second)
	require.Equal(t, 0, code)

	code, stdout, _ := runCommand(t, "list", "--format", "csv", imagePath)
	require.Equal(t, 0, code)

	var rows []catalogueRow
	require.NoError(t, gocsv.UnmarshalString(stdout, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "FIRST", rows[0].Name)
	assert.Equal(t, "$", rows[0].Directory)
	assert.Equal(t, "SECOND", rows[1].Name)
	assert.EqualValues(t, 3, rows[1].StartSector)
	assert.EqualValues(t, 4, rows[1].Length)
}

func TestRemoveUpdateBootTitle(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	a := writeHostFile(t, dir, "A", []byte("aaa"))
	b := writeHostFile(t, dir, "B", []byte("bbb"))

	code, _, _ := runCommand(t, "format", imagePath, "OLD", a, b)
	require.Equal(t, 0, code)

	code, stdout, _ := runCommand(t, "update", "--load", "0xffff1900", "--locked", imagePath, "A")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "0xffff1900")

	code, _, _ = runCommand(t, "remove", imagePath, "A")
	assert.Equal(t, 1, code, "removing a locked file should fail")

	code, _, _ = runCommand(t, "update", "--unlocked", imagePath, "A")
	require.Equal(t, 0, code)
	code, _, _ = runCommand(t, "remove", imagePath, "A")
	require.Equal(t, 0, code)

	code, _, _ = runCommand(t, "remove", imagePath, "A")
	assert.Equal(t, 3, code)

	code, _, _ = runCommand(t, "boot", imagePath, "exec")
	require.Equal(t, 0, code)
	code, _, _ = runCommand(t, "title", imagePath, "NEWTITLE")
	require.Equal(t, 0, code)

	directory := readCatalogue(t, imagePath)
	assert.Equal(t, "NEWTITLE", directory.Name)
	assert.Equal(t, acornfs.BootExec, directory.BootOption)
	require.Len(t, directory.Files, 1)
	assert.Equal(t, "B", directory.Files[0].Name)

	code, _, _ = runCommand(t, "boot", imagePath, "sometimes")
	assert.Equal(t, 1, code)
	code, _, _ = runCommand(t, "update", "--locked", "--unlocked", imagePath, "B")
	assert.Equal(t, 1, code)
}

func TestCheck(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "disk.ssd")
	code, _, _ := runCommand(t, "format", imagePath, "CHECKED")
	require.Equal(t, 0, code)

	code, stdout, _ := runCommand(t, "check", imagePath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "No problems found.")

	data := acorntest.ReadImageFile(t, imagePath)
	require.NoError(t, os.WriteFile(imagePath, data[:100*dfs.SectorSize], 0o644))

	code, _, _ = runCommand(t, "check", imagePath)
	assert.Equal(t, 1, code)
}

func TestCompressDecompress(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "disk.ssd")
	compressedPath := filepath.Join(dir, "disk.ssd.gz")
	expandedPath := filepath.Join(dir, "expanded.ssd")

	code, _, _ := runCommand(t, "format", imagePath, "SQUASH")
	require.Equal(t, 0, code)

	code, _, _ = runCommand(t, "compress", imagePath, compressedPath)
	require.Equal(t, 0, code)
	code, _, _ = runCommand(t, "decompress", compressedPath, expandedPath)
	require.Equal(t, 0, code)

	original := acorntest.ReadImageFile(t, imagePath)
	compressed := acorntest.ReadImageFile(t, compressedPath)
	assert.Less(t, len(compressed), len(original))
	assert.Equal(t, original, acorntest.ReadImageFile(t, expandedPath))
}

func TestGeometries(t *testing.T) {
	code, stdout, _ := runCommand(t, "geometries")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "acorn-dfs-40")
	assert.Contains(t, stdout, "acorn-dfs-80")
}

func TestVerbose(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "disk.ssd")

	code, _, stderr := runCommand(t, "format", imagePath, "QUIET")
	require.Equal(t, 0, code)
	assert.NotContains(t, stderr, "formatted disk")

	code, _, stderr = runCommand(t, "-v", "-v", "format", imagePath, "LOUD")
	require.Equal(t, 0, code)
	assert.Contains(t, stderr, "formatted disk")
}

func TestMissingArguments(t *testing.T) {
	code, _, stderr := runCommand(t, "title")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "title needs at least 2 arguments")
}
