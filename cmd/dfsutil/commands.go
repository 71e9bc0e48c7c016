package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dargueta/acornfs"
	"github.com/dargueta/acornfs/disks"
	"github.com/dargueta/acornfs/file_systems/common/imagefile"
	"github.com/dargueta/acornfs/file_systems/dfs"
	"github.com/dargueta/acornfs/utilities/compression"
	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
)

func (r *runner) commands() []*cli.Command {
	addressFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "load",
			Usage: "load address, in decimal or hex with a 0x or & prefix",
		},
		&cli.StringFlag{
			Name:  "exec",
			Usage: "execution address, in decimal or hex with a 0x or & prefix",
		},
	}

	return []*cli.Command{
		{
			Name:      "list",
			Aliases:   []string{"ls"},
			Usage:     "Show the catalogue of a disk image",
			ArgsUsage: "IMAGE",
			Action:    r.listImage,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "output format: text or csv",
					Value: "text",
				},
			},
		},
		{
			Name:      "extract",
			Aliases:   []string{"x"},
			Usage:     "Copy files out of a disk image",
			ArgsUsage: "IMAGE [FILE...]",
			Action:    r.extractFiles,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "dir",
					Aliases: []string{"d"},
					Usage:   "directory to extract to (default: the disk title)",
					EnvVars: []string{"DFSUTIL_DIR"},
				},
			},
		},
		{
			Name:      "format",
			Usage:     "Create an empty disk image, overwriting any existing file",
			ArgsUsage: "IMAGE TITLE [FILE...]",
			Action:    r.formatImage,
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:    "tracks",
					Usage:   "number of tracks, 40 or 80",
					Value:   80,
					EnvVars: []string{"DFSUTIL_TRACKS"},
				},
				&cli.StringFlag{
					Name:  "geometry",
					Usage: "use a predefined disk geometry instead of --tracks",
				},
			},
		},
		{
			Name:      "add",
			Aliases:   []string{"a"},
			Usage:     "Add files to a disk image",
			ArgsUsage: "IMAGE FILE...",
			Action:    r.addFiles,
			Flags: append(
				[]cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "name to give the file on the disk; only valid with one file",
					},
					&cli.BoolFlag{Name: "locked", Usage: "lock the added files"},
				},
				addressFlags...,
			),
		},
		{
			Name:      "remove",
			Aliases:   []string{"rm"},
			Usage:     "Remove files from a disk image",
			ArgsUsage: "IMAGE FILE...",
			Action:    r.removeFiles,
		},
		{
			Name:      "update",
			Usage:     "Change the addresses or lock state of a file",
			ArgsUsage: "IMAGE FILE",
			Action:    r.updateFile,
			Flags: append(
				[]cli.Flag{
					&cli.BoolFlag{Name: "locked", Usage: "lock the file"},
					&cli.BoolFlag{Name: "unlocked", Usage: "unlock the file"},
				},
				addressFlags...,
			),
		},
		{
			Name:      "boot",
			Usage:     "Set the boot option (None, Load, Run, Exec)",
			ArgsUsage: "IMAGE OPTION",
			Action:    r.setBootOption,
		},
		{
			Name:      "title",
			Usage:     "Set the disk title",
			ArgsUsage: "IMAGE TITLE",
			Action:    r.setTitle,
		},
		{
			Name:      "check",
			Usage:     "Check a disk image for inconsistencies",
			ArgsUsage: "IMAGE",
			Action:    r.checkImage,
		},
		{
			Name:      "compress",
			Usage:     "Compress a disk image with RLE8 and gzip",
			ArgsUsage: "INPUT OUTPUT",
			Action:    r.compressImage,
		},
		{
			Name:      "decompress",
			Usage:     "Expand a disk image compressed with the compress command",
			ArgsUsage: "INPUT OUTPUT",
			Action:    r.decompressImage,
		},
		{
			Name:   "geometries",
			Usage:  "List the predefined disk geometries as CSV",
			Action: r.listGeometries,
		},
	}
}

////////////////////////////////////////////////////////////////////////////////

func requireArgs(ctx *cli.Context, minimum int) error {
	if ctx.NArg() < minimum {
		return acornfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"%s needs at least %d arguments: %s",
				ctx.Command.Name,
				minimum,
				ctx.Command.ArgsUsage,
			),
		)
	}
	return nil
}

// openDriver opens the disk image at `path`. The caller must close the
// returned image.
func (r *runner) openDriver(path string, mode imagefile.Mode) (*dfs.Driver, *imagefile.ImageFile, error) {
	image, err := imagefile.Open(path, mode)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Debug("opened image", "path", path, "mode", mode)
	return dfs.NewDriver(image, dfs.WithLogger(r.logger)), image, nil
}

// parseAddress accepts a load or execution address in decimal, or in hex with
// a "0x" or "&" prefix.
func parseAddress(value string) (uint32, error) {
	base := 10
	digits := value
	switch {
	case strings.HasPrefix(value, "&"):
		base = 16
		digits = value[1:]
	case strings.HasPrefix(strings.ToLower(value), "0x"):
		base = 16
		digits = value[2:]
	}

	address, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, acornfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid address %q", value),
		)
	}
	return uint32(address), nil
}

// addressFlag returns the parsed value of an address flag, or nil if it wasn't
// given.
func addressFlag(ctx *cli.Context, name string) (*uint32, error) {
	if !ctx.IsSet(name) {
		return nil, nil
	}
	address, err := parseAddress(ctx.String(name))
	if err != nil {
		return nil, err
	}
	return &address, nil
}

////////////////////////////////////////////////////////////////////////////////

func (r *runner) listImage(ctx *cli.Context) error {
	err := requireArgs(ctx, 1)
	if err != nil {
		return err
	}

	driver, image, err := r.openDriver(ctx.Args().First(), imagefile.ModeRead)
	if err != nil {
		return err
	}
	defer image.Close()

	directory, err := driver.ReadCatalogue()
	if err != nil {
		return err
	}

	switch strings.ToLower(ctx.String("format")) {
	case "text":
		printCatalogue(r.stdout, directory)
		return nil
	case "csv":
		return gocsv.Marshal(catalogueRows(directory), r.stdout)
	default:
		return acornfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("unknown output format %q", ctx.String("format")),
		)
	}
}

func (r *runner) extractFiles(ctx *cli.Context) error {
	err := requireArgs(ctx, 1)
	if err != nil {
		return err
	}

	driver, image, err := r.openDriver(ctx.Args().First(), imagefile.ModeRead)
	if err != nil {
		return err
	}
	defer image.Close()

	directory, err := driver.ReadCatalogue()
	if err != nil {
		return err
	}

	files := directory.Files
	if ctx.NArg() > 1 {
		files = nil
		for _, name := range ctx.Args().Slice()[1:] {
			index, err := dfs.Find(directory, name)
			if err != nil {
				return err
			}
			files = append(files, directory.Files[index])
		}
	}

	outputDir := ctx.String("dir")
	if outputDir == "" {
		outputDir = directory.Name
		if !isPlainFileName(outputDir) {
			return acornfs.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("disk title %q can't be used as a directory name; use --dir", outputDir),
			)
		}
	}
	if outputDir == "" {
		outputDir = "."
	}

	err = os.MkdirAll(outputDir, 0o755)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.stdout, "Output dir: %s\n", outputDir)

	var result *multierror.Error
	extracted := 0
	for i := range files {
		name, err := hostFileName(&files[i])
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		path := filepath.Join(outputDir, name)
		fmt.Fprintf(r.stdout, "Extracting: %s\n", path)

		err = extractFile(driver, &files[i], path)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		extracted++
	}

	fmt.Fprintf(r.stdout, "%d files extracted\n", extracted)
	return result.ErrorOrNil()
}

// isPlainFileName reports whether a name from the disk can be used as a single
// path component inside the output directory. The empty string passes.
func isPlainFileName(name string) bool {
	if name == "" {
		return true
	}
	return filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`) && name != "."
}

// hostFileName gives the name a file is extracted under.
func hostFileName(file *acornfs.File) (string, error) {
	err := dfs.ValidateEntry(file)
	if err != nil {
		return "", err
	}

	name := dfs.DisplayName(file)
	if !isPlainFileName(name) {
		return "", acornfs.ErrInvalidFileName.WithMessage(
			fmt.Sprintf("%q can't be extracted as a host file name", name),
		)
	}
	return name, nil
}

func extractFile(driver *dfs.Driver, file *acornfs.File, path string) error {
	output, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	_, err = driver.Extract(file, output)
	closeErr := output.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	return os.Chmod(path, acornfs.HostFileMode(file.Locked))
}

func (r *runner) formatImage(ctx *cli.Context) error {
	err := requireArgs(ctx, 2)
	if err != nil {
		return err
	}

	var totalSectors uint
	if ctx.IsSet("geometry") {
		geometry, err := disks.GetPredefinedDiskGeometry(ctx.String("geometry"))
		if err != nil {
			return acornfs.ErrInvalidArgument.Wrap(err)
		}
		if geometry.BytesPerSector != dfs.SectorSize {
			return acornfs.ErrInvalidArgument.WithMessage(
				fmt.Sprintf(
					"geometry %s has %d-byte sectors; DFS needs %d",
					geometry.Slug,
					geometry.BytesPerSector,
					dfs.SectorSize,
				),
			)
		}
		totalSectors = geometry.TotalSectors()
	} else {
		totalSectors, err = dfs.TracksToSectors(ctx.Uint("tracks"))
		if err != nil {
			return err
		}
	}

	args := ctx.Args().Slice()
	title := args[1]
	err = dfs.ValidateDiskTitle(title)
	if err != nil {
		return err
	}

	driver, image, err := r.openDriver(args[0], imagefile.ModeCreate)
	if err != nil {
		return err
	}
	defer image.Close()

	fmt.Fprintf(r.stdout, "Writing: %s\n", title)
	err = driver.Format(totalSectors, title)
	if err != nil {
		return err
	}

	return r.addHostFiles(driver, args[2:], acornfs.FileMetadata{})
}

func (r *runner) addFiles(ctx *cli.Context) error {
	err := requireArgs(ctx, 2)
	if err != nil {
		return err
	}

	args := ctx.Args().Slice()
	metadata := acornfs.FileMetadata{
		Name:   ctx.String("name"),
		Locked: ctx.Bool("locked"),
	}
	if metadata.Name != "" && len(args) > 2 {
		return acornfs.ErrInvalidArgument.WithMessage("--name can only be used with one file")
	}

	for _, flag := range []struct {
		name   string
		target *uint32
	}{{"load", &metadata.LoadAddress}, {"exec", &metadata.ExecAddress}} {
		address, err := addressFlag(ctx, flag.name)
		if err != nil {
			return err
		}
		if address != nil {
			*flag.target = *address
		}
	}

	driver, image, err := r.openDriver(args[0], imagefile.ModeUpdate)
	if err != nil {
		return err
	}
	defer image.Close()

	return r.addHostFiles(driver, args[1:], metadata)
}

// addHostFiles copies files from the host to the disk. The DFS name of each
// file is its base name on the host unless `template` gives one. Adding stops
// at the first failure.
func (r *runner) addHostFiles(driver *dfs.Driver, paths []string, template acornfs.FileMetadata) error {
	for _, path := range paths {
		metadata := template
		if metadata.Name == "" {
			metadata.Name = filepath.Base(path)
		}

		err := addHostFile(driver, path, metadata)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(r.stdout, "Added: %s\n", metadata.Name)
	}
	return nil
}

func addHostFile(driver *dfs.Driver, path string, metadata acornfs.FileMetadata) error {
	input, err := os.Open(path)
	if err != nil {
		return err
	}
	defer input.Close()

	_, err = driver.Add(metadata, input)
	return err
}

func (r *runner) removeFiles(ctx *cli.Context) error {
	err := requireArgs(ctx, 2)
	if err != nil {
		return err
	}

	args := ctx.Args().Slice()
	driver, image, err := r.openDriver(args[0], imagefile.ModeUpdate)
	if err != nil {
		return err
	}
	defer image.Close()

	var result *multierror.Error
	for _, name := range args[1:] {
		err = driver.Remove(name)
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *runner) updateFile(ctx *cli.Context) error {
	err := requireArgs(ctx, 2)
	if err != nil {
		return err
	}
	if ctx.Bool("locked") && ctx.Bool("unlocked") {
		return acornfs.ErrInvalidArgument.WithMessage("--locked and --unlocked are mutually exclusive")
	}

	var update acornfs.FileUpdate
	update.LoadAddress, err = addressFlag(ctx, "load")
	if err != nil {
		return err
	}
	update.ExecAddress, err = addressFlag(ctx, "exec")
	if err != nil {
		return err
	}
	if ctx.Bool("locked") || ctx.Bool("unlocked") {
		locked := ctx.Bool("locked")
		update.Locked = &locked
	}

	driver, image, err := r.openDriver(ctx.Args().Get(0), imagefile.ModeUpdate)
	if err != nil {
		return err
	}
	defer image.Close()

	file, err := driver.Update(ctx.Args().Get(1), update)
	if err != nil {
		return err
	}
	printFile(r.stdout, file)
	return nil
}

func (r *runner) setBootOption(ctx *cli.Context) error {
	err := requireArgs(ctx, 2)
	if err != nil {
		return err
	}

	option, err := acornfs.ParseBootOption(ctx.Args().Get(1))
	if err != nil {
		return err
	}

	driver, image, err := r.openDriver(ctx.Args().Get(0), imagefile.ModeUpdate)
	if err != nil {
		return err
	}
	defer image.Close()

	return driver.SetBootOption(option)
}

func (r *runner) setTitle(ctx *cli.Context) error {
	err := requireArgs(ctx, 2)
	if err != nil {
		return err
	}

	driver, image, err := r.openDriver(ctx.Args().Get(0), imagefile.ModeUpdate)
	if err != nil {
		return err
	}
	defer image.Close()

	return driver.SetTitle(ctx.Args().Get(1))
}

func (r *runner) checkImage(ctx *cli.Context) error {
	err := requireArgs(ctx, 1)
	if err != nil {
		return err
	}

	driver, image, err := r.openDriver(ctx.Args().First(), imagefile.ModeRead)
	if err != nil {
		return err
	}
	defer image.Close()

	err = driver.Check()
	if err != nil {
		return err
	}
	fmt.Fprintln(r.stdout, "No problems found.")
	return nil
}

func (r *runner) compressImage(ctx *cli.Context) error {
	return r.convertFile(ctx, "Compressed", compression.CompressImage)
}

func (r *runner) decompressImage(ctx *cli.Context) error {
	return r.convertFile(ctx, "Expanded", compression.DecompressImage)
}

func (r *runner) convertFile(
	ctx *cli.Context,
	verb string,
	convert func(input io.Reader, output io.Writer) (int64, error),
) error {
	err := requireArgs(ctx, 2)
	if err != nil {
		return err
	}

	inputPath := ctx.Args().Get(0)
	outputPath := ctx.Args().Get(1)

	input, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.Create(outputPath)
	if err != nil {
		return err
	}

	size, err := convert(input, output)
	closeErr := output.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	fmt.Fprintf(r.stdout, "%s %s to %d bytes.\n", verb, inputPath, size)
	return nil
}

func (r *runner) listGeometries(ctx *cli.Context) error {
	geometries := disks.All()
	return gocsv.Marshal(&geometries, r.stdout)
}
