// dfsutil lists, extracts, and modifies the contents of Acorn DFS disk images.
package main

import (
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dargueta/acornfs"
	"github.com/urfave/cli/v2"
)

// Exit codes for errors that scripts may want to tell apart. Anything else
// exits with 1.
var exitCodes = []struct {
	err  error
	code int
}{
	{acornfs.ErrNotADFSDisk, 2},
	{acornfs.ErrFileNotFound, 3},
	{acornfs.ErrDiskFull, 4},
	{acornfs.ErrInvalidFileName, 5},
	{acornfs.ErrFileExists, 6},
}

func exitCodeFor(err error) int {
	for _, entry := range exitCodes {
		if goerrors.Is(err, entry.err) {
			return entry.code
		}
	}
	return 1
}

// toExitError converts an error returned by a command to one carrying the exit
// code the program should terminate with.
func toExitError(err error) cli.ExitCoder {
	var exitErr cli.ExitCoder
	if goerrors.As(err, &exitErr) {
		return exitErr
	}
	return cli.Exit(err.Error(), exitCodeFor(err))
}

// logLevel maps the number of times -v was given to the minimum level logged.
func logLevel(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return slog.LevelError
	case verbosity == 1:
		return slog.LevelWarn
	case verbosity == 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

type runner struct {
	stdout    io.Writer
	stderr    io.Writer
	logger    *slog.Logger
	verbosity int
}

func newApp(r *runner) *cli.App {
	return &cli.App{
		Name:      "dfsutil",
		Usage:     "Acorn DFS disk image utilities",
		Writer:    r.stdout,
		ErrWriter: r.stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log more; repeat for more detail",
				Count:   &r.verbosity,
			},
			&cli.IntFlag{
				Name:    "verbosity",
				Usage:   "set the verbosity level directly (0-3)",
				EnvVars: []string{"DFSUTIL_VERBOSE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level := r.verbosity
			if ctx.Int("verbosity") > level {
				level = ctx.Int("verbosity")
			}
			r.logger = slog.New(
				slog.NewTextHandler(r.stderr, &slog.HandlerOptions{Level: logLevel(level)}))
			return nil
		},
		Commands: r.commands(),
		// Exit codes are handled by run() so that the app can be tested.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// run executes the program with the given arguments and returns its exit code.
func run(args []string, stdout, stderr io.Writer) int {
	r := &runner{stdout: stdout, stderr: stderr}
	err := newApp(r).Run(args)
	if err == nil {
		return 0
	}

	exitErr := toExitError(err)
	fmt.Fprintf(stderr, "dfsutil: %s\n", exitErr.Error())
	return exitErr.ExitCode()
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}
