package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/automaxprocs/maxprocs"

	cbconv "github.com/alnah/go-cbconv"
	"github.com/alnah/go-cbconv/internal/config"
	"github.com/alnah/go-cbconv/internal/dpi"
	"github.com/alnah/go-cbconv/internal/hints"
	"github.com/alnah/go-cbconv/internal/process"
	"github.com/alnah/go-cbconv/internal/render"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ErrUnknownCommand is returned for an unrecognized subcommand.
var ErrUnknownCommand = errors.New("unknown command")

func main() {
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	os.Exit(runMain(os.Args, DefaultEnv()))
}

// runMain dispatches the subcommand in args[1] and returns the exit code.
// A first argument ending in .pdf is treated as an implicit convert.
func runMain(args []string, env *Environment) int {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	warnUnknownEnvVars(env.Stderr)

	cmd, rest := args[1], args[2:]
	if looksLikePDF(cmd) {
		cmd, rest = "convert", args[1:]
	}

	switch cmd {
	case "convert":
		ctx, stop := notifyContext(context.Background())
		defer stop()
		return runConvertCmd(ctx, rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "cbconv %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		runHelp(rest, env)
		return ExitSuccess
	default:
		fmt.Fprintf(env.Stderr, "%v: %s\n\n", ErrUnknownCommand, cmd)
		printUsage(env.Stderr)
		return ExitUsage
	}
}

// runConvertCmd parses convert flags, runs the conversion and maps the
// outcome to an exit code.
func runConvertCmd(ctx context.Context, args []string, env *Environment) int {
	flags, positional, err := parseConvertFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, errHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}

	if err := runConvert(ctx, positional, flags, env); err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err, flags))
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// hintFor returns an actionable hint for err, or "" when none applies.
func hintFor(err error, flags *convertFlags) string {
	switch {
	case errors.Is(err, cbconv.ErrArchive):
		return hints.ForSevenZip()
	case errors.Is(err, process.ErrStart):
		return hints.ForGhostscriptStart()
	case errors.Is(err, dpi.ErrMaximumDPI):
		return hints.ForMaximumDPI(flags.maxDPI)
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(nil)
	case errors.Is(err, cbconv.ErrOutputDir):
		return hints.ForOutputDirectory()
	case errors.Is(err, render.ErrInvalidFormat), errors.Is(err, config.ErrInvalidValue):
		return hints.ForFormat()
	}
	return ""
}

// looksLikePDF reports whether arg names a PDF file rather than a command.
func looksLikePDF(arg string) bool {
	return strings.HasSuffix(strings.ToLower(arg), ".pdf")
}
