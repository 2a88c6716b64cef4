package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: cbconv <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  convert    Convert PDF comic books to page images")
	fmt.Fprintln(w, "  doctor     Check Ghostscript, 7-Zip and the environment")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'cbconv help <command>' for details on a specific command.")
}

// printConvertUsage prints usage for the convert command.
func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: cbconv convert <input> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render every page of a PDF book at the resolution matching its artwork.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    PDF file or directory of PDF files")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default: next to each book)")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel workers (0 = auto)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "      --min-dpi <n>         Lowest resolution tried (default 96)")
	fmt.Fprintln(w, "      --max-dpi <n>         Highest resolution tried (default 1200)")
	fmt.Fprintln(w, "      --format <s>          Page format: png, jpeg")
	fmt.Fprintln(w, "      --pages-per-job <n>   Pages per Ghostscript invocation")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Archive:")
	fmt.Fprintln(w, "      --archive             Pack pages into <book>.cbz")
	fmt.Fprintln(w, "      --keep-pages          Keep page files after packing")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show detailed logs, timing and metrics")
	fmt.Fprintln(w, "      --metrics-addr <addr> Serve Prometheus metrics (e.g. :9090)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  CBCONV_CONFIG, CBCONV_WORKERS, CBCONV_MIN_DPI,")
	fmt.Fprintln(w, "  CBCONV_GHOSTSCRIPT, CBCONV_7Z, CBCONV_OUTPUT_DIR")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "convert":
		printConvertUsage(env.Stdout)
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: cbconv doctor [--json]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Locate Ghostscript and 7-Zip, report their versions and check the temp directory.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: cbconv version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: cbconv help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
