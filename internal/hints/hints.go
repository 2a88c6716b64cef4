// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-cbconv/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForGhostscriptStart returns hints for a renderer that could not be started.
func ForGhostscriptStart() string {
	var hints []string

	if IsInContainer() {
		hints = append(hints, "install ghostscript in the image")
	} else {
		hints = append(hints, "install Ghostscript (gs)")
	}
	if os.Getenv("CBCONV_GHOSTSCRIPT") == "" {
		hints = append(hints, "set CBCONV_GHOSTSCRIPT to use a custom binary")
	}
	hints = append(hints, "run 'cbconv doctor' to check")

	return formatHints(hints)
}

// ForSevenZip returns hints for archive failures.
func ForSevenZip() string {
	if os.Getenv("CBCONV_7Z") == "" {
		return format("install 7-Zip or set CBCONV_7Z; use --keep-pages to inspect pages")
	}
	return format("check CBCONV_7Z points to a working 7-Zip")
}

// ForMaximumDPI returns a hint for pages whose artwork needs more than the
// allowed resolution.
func ForMaximumDPI(maxDPI int) string {
	if maxDPI <= 0 {
		return format("raise --max-dpi")
	}
	return format("raise --max-dpi above " + strconv.Itoa(maxDPI))
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-cbconv/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	// Find a user config path (contains .config/go-cbconv) to suggest
	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-cbconv") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForFormat returns hints for unknown page formats.
func ForFormat() string {
	return format("available: png, jpeg")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
