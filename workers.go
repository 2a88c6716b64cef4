package cbconv

import "runtime"

// Worker sizing constants.
const (
	// MinWorkers keeps a renderer busy while another parses its output.
	MinWorkers = 2

	// MaxWorkers caps concurrent Ghostscript processes.
	MaxWorkers = 8
)

// ResolveWorkers determines the worker count.
// Priority: explicit workers > GOMAXPROCS clamped to [MinWorkers, MaxWorkers].
// Exported for use by CLIs.
func ResolveWorkers(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs in containers.
	n := runtime.GOMAXPROCS(0)
	return min(max(n, MinWorkers), MaxWorkers)
}
