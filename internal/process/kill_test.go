package process

// KillProcessGroup is only exercised with an invalid PID here; real kills are
// covered by the runner cancellation tests, which target a helper process.

import "testing"

func TestKillProcessGroup_InvalidPID(t *testing.T) {
	t.Parallel()

	// Must not panic. PID 0 and real PIDs are never used: on Unix a negative
	// zero targets the current process group.
	KillProcessGroup(999999999)
}
