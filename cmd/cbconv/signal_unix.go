//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals includes SIGHUP so closing the terminal stops Ghostscript.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
