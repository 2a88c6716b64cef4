// Package process runs external tools with a streamed stdout, a collected
// stderr and process-group cleanup.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sentinel errors for runner operations.
var (
	ErrAlreadyStarted = errors.New("process already started")
	ErrStart          = errors.New("failed to start process")
	ErrExitStatus     = errors.New("process exited with non-zero status")
	ErrOutput         = errors.New("failed to process output")
)

// waitDelay bounds how long Wait keeps pipes open after the process is killed.
const waitDelay = 5 * time.Second

// Command describes an external tool invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string // nil inherits the current environment
}

// String renders the command line for diagnostics.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Path)
	for _, a := range c.Args {
		if strings.ContainsAny(a, " \t\"") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// StdoutHandler consumes the process standard output. It runs on its own
// goroutine and should read until EOF.
type StdoutHandler func(r io.Reader) error

// Runner runs one Command once. Start must be called before any other
// method; calling them first panics.
type Runner struct {
	command Command

	mu      sync.Mutex
	started bool
	cmd     *exec.Cmd
	pumps   *errgroup.Group
	stderr  []string

	waitOnce sync.Once
	exited   atomic.Bool
	exitCode int
	waitErr  error
}

// NewRunner prepares a runner for cmd.
func NewRunner(cmd Command) *Runner {
	return &Runner{command: cmd, exitCode: -1}
}

// Command returns the command this runner executes.
func (r *Runner) Command() Command {
	return r.command
}

// Start spawns the process. Its stdout is handed to stdout (or discarded
// when nil) and its stderr is collected line by line. Cancelling ctx kills
// the whole process group.
func (r *Runner) Start(ctx context.Context, stdout StdoutHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}

	// #nosec G204 -- tool path comes from configuration
	cmd := exec.CommandContext(ctx, r.command.Path, r.command.Args...)
	cmd.Dir = r.command.Dir
	cmd.Env = r.command.Env
	cmd.SysProcAttr = groupAttr()
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		KillProcessGroup(cmd.Process.Pid)
		return nil
	}

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStart, err)
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStart, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStart, r.command.Path, err)
	}

	r.started = true
	r.cmd = cmd
	r.pumps = &errgroup.Group{}

	r.pumps.Go(func() error {
		if stdout == nil {
			_, err := io.Copy(io.Discard, outPipe)
			return err
		}
		if err := stdout(outPipe); err != nil {
			// Stop the producer and unblock its writes.
			KillProcessGroup(cmd.Process.Pid)
			_, _ = io.Copy(io.Discard, outPipe)
			return err
		}
		return nil
	})
	r.pumps.Go(func() error {
		r.collectStderr(errPipe)
		return nil
	})

	return nil
}

func (r *Runner) collectStderr(rd io.Reader) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		r.mu.Lock()
		r.stderr = append(r.stderr, line)
		r.mu.Unlock()
	}
}

// Errors returns the stderr lines collected so far.
func (r *Runner) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustBeStarted("Errors")
	return append([]string(nil), r.stderr...)
}

// Wait blocks until the output has been consumed and the process has exited.
// It returns the exit code (-1 when unknown) and an error for output
// handling failures, cancellation, or a non-zero exit. Repeated calls return
// the same values.
func (r *Runner) Wait() (int, error) {
	r.mu.Lock()
	started, cmd, pumps := r.started, r.cmd, r.pumps
	r.mu.Unlock()

	if !started {
		panic("process: Wait called before Start")
	}

	r.waitOnce.Do(func() {
		// All reads must finish before cmd.Wait closes the pipes.
		pumpErr := pumps.Wait()
		waitErr := cmd.Wait()

		r.exited.Store(true)
		if cmd.ProcessState != nil {
			r.exitCode = cmd.ProcessState.ExitCode()
		}

		switch {
		case pumpErr != nil:
			r.waitErr = fmt.Errorf("%w: %w", ErrOutput, pumpErr)
		case waitErr != nil:
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) && r.exitCode > 0 {
				r.waitErr = fmt.Errorf("%w: %d", ErrExitStatus, r.exitCode)
			} else {
				r.waitErr = waitErr
			}
		}
	})

	return r.exitCode, r.waitErr
}

// Close kills the process group if it is still running and reaps it.
// Close before Start is a no-op.
func (r *Runner) Close() error {
	r.mu.Lock()
	started, cmd := r.started, r.cmd
	r.mu.Unlock()

	if !started {
		return nil
	}
	if !r.exited.Load() {
		KillProcessGroup(cmd.Process.Pid)
	}
	_, _ = r.Wait()
	return nil
}

func (r *Runner) mustBeStarted(op string) {
	if !r.started {
		panic("process: " + op + " called before Start")
	}
}
