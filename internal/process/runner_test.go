package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

// helperCommand re-executes the test binary as a fake external tool.
func helperCommand(mode string, args ...string) Command {
	return Command{
		Path: os.Args[0],
		Args: append([]string{"-test.run=TestHelperProcess", "--", mode}, args...),
		Env:  append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"),
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	mode, rest := args[1], args[2:]

	switch mode {
	case "echo":
		fmt.Fprint(os.Stdout, strings.Join(rest, " "))
	case "fail":
		for _, line := range rest {
			fmt.Fprintln(os.Stderr, line)
		}
		os.Exit(3)
	case "flood":
		chunk := make([]byte, 32*1024)
		for {
			if _, err := os.Stdout.Write(chunk); err != nil {
				os.Exit(1)
			}
		}
	case "sleep":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func TestRunner_StreamsStdout(t *testing.T) {
	t.Parallel()

	r := NewRunner(helperCommand("echo", "hello", "world"))

	var got []byte
	err := r.Start(context.Background(), func(rd io.Reader) error {
		var err error
		got, err = io.ReadAll(rd)
		return err
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	code, err := r.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if string(got) != "hello world" {
		t.Errorf("stdout = %q, want %q", got, "hello world")
	}
	if errs := r.Errors(); len(errs) != 0 {
		t.Errorf("Errors() = %v, want none", errs)
	}
}

func TestRunner_CollectsStderrAndExitCode(t *testing.T) {
	t.Parallel()

	r := NewRunner(helperCommand("fail", "first problem", "second problem"))
	if err := r.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	code, err := r.Wait()
	if !errors.Is(err, ErrExitStatus) {
		t.Errorf("Wait() error = %v, want %v", err, ErrExitStatus)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}

	want := []string{"first problem", "second problem"}
	got := r.Errors()
	if len(got) != len(want) {
		t.Fatalf("Errors() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Errors()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Repeated Wait returns the same outcome.
	code2, err2 := r.Wait()
	if code2 != code || !errors.Is(err2, ErrExitStatus) {
		t.Errorf("second Wait() = (%d, %v), want (%d, %v)", code2, err2, code, err)
	}
}

func TestRunner_HandlerErrorStopsProcess(t *testing.T) {
	t.Parallel()

	r := NewRunner(helperCommand("flood"))
	parseErr := errors.New("bad stream")

	err := r.Start(context.Background(), func(rd io.Reader) error {
		buf := make([]byte, 10)
		_, _ = rd.Read(buf)
		return parseErr
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_, err = r.Wait()
	if !errors.Is(err, ErrOutput) || !errors.Is(err, parseErr) {
		t.Errorf("Wait() error = %v, want %v wrapping %v", err, ErrOutput, parseErr)
	}
}

func TestRunner_CancelKillsProcess(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(helperCommand("sleep"))
	if err := r.Start(ctx, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Wait()
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Wait() after cancel returned nil error")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("process not killed after cancel")
	}
}

func TestRunner_CloseKillsRunningProcess(t *testing.T) {
	t.Parallel()

	r := NewRunner(helperCommand("sleep"))
	if err := r.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = r.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Close() did not return")
	}
}

func TestRunner_StartTwice(t *testing.T) {
	t.Parallel()

	r := NewRunner(helperCommand("echo"))
	if err := r.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Close()

	if err := r.Start(context.Background(), nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestRunner_StartMissingBinary(t *testing.T) {
	t.Parallel()

	r := NewRunner(Command{Path: "/nonexistent/cbconv-tool"})
	if err := r.Start(context.Background(), nil); !errors.Is(err, ErrStart) {
		t.Errorf("Start() error = %v, want %v", err, ErrStart)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRunner_UseBeforeStartPanics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call func(r *Runner)
	}{
		{"Errors", func(r *Runner) { _ = r.Errors() }},
		{"Wait", func(r *Runner) { _, _ = r.Wait() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			defer func() {
				if recover() == nil {
					t.Errorf("%s before Start did not panic", tt.name)
				}
			}()
			tt.call(NewRunner(helperCommand("echo")))
		})
	}
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	c := Command{Path: "gs", Args: []string{"-r150", "My Book.pdf"}}
	want := `gs -r150 "My Book.pdf"`
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
