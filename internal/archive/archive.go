// Package archive packs rendered pages into comic-book archives, and unpacks
// them, by driving 7-Zip.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/alnah/go-cbconv/internal/page"
	"github.com/alnah/go-cbconv/internal/process"
)

// DefaultTool is the 7-Zip binary looked up on PATH.
const DefaultTool = "7z"

// Sentinel errors.
var (
	ErrNoPages  = errors.New("no page files to archive")
	ErrCompress = errors.New("archive tool failed")
)

// Tool locates the archiver binary. Args are placed before the command.
type Tool struct {
	Path string
	Args []string
	Env  []string
}

// Compressor runs 7-Zip.
type Compressor struct {
	tool    Tool
	threads int
}

// NewCompressor creates a compressor using threads 7-Zip threads; zero
// leaves the choice to 7-Zip.
func NewCompressor(tool Tool, threads int) *Compressor {
	if tool.Path == "" {
		tool.Path = DefaultTool
	}
	return &Compressor{tool: tool, threads: threads}
}

// Error describes a failed archiver run.
type Error struct {
	Op       string
	Archive  string
	Command  string
	ExitCode int
	Stderr   []string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Archive, e.Err)
	if len(e.Stderr) > 0 {
		msg += ": " + e.Stderr[0]
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PageFiles lists the page artifacts in dir, ordered by page number.
func PageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n    int
		name string
	}
	var found []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := page.ParseFileName(e.Name()); ok {
			found = append(found, numbered{n, e.Name()})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names, nil
}

// Compress packs the page files of dir into a zip archive at output
// (conventionally a .cbz). It returns the number of pages packed.
func (c *Compressor) Compress(ctx context.Context, dir, output string) (int, error) {
	names, err := PageFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoPages, dir)
	}

	abs, err := filepath.Abs(output)
	if err != nil {
		return 0, err
	}
	// 7-Zip appends to an existing archive.
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	args := []string{"a", "-tzip", "-bd", "-y"}
	if c.threads > 0 {
		args = append(args, "-mmt="+strconv.Itoa(c.threads))
	}
	args = append(args, abs, "--")
	args = append(args, names...)

	if err := c.run(ctx, "compress", abs, dir, args); err != nil {
		return 0, err
	}
	return len(names), nil
}

func (c *Compressor) run(ctx context.Context, op, archive, dir string, args []string) error {
	runner := process.NewRunner(process.Command{
		Path: c.tool.Path,
		Args: append(append([]string(nil), c.tool.Args...), args...),
		Dir:  dir,
		Env:  c.tool.Env,
	})

	fail := func(code int, stderr []string, err error) error {
		return &Error{
			Op:       op,
			Archive:  archive,
			Command:  runner.Command().String(),
			ExitCode: code,
			Stderr:   stderr,
			Err:      fmt.Errorf("%w: %w", ErrCompress, err),
		}
	}

	if err := runner.Start(ctx, nil); err != nil {
		return fail(-1, nil, err)
	}
	defer runner.Close()

	code, err := runner.Wait()
	if err != nil {
		return fail(code, runner.Errors(), err)
	}
	return nil
}
