package main

// Notes:
// - TestMain turns the test binary into a fake Ghostscript or 7-Zip when
//   GO_WANT_HELPER_PROCESS=1, so conversions run end to end without either
//   tool installed. Tests pointing CBCONV_GHOSTSCRIPT at the test binary use
//   t.Setenv and therefore cannot run in parallel.
// - Fake pages are dpi*80/96 by dpi*120/96 pixels.

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alnah/go-cbconv/internal/page"
)

func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") == "1" {
		os.Exit(fakeTool(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// fakeTool dispatches on the first argument: 7-Zip commands start with a
// bare letter, Ghostscript switches with a dash.
func fakeTool(args []string) int {
	if len(args) == 0 {
		fmt.Println()
		fmt.Println("7-Zip 23.01 (fake)")
		return 0
	}
	if args[0] == "--version" {
		fmt.Println("10.02.1")
		return 0
	}
	if args[0] == "a" {
		if err := fakeZip(args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return 0
	}
	if os.Getenv("FAKE_GS_FAIL") == "1" {
		fmt.Fprintln(os.Stderr, "Error: /syntaxerror in --token--")
		return 1
	}

	var dpi, first, last int
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "-r"):
			dpi, _ = strconv.Atoi(a[2:])
		case strings.HasPrefix(a, "-dFirstPage="):
			first, _ = strconv.Atoi(strings.TrimPrefix(a, "-dFirstPage="))
		case strings.HasPrefix(a, "-dLastPage="):
			last, _ = strconv.Atoi(strings.TrimPrefix(a, "-dLastPage="))
		}
	}
	for n := first; n <= last; n++ {
		img := image.NewGray(image.Rect(0, 0, dpi*80/96, dpi*120/96))
		if err := png.Encode(os.Stdout, img); err != nil {
			return 1
		}
	}
	return 0
}

func fakeZip(args []string) error {
	var output string
	var files []string
	for i, a := range args {
		if a == "--" {
			files = args[i+1:]
			break
		}
		if !strings.HasPrefix(a, "-") {
			output = a
		}
	}

	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// useFakeTools routes both tools to the test binary for the current test.
func useFakeTools(t *testing.T) {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("CBCONV_GHOSTSCRIPT", os.Args[0])
	t.Setenv("CBCONV_7Z", os.Args[0])
}

// writeBook writes a PDF with the given number of pages to dir. The first
// page embeds an 80x120 image; the others have none.
func writeBook(t *testing.T, dir, name string, pages int) string {
	t.Helper()

	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}

	catalog := add("")
	tree := add("")
	img := add("<< /Type /XObject /Subtype /Image /Width 80 /Height 120 /ColorSpace /DeviceGray /BitsPerComponent 8 /Length 1 >>\nstream\n\x00\nendstream")

	var kids []string
	for i := 0; i < pages; i++ {
		res := "<< >>"
		if i == 0 {
			res = fmt.Sprintf("<< /XObject << /Im0 %d 0 R >> >>", img)
		}
		id := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources %s >>", tree, res))
		kids = append(kids, fmt.Sprintf("%d 0 R", id))
	}
	objs[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree)
	objs[tree-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalog, xref)

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testEnv() (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	env := DefaultEnv()
	env.Stdout = &stdout
	env.Stderr = &stderr
	return env, &stdout, &stderr
}

// ---------------------------------------------------------------------------
// TestRunMain_Commands - Subcommand dispatch
// ---------------------------------------------------------------------------

func TestRunMain_Commands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no command", []string{"cbconv"}, ExitUsage, "", "Usage: cbconv"},
		{"version", []string{"cbconv", "version"}, ExitSuccess, "cbconv " + Version, ""},
		{"version flag", []string{"cbconv", "--version"}, ExitSuccess, "cbconv " + Version, ""},
		{"help", []string{"cbconv", "help"}, ExitSuccess, "Commands:", ""},
		{"help convert", []string{"cbconv", "help", "convert"}, ExitSuccess, "--min-dpi", ""},
		{"help doctor", []string{"cbconv", "help", "doctor"}, ExitSuccess, "--json", ""},
		{"help unknown", []string{"cbconv", "help", "nope"}, ExitSuccess, "", "Unknown command: nope"},
		{"unknown command", []string{"cbconv", "render"}, ExitUsage, "", "unknown command: render"},
		{"convert help flag", []string{"cbconv", "convert", "-h"}, ExitSuccess, "", "Usage: cbconv convert"},
		{"bad flag", []string{"cbconv", "convert", "--dpi", "3"}, ExitUsage, "", "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, stdout, stderr := testEnv()
			if code := runMain(tt.args, env); code != tt.wantCode {
				t.Errorf("runMain() = %d, want %d (stderr: %s)", code, tt.wantCode, stderr)
			}
			if !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want to contain %q", stdout, tt.wantStdout)
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_Convert - End-to-end conversion with fake tools
// ---------------------------------------------------------------------------

func TestRunMain_Convert(t *testing.T) {
	useFakeTools(t)

	dir := t.TempDir()
	book := writeBook(t, dir, "Vol 1.pdf", 3)
	out := filepath.Join(dir, "out")

	env, stdout, stderr := testEnv()
	code := runMain([]string{"cbconv", "convert", book, "-o", out, "-w", "2"}, env)
	if code != ExitSuccess {
		t.Fatalf("runMain() = %d, stderr: %s", code, stderr)
	}

	pagesDir := filepath.Join(out, "Vol 1")
	for n := 1; n <= 3; n++ {
		data, err := os.ReadFile(filepath.Join(pagesDir, page.FileName(n, "png")))
		if err != nil {
			t.Fatalf("page %d: %v", n, err)
		}
		size, _, err := page.DecodeSize(data)
		if err != nil {
			t.Fatal(err)
		}
		if size != (page.Size{Width: 80, Height: 120}) {
			t.Errorf("page %d size = %v, want 80x120", n, size)
		}
	}
	if !strings.Contains(stdout.String(), "Created "+pagesDir+" (3 pages)") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRunMain_ConvertImplicitCommand(t *testing.T) {
	useFakeTools(t)

	dir := t.TempDir()
	book := writeBook(t, dir, "book.pdf", 1)

	env, _, stderr := testEnv()
	if code := runMain([]string{"cbconv", book, "-q"}, env); code != ExitSuccess {
		t.Fatalf("runMain() = %d, stderr: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "book", page.FileName(1, "png"))); err != nil {
		t.Errorf("page not written next to the book: %v", err)
	}
}

func TestRunMain_ConvertDirectory(t *testing.T) {
	useFakeTools(t)

	in := t.TempDir()
	writeBook(t, in, "a.pdf", 2)
	writeBook(t, in, filepath.Join("series", "b.pdf"), 1)
	if err := os.WriteFile(filepath.Join(in, "notes.txt"), []byte("skip"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()

	env, stdout, stderr := testEnv()
	code := runMain([]string{"cbconv", "convert", in, "-o", out, "--archive"}, env)
	if code != ExitSuccess {
		t.Fatalf("runMain() = %d, stderr: %s", code, stderr)
	}

	for _, archive := range []string{filepath.Join(out, "a.cbz"), filepath.Join(out, "series", "b.cbz")} {
		zr, err := zip.OpenReader(archive)
		if err != nil {
			t.Errorf("archive %s: %v", archive, err)
			continue
		}
		if len(zr.File) == 0 {
			t.Errorf("archive %s is empty", archive)
		}
		zr.Close()
	}
	if _, err := os.Stat(filepath.Join(out, "a")); !os.IsNotExist(err) {
		t.Errorf("page directory kept after archiving: %v", err)
	}
	if !strings.Contains(stdout.String(), "2 succeeded, 0 failed") {
		t.Errorf("stdout = %q, want summary", stdout)
	}
}

func TestRunMain_ConvertRendererFailure(t *testing.T) {
	useFakeTools(t)
	t.Setenv("FAKE_GS_FAIL", "1")

	book := writeBook(t, t.TempDir(), "book.pdf", 2)

	env, _, stderr := testEnv()
	code := runMain([]string{"cbconv", "convert", book, "-o", t.TempDir(), "-v"}, env)
	if code != ExitRenderer {
		t.Errorf("runMain() = %d, want %d", code, ExitRenderer)
	}
	for _, want := range []string{"FAILED", "page 1", "page 2", "Metrics:", "cbconv_pages_failed_total"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestRunMain_ConvertErrors(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	notPDF := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(notPDF, []byte("not a pdf"), 0o600); err != nil {
		t.Fatal(err)
	}
	badConfig := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badConfig, []byte("workers: 500\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"no input", []string{"cbconv", "convert"}, ExitIO},
		{"missing file", []string{"cbconv", "convert", filepath.Join(dir, "missing.pdf")}, ExitIO},
		{"wrong extension", []string{"cbconv", "convert", txt}, ExitUsage},
		{"empty directory", []string{"cbconv", "convert", t.TempDir()}, ExitIO},
		{"unreadable document", []string{"cbconv", "convert", notPDF, "-o", t.TempDir()}, ExitIO},
		{"invalid config", []string{"cbconv", "convert", notPDF, "-c", badConfig}, ExitUsage},
		{"missing config", []string{"cbconv", "convert", notPDF, "-c", filepath.Join(dir, "none.yaml")}, ExitUsage},
		{"invalid format", []string{"cbconv", "convert", notPDF, "--format", "gif"}, ExitUsage},
		{"negative workers", []string{"cbconv", "convert", notPDF, "-w", "-1"}, ExitUsage},
		{"min above max", []string{"cbconv", "convert", notPDF, "--min-dpi", "300", "--max-dpi", "200"}, ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _, stderr := testEnv()
			if code := runMain(tt.args, env); code != tt.wantCode {
				t.Errorf("runMain() = %d, want %d (stderr: %s)", code, tt.wantCode, stderr)
			}
		})
	}
}

func TestLooksLikePDF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arg  string
		want bool
	}{
		{"book.pdf", true},
		{"BOOK.PDF", true},
		{"dir/vol 1.pdf", true},
		{"convert", false},
		{"book.cbz", false},
	}
	for _, tt := range tests {
		if got := looksLikePDF(tt.arg); got != tt.want {
			t.Errorf("looksLikePDF(%q) = %v, want %v", tt.arg, got, tt.want)
		}
	}
}
