package hints

// Notes:
// - ForGhostscriptStart and ForSevenZip tests cannot use t.Parallel() because they:
//   1. Use t.Setenv() which modifies process environment
//   2. Modify the package-level IsInContainer variable

import (
	"strings"
	"testing"
)

func TestForGhostscriptStart_OnHost(t *testing.T) {
	orig := IsInContainer
	defer func() { IsInContainer = orig }()
	IsInContainer = func() bool { return false }

	t.Setenv("CBCONV_GHOSTSCRIPT", "")

	hint := ForGhostscriptStart()

	if !strings.Contains(hint, "hint:") {
		t.Error("expected hint prefix")
	}
	if !strings.Contains(hint, "Ghostscript (gs)") {
		t.Errorf("expected install suggestion, got %q", hint)
	}
	if !strings.Contains(hint, "CBCONV_GHOSTSCRIPT") {
		t.Errorf("expected CBCONV_GHOSTSCRIPT suggestion, got %q", hint)
	}
	if !strings.Contains(hint, "cbconv doctor") {
		t.Errorf("expected doctor suggestion, got %q", hint)
	}
}

func TestForGhostscriptStart_InContainer(t *testing.T) {
	orig := IsInContainer
	defer func() { IsInContainer = orig }()
	IsInContainer = func() bool { return true }

	t.Setenv("CBCONV_GHOSTSCRIPT", "")

	if hint := ForGhostscriptStart(); !strings.Contains(hint, "in the image") {
		t.Errorf("expected container suggestion, got %q", hint)
	}
}

func TestForGhostscriptStart_BinaryAlreadySet(t *testing.T) {
	orig := IsInContainer
	defer func() { IsInContainer = orig }()
	IsInContainer = func() bool { return false }

	t.Setenv("CBCONV_GHOSTSCRIPT", "/opt/gs/bin/gs")

	if hint := ForGhostscriptStart(); strings.Contains(hint, "CBCONV_GHOSTSCRIPT") {
		t.Errorf("should not suggest CBCONV_GHOSTSCRIPT when set, got %q", hint)
	}
}

func TestForSevenZip(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		t.Setenv("CBCONV_7Z", "")
		hint := ForSevenZip()
		if !strings.Contains(hint, "CBCONV_7Z") || !strings.Contains(hint, "--keep-pages") {
			t.Errorf("got %q", hint)
		}
	})

	t.Run("set", func(t *testing.T) {
		t.Setenv("CBCONV_7Z", "/usr/bin/7zz")
		if hint := ForSevenZip(); !strings.Contains(hint, "working 7-Zip") {
			t.Errorf("got %q", hint)
		}
	})
}

func TestForMaximumDPI(t *testing.T) {
	t.Parallel()
	tests := []struct {
		maxDPI int
		want   string
	}{
		{0, "raise --max-dpi"},
		{600, "raise --max-dpi above 600"},
	}
	for _, tt := range tests {
		if got := ForMaximumDPI(tt.maxDPI); !strings.HasSuffix(got, tt.want) {
			t.Errorf("ForMaximumDPI(%d) = %q, want suffix %q", tt.maxDPI, got, tt.want)
		}
	}
}

func TestForConfigNotFound(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		paths    []string
		contains string
	}{
		{
			name:     "empty paths",
			paths:    []string{},
			contains: "--config",
		},
		{
			name:     "with paths",
			paths:    []string{"./foo.yaml", "~/.config/go-cbconv/foo.yaml"},
			contains: "go-cbconv/foo.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hint := ForConfigNotFound(tt.paths)

			if !strings.Contains(hint, "hint:") {
				t.Error("expected hint prefix")
			}
			if !strings.Contains(hint, tt.contains) {
				t.Errorf("expected hint to contain %q, got %q", tt.contains, hint)
			}
		})
	}
}

func TestFormat_Consistency(t *testing.T) {
	t.Parallel()
	// All hints should start with newline, spaces, and "hint:"
	hints := []string{
		ForMaximumDPI(1200),
		ForOutputDirectory(),
		ForFormat(),
	}

	for _, h := range hints {
		if !strings.HasPrefix(h, "\n  hint: ") {
			t.Errorf("hint format inconsistent: %q", h)
		}
	}
	if formatHints(nil) != "" {
		t.Error("formatHints(nil) should be empty")
	}
}
