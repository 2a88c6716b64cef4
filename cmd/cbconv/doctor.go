package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	cbconv "github.com/alnah/go-cbconv"
	"github.com/alnah/go-cbconv/internal/archive"
	"github.com/alnah/go-cbconv/internal/fileutil"
	"github.com/alnah/go-cbconv/internal/process"
	"github.com/alnah/go-cbconv/internal/render"
)

// versionTimeout bounds each tool version probe.
const versionTimeout = 10 * time.Second

// Doctor statuses, from best to worst.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

type doctorResult struct {
	Status   string     `json:"status"`
	Tools    []toolInfo `json:"tools"`
	Host     hostInfo   `json:"host"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// toolInfo describes one external binary.
type toolInfo struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
}

type hostInfo struct {
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	CPUs         int    `json:"cpus"`
	Workers      int    `json:"workers"`
	Container    string `json:"container,omitempty"` // detection signal, empty outside containers
	CI           bool   `json:"ci"`
	TempDir      string `json:"temp_dir"`
	TempWritable bool   `json:"temp_writable"`
}

// toolSpec says where to look for a tool and how to make it print a banner.
type toolSpec struct {
	name        string
	explicit    string
	candidates  []string
	versionArgs []string
	required    bool
	missingHint string
}

// tool returns the entry named name, or a zero toolInfo.
func (r *doctorResult) tool(name string) toolInfo {
	for _, t := range r.Tools {
		if t.Name == name {
			return t
		}
	}
	return toolInfo{}
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Warnings still exit 0; only errors make the environment unusable.
func runDoctorCmd(args []string, env *Environment) int {
	asJSON := false
	for _, arg := range args {
		if arg == "--json" {
			asJSON = true
		}
	}

	result := runDoctor(context.Background(), loadEnvConfig())

	if asJSON {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(ctx context.Context, envCfg *envConfig) *doctorResult {
	result := &doctorResult{
		Host: hostInfo{
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
			Workers: cbconv.ResolveWorkers(envCfg.Workers),
			TempDir: os.TempDir(),
		},
	}

	specs := []toolSpec{
		{
			name:        "ghostscript",
			explicit:    envCfg.Ghostscript,
			candidates:  ghostscriptNames(),
			versionArgs: []string{"--version"},
			required:    true,
			missingHint: "Ghostscript not found. Install it or set CBCONV_GHOSTSCRIPT",
		},
		{
			// 7-Zip prints its banner when run without a command.
			name:        "7-zip",
			explicit:    envCfg.SevenZip,
			candidates:  []string{archive.DefaultTool, "7zz", "7za"},
			missingHint: "7-Zip not found. --archive will fail; install it or set CBCONV_7Z",
		},
	}
	for _, s := range specs {
		info := checkTool(ctx, s)
		result.Tools = append(result.Tools, info)
		switch {
		case info.Found:
		case s.required:
			result.Errors = append(result.Errors, s.missingHint)
		default:
			result.Warnings = append(result.Warnings, s.missingHint)
		}
	}

	result.Host.Container = containerSignal()
	result.Host.CI = runningInCI()
	if err := fileutil.DirWritable(result.Host.TempDir); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Temp directory not writable: %s", result.Host.TempDir))
	} else {
		result.Host.TempWritable = true
	}

	switch {
	case len(result.Errors) > 0:
		result.Status = statusErrors
	case len(result.Warnings) > 0:
		result.Status = statusWarnings
	default:
		result.Status = statusReady
	}
	return result
}

func ghostscriptNames() []string {
	if runtime.GOOS == "windows" {
		return []string{"gswin64c", "gswin32c", render.DefaultTool}
	}
	return []string{render.DefaultTool}
}

// checkTool locates a tool, preferring an explicit path over the candidate
// names, and reads the first line it prints.
func checkTool(ctx context.Context, s toolSpec) toolInfo {
	info := toolInfo{Name: s.name, Required: s.required}

	names := s.candidates
	if s.explicit != "" {
		names = []string{s.explicit}
	}
	for _, name := range names {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		info.Found, info.Path = true, path
		break
	}
	if !info.Found {
		return info
	}

	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	info.Version, _ = toolVersion(ctx, info.Path, s.versionArgs)
	return info
}

// toolVersion runs path with args and returns the first non-empty line of
// its output.
func toolVersion(ctx context.Context, path string, args []string) (string, error) {
	var first string
	r := process.NewRunner(process.Command{Path: path, Args: args})
	err := r.Start(ctx, func(out io.Reader) error {
		sc := bufio.NewScanner(out)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" && first == "" {
				first = line
			}
		}
		return sc.Err()
	})
	if err != nil {
		return "", err
	}
	defer r.Close()

	// Some tools exit non-zero after printing usage; the banner still counts.
	if _, err := r.Wait(); err != nil && first == "" {
		return "", err
	}
	return first, nil
}

// containerSignal returns which container marker was found, if any.
func containerSignal() string {
	switch {
	case fileutil.FileExists("/.dockerenv"):
		return "/.dockerenv"
	case os.Getenv("container") != "":
		return "container=" + os.Getenv("container")
	case os.Getenv("KUBERNETES_SERVICE_HOST") != "":
		return "KUBERNETES_SERVICE_HOST"
	}
	return ""
}

func runningInCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// printDoctorResult writes the report as "[LEVEL] message" lines grouped
// by section.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintf(w, "cbconv doctor\n\n")

	fmt.Fprintln(w, "Tools")
	for _, t := range r.Tools {
		switch {
		case !t.Found && t.Required:
			fmt.Fprintf(w, "  [ERROR] %s: not found\n", t.Name)
		case !t.Found:
			fmt.Fprintf(w, "  [WARN] %s: not found\n", t.Name)
		case t.Version != "":
			fmt.Fprintf(w, "  [OK] %s: %s (%s)\n", t.Name, t.Path, t.Version)
		default:
			fmt.Fprintf(w, "  [OK] %s: %s\n", t.Name, t.Path)
		}
	}
	fmt.Fprintln(w)

	h := r.Host
	fmt.Fprintln(w, "Host")
	fmt.Fprintf(w, "  [OK] %s/%s, %d CPUs, %d workers\n", h.OS, h.Arch, h.CPUs, h.Workers)
	if h.Container != "" {
		fmt.Fprintf(w, "  [OK] container (%s)\n", h.Container)
	}
	if h.CI {
		fmt.Fprintln(w, "  [OK] CI")
	}
	if h.TempWritable {
		fmt.Fprintf(w, "  [OK] %s writable\n", h.TempDir)
	} else {
		fmt.Fprintf(w, "  [ERROR] %s not writable\n", h.TempDir)
	}
	fmt.Fprintln(w)

	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "[WARN] %s\n", msg)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "[ERROR] %s\n", msg)
	}
	if len(r.Warnings)+len(r.Errors) > 0 {
		fmt.Fprintln(w)
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to convert")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	default:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
