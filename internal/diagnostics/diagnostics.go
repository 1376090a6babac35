// Package diagnostics checks the external tools the application drives.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// MinCattVersion is the oldest catt release with every verb the session uses.
const MinCattVersion = "v0.10.0"

const probeTimeout = 5 * time.Second

var (
	ErrNotFound   = errors.New("not found in PATH")
	ErrTooOld     = errors.New("version too old")
	ErrBadVersion = errors.New("invalid version")
)

// Swapped in tests.
var (
	lookPath   = exec.LookPath
	runVersion = func(ctx context.Context, path string, arg string) (string, error) {
		out, err := exec.CommandContext(ctx, path, arg).CombinedOutput()
		return string(out), err
	}
)

var versionRe = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// Tool describes one external executable.
type Tool struct {
	Name       string
	Binary     string
	VersionArg string
	MinVersion string
	// Purpose is shown next to missing tools.
	Purpose string
}

// Result is the outcome of probing one Tool.
type Result struct {
	Tool    Tool
	Path    string
	Version string
	Err     error
}

// OK reports whether the tool is usable.
func (r Result) OK() bool { return r.Err == nil }

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%-8s MISSING  %v (%s)", r.Tool.Name, r.Err, r.Tool.Purpose)
	}
	return fmt.Sprintf("%-8s ok       %s %s", r.Tool.Name, r.Path, r.Version)
}

// Tools returns the default probe list. cattPath overrides the catt binary.
func Tools(cattPath string) []Tool {
	if cattPath == "" {
		cattPath = "catt"
	}
	return []Tool{
		{Name: "catt", Binary: cattPath, VersionArg: "--version", MinVersion: MinCattVersion, Purpose: "casting backend"},
		{Name: "ffmpeg", Binary: "ffmpeg", VersionArg: "-version", Purpose: "hls streaming"},
		{Name: "yt-dlp", Binary: "yt-dlp", VersionArg: "--version", Purpose: "hls source resolution"},
	}
}

// Check probes every tool.
func Check(ctx context.Context, tools []Tool) []Result {
	results := make([]Result, 0, len(tools))
	for _, t := range tools {
		results = append(results, Probe(ctx, t))
	}
	return results
}

// Probe locates one tool and, when it declares a MinVersion, verifies it.
func Probe(ctx context.Context, t Tool) Result {
	r := Result{Tool: t}

	path, err := lookPath(t.Binary)
	if err != nil {
		r.Err = ErrNotFound
		return r
	}
	r.Path = path

	if t.VersionArg == "" {
		return r
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := runVersion(ctx, path, t.VersionArg)
	if err != nil {
		r.Err = fmt.Errorf("Probe: %s %s: %w", t.Binary, t.VersionArg, err)
		return r
	}

	r.Version = extractVersion(out)
	if t.MinVersion == "" {
		return r
	}

	cmp, err := compareVersions(r.Version, t.MinVersion)
	if err != nil {
		r.Err = err
		return r
	}
	if cmp < 0 {
		r.Err = fmt.Errorf("%w: %s < %s", ErrTooOld, r.Version, t.MinVersion)
	}
	return r
}

func extractVersion(out string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return versionRe.FindString(first)
}

// normalize adds a "v" prefix to the version string if it's missing.
// The semver package strictly requires the "v" prefix (e.g., "v1.2.3").
func normalize(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

// compareVersions returns 1 if v1 > v2, -1 if v1 < v2, and 0 if equal.
func compareVersions(v1, v2 string) (int, error) {
	v1Norm := normalize(v1)
	v2Norm := normalize(v2)

	if !semver.IsValid(v1Norm) {
		return 0, fmt.Errorf("%w: %q", ErrBadVersion, v1)
	}
	if !semver.IsValid(v2Norm) {
		return 0, fmt.Errorf("%w: %q", ErrBadVersion, v2)
	}

	return semver.Compare(v1Norm, v2Norm), nil
}
