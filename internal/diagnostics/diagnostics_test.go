package diagnostics

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

func stub(t *testing.T, paths map[string]string, versions map[string]string) {
	t.Helper()
	origLook, origRun := lookPath, runVersion
	t.Cleanup(func() { lookPath, runVersion = origLook, origRun })

	lookPath = func(name string) (string, error) {
		if p, ok := paths[name]; ok {
			return p, nil
		}
		return "", exec.ErrNotFound
	}
	runVersion = func(_ context.Context, path, _ string) (string, error) {
		v, ok := versions[path]
		if !ok {
			return "", errors.New("exit status 1")
		}
		return v, nil
	}
}

func TestCheck(t *testing.T) {
	stub(t,
		map[string]string{"catt": "/usr/bin/catt", "ffmpeg": "/usr/bin/ffmpeg"},
		map[string]string{
			"/usr/bin/catt":   "catt v0.12.11\n",
			"/usr/bin/ffmpeg": "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023\nbuilt with gcc",
		},
	)

	results := Check(context.Background(), Tools(""))
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if !results[0].OK() || results[0].Version != "0.12.11" {
		t.Fatalf("catt: %+v", results[0])
	}
	if !results[1].OK() || results[1].Version != "6.1.1" {
		t.Fatalf("ffmpeg: %+v", results[1])
	}
	if !errors.Is(results[2].Err, ErrNotFound) {
		t.Fatalf("yt-dlp: expected ErrNotFound, got %v", results[2].Err)
	}
}

func TestProbeVersionGate(t *testing.T) {
	tt := []struct {
		name    string
		output  string
		wantErr error
	}{
		{"new enough", "catt v0.10.0", nil},
		{"two part version", "catt, version 0.11", nil},
		{"too old", "catt v0.9.5", ErrTooOld},
		{"garbage", "catt dev build", ErrBadVersion},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			stub(t, map[string]string{"catt": "/bin/catt"}, map[string]string{"/bin/catt": tc.output})

			r := Probe(context.Background(), Tools("")[0])
			if tc.wantErr == nil && r.Err != nil {
				t.Fatalf("unexpected error: %v", r.Err)
			}
			if tc.wantErr != nil && !errors.Is(r.Err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, r.Err)
			}
		})
	}
}

func TestToolsCustomCattPath(t *testing.T) {
	if got := Tools("/opt/catt/bin/catt")[0].Binary; got != "/opt/catt/bin/catt" {
		t.Fatalf("got %q", got)
	}
}

func TestCompareVersions(t *testing.T) {
	tt := []struct {
		v1, v2 string
		want   int
	}{
		{"1.2.3", "v1.2.3", 0},
		{"v1.10.0", "1.9.9", 1},
		{"0.9", "0.10.0", -1},
	}
	for _, tc := range tt {
		got, err := compareVersions(tc.v1, tc.v2)
		if err != nil {
			t.Fatalf("compareVersions(%q, %q): %v", tc.v1, tc.v2, err)
		}
		if got != tc.want {
			t.Fatalf("compareVersions(%q, %q) = %d, want %d", tc.v1, tc.v2, got, tc.want)
		}
	}
}
