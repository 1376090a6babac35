package hlsserve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mediaPlaylistBody = `#EXTM3U
#EXT-X-VERSION:7
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-MAP:URI="init.mp4"
#EXTINF:6.000000,
seg_00000.m4s
`

func TestBuildFFmpegArgs(t *testing.T) {
	work := filepath.Join(string(os.PathSeparator), "tmp", "catt-hls-1")
	tail := []string{
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "128k",
		"-f", "hls",
		"-hls_segment_type", "fmp4",
		"-hls_time", "4",
		"-hls_list_size", "5",
		"-master_pl_name", "master.m3u8",
		"-hls_segment_filename", filepath.Join(work, "seg_%05d.m4s"),
		filepath.Join(work, "stream.m3u8"),
	}
	opts := Options{SegmentSeconds: 4, ListSize: 5}

	tt := []struct {
		name string
		src  Sources
		head []string
	}{
		{
			name: "muxed",
			src:  Sources{Video: "https://v"},
			head: []string{"-hide_banner", "-loglevel", "warning", "-re", "-i", "https://v", "-map", "0:v:0", "-map", "0:a:0"},
		},
		{
			name: "split",
			src:  Sources{Video: "https://v", Audio: "https://a"},
			head: []string{"-hide_banner", "-loglevel", "warning", "-re", "-i", "https://v", "-i", "https://a", "-map", "0:v:0", "-map", "1:a:0"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildFFmpegArgs(tc.src, opts, work)
			assert.Equal(t, slices.Concat(tc.head, tail), got)
		})
	}
}

func TestBuildFFmpegArgsDefaults(t *testing.T) {
	got := BuildFFmpegArgs(Sources{Video: "v"}, Options{}, "/w")
	assert.Equal(t, "6", got[slices.Index(got, "-hls_time")+1])
	assert.Equal(t, "10", got[slices.Index(got, "-hls_list_size")+1])
}

func TestResolveSources(t *testing.T) {
	orig := runOutput
	t.Cleanup(func() { runOutput = orig })

	var gotArgs []string
	tt := []struct {
		name    string
		out     string
		err     error
		want    Sources
		wantErr bool
	}{
		{name: "muxed", out: "https://muxed\n", want: Sources{Video: "https://muxed"}},
		{name: "split", out: "https://video\nhttps://audio\n", want: Sources{Video: "https://video", Audio: "https://audio"}},
		{name: "empty", out: "\n", wantErr: true},
		{name: "failure", err: errors.New("exit status 1"), wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			runOutput = func(_ context.Context, name string, args ...string) ([]byte, error) {
				gotArgs = append([]string{name}, args...)
				return []byte(tc.out), tc.err
			}

			got, err := ResolveSources(context.Background(), "yt-dlp", "https://youtu.be/x")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	assert.Equal(t, []string{"yt-dlp", "-f", ytdlpFormat, "--get-url", "--no-playlist", "https://youtu.be/x"}, gotArgs)
}

func TestFileServer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "master.m3u8"), []byte("#EXTM3U\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_00000.m4s"), []byte("seg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.ts"), []byte("ts"), 0o644))

	srv := httptest.NewServer(NewFileServer(dir))
	t.Cleanup(srv.Close)

	tt := map[string]string{
		"/master.m3u8":   "application/vnd.apple.mpegurl",
		"/seg_00000.m4s": "video/iso.segment",
		"/old.ts":        "video/mp2t",
	}
	for p, ct := range tt {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.Equal(t, ct, resp.Header.Get("Content-Type"), p)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), p)
	}

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/master.m3u8", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/missing.m3u8")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWaitForPlaylist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.m3u8")

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(path, []byte(mediaPlaylistBody), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, WaitForPlaylist(ctx, path))
}

func TestWaitForPlaylistNeedsSegments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.m3u8")
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\n#EXT-X-VERSION:7\n#EXT-X-TARGETDURATION:6\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, WaitForPlaylist(ctx, path), context.DeadlineExceeded)
}

func TestIsSafeTempDir(t *testing.T) {
	tempRoot := os.TempDir()
	if isSafeTempDir(tempRoot) {
		t.Fatalf("should not allow removing the temp root")
	}
	if !isSafeTempDir(filepath.Join(tempRoot, "catt-hls-123")) {
		t.Fatalf("expected safe temp dir")
	}
	if isSafeTempDir(filepath.Join(tempRoot, "other-123")) {
		t.Fatalf("should not allow foreign dirs")
	}
	if isSafeTempDir(filepath.Join(string(os.PathSeparator), "etc", "catt-hls-123")) {
		t.Fatalf("should not allow outside temp")
	}
}

func TestPrepareWorkDir(t *testing.T) {
	dir, owned, err := prepareWorkDir("")
	require.NoError(t, err)
	assert.True(t, owned)
	assert.True(t, isSafeTempDir(dir))
	require.NoError(t, removeWorkDir(dir))
	assert.NoDirExists(t, dir)

	want := filepath.Join(t.TempDir(), "nested", "work")
	dir, owned, err = prepareWorkDir(want)
	require.NoError(t, err)
	assert.False(t, owned)
	assert.DirExists(t, dir)
	assert.Error(t, removeWorkDir(dir))
}

func TestPlaylistURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.5:8000/master.m3u8", PlaylistURL("192.168.1.5", 8000))
}

func TestRunMissingTool(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(string) (string, error) { return "", errors.New("not found") }

	p := &Pipeline{URL: "https://youtu.be/x"}
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrMissingTool)
	assert.Contains(t, err.Error(), "yt-dlp")
}
