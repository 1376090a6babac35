//go:build !windows

package hlsserve

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeYTDLP = `#!/bin/sh
echo "https://cdn.example/video.mp4"
echo "https://cdn.example/audio.m4a"
`

// fakeFFmpeg writes a ready playlist next to its last argument and then
// idles like a live remux.
const fakeFFmpeg = `#!/bin/sh
for last; do :; done
dir=$(dirname "$last")
printf '#EXTM3U\n#EXT-X-VERSION:7\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:0\n#EXT-X-MAP:URI="init.mp4"\n#EXTINF:6.000000,\nseg_00000.m4s\n' > "$last"
printf '#EXTM3U\n#EXT-X-VERSION:7\n#EXT-X-STREAM-INF:BANDWIDTH=1000000\nstream.m3u8\n' > "$dir/master.m3u8"
printf 'data' > "$dir/seg_00000.m4s"
exec sleep 30
`

type fakeCaster struct {
	mu   sync.Mutex
	args [][]string
}

func (f *fakeCaster) Invoke(_ context.Context, args []string, _ catt.Mode) (catt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, args)
	return catt.Result{}, nil
}

func (f *fakeCaster) calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.args...)
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o755))
	return p
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRunServesAndCasts(t *testing.T) {
	origIP := localIP
	t.Cleanup(func() { localIP = origIP })
	localIP = func() string { return "127.0.0.1" }

	bin := t.TempDir()
	work := filepath.Join(t.TempDir(), "work")
	port := freePort(t)
	caster := &fakeCaster{}
	stdout := &syncBuffer{}

	p := &Pipeline{
		URL:        "https://youtu.be/dQw4w9WgXcQ",
		Options:    Options{Port: port, WorkDir: work},
		CastDevice: "Living Room",
		Caster:     caster,
		YTDLP:      writeScript(t, bin, "yt-dlp", fakeYTDLP),
		FFmpeg:     writeScript(t, bin, "ffmpeg", fakeFFmpeg),
		Stdout:     stdout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	playlistURL := PlaylistURL("127.0.0.1", port)
	require.Eventually(t, func() bool { return len(caster.calls()) == 1 }, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, catt.CastArgs("Living Room", playlistURL), caster.calls()[0])
	assert.Contains(t, stdout.String(), "[i] HLS at: "+playlistURL)
	assert.Contains(t, stdout.String(), "[i] Casting to Living Room")

	resp, err := http.Get(playlistURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.apple.mpegurl", resp.Header.Get("Content-Type"))

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	assert.DirExists(t, work, "a caller supplied work dir is kept")
	_, err = http.Get(playlistURL)
	assert.Error(t, err, "server must be shut down")
}

func TestRunFFmpegFailure(t *testing.T) {
	origIP := localIP
	t.Cleanup(func() { localIP = origIP })
	localIP = func() string { return "127.0.0.1" }

	bin := t.TempDir()
	p := &Pipeline{
		URL:     "https://youtu.be/dQw4w9WgXcQ",
		Options: Options{Port: freePort(t), WorkDir: t.TempDir()},
		YTDLP:   writeScript(t, bin, "yt-dlp", fakeYTDLP),
		FFmpeg:  writeScript(t, bin, "ffmpeg", "#!/bin/sh\nexit 3\n"),
	}

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "exited with code 3"), err.Error())
}
