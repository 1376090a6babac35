// Package hlsserve restreams a web video as live HLS on the local network
// and optionally casts it: yt-dlp resolves the media, ffmpeg segments it in
// realtime and a small HTTP server publishes the playlist.
package hlsserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/rs/zerolog"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/sync/errgroup"
)

const (
	ffmpegGrace     = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// ErrMissingTool is wrapped with the name of the missing executable.
var ErrMissingTool = errors.New("missing in PATH")

// Caster sends the playlist URL to a receiver. *catt.Runner implements it.
type Caster interface {
	Invoke(ctx context.Context, args []string, mode catt.Mode) (catt.Result, error)
}

// Pipeline wires yt-dlp, ffmpeg, the file server and an optional cast.
type Pipeline struct {
	URL     string
	Options Options

	// CastDevice, when set, is cast the playlist URL once it is ready.
	CastDevice string
	Caster     Caster
	// OpenBrowser opens the playlist URL locally once it is ready.
	OpenBrowser bool

	YTDLP  string
	FFmpeg string

	// Stdout receives the user facing progress lines, Stderr ffmpeg's.
	Stdout io.Writer
	Stderr io.Writer

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// Swapped in tests.
var (
	lookPath = exec.LookPath
	openURL  = open.Run
	localIP  = LocalIP
)

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (p *Pipeline) Log() *zerolog.Logger {
	if p.LogOutput != nil {
		p.initLogOnce.Do(func() {
			p.Logger = zerolog.New(p.LogOutput).With().Timestamp().Str("Component", "hlsserve").Logger()
		})
	}
	return &p.Logger
}

func (p *Pipeline) printf(format string, a ...any) {
	if p.Stdout != nil {
		fmt.Fprintf(p.Stdout, format, a...)
	}
}

// PlaylistURL is the address receivers use to reach the master playlist.
func PlaylistURL(ip string, port int) string {
	return "http://" + net.JoinHostPort(ip, strconv.Itoa(port)) + "/" + MasterPlaylist
}

// Run streams until ctx is cancelled or a stage fails. The file server
// keeps running after ffmpeg finishes so a receiver can play out the
// remaining segments. A temp work dir is removed on return.
func (p *Pipeline) Run(ctx context.Context) error {
	p.Options.setDefaults()

	ytdlp, err := p.need(p.YTDLP, "yt-dlp")
	if err != nil {
		return err
	}
	ffmpeg, err := p.need(p.FFmpeg, "ffmpeg")
	if err != nil {
		return err
	}
	if p.CastDevice != "" && p.Caster == nil {
		return errors.New("Run: cast requested without a caster")
	}

	src, err := ResolveSources(ctx, ytdlp, p.URL)
	if err != nil {
		return err
	}
	p.Log().Debug().Str("Method", "Run").Bool("Muxed", src.Muxed()).Msg("resolved sources")

	work, owned, err := prepareWorkDir(p.Options.WorkDir)
	if err != nil {
		return err
	}
	if owned {
		defer func() {
			if err := removeWorkDir(work); err != nil {
				p.Log().Error().Str("Method", "Run").Err(err).Msg("cleanup work dir")
			}
		}()
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", strconv.Itoa(p.Options.Port)))
	if err != nil {
		return fmt.Errorf("Run: listen: %w", err)
	}

	playlistURL := PlaylistURL(localIP(), p.Options.Port)
	p.printf("[i] HLS at: %s\n", playlistURL)

	srv := &http.Server{
		Handler:           NewFileServer(work),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	g.Go(func() error {
		return p.runFFmpeg(gctx, ffmpeg, BuildFFmpegArgs(src, p.Options, work))
	})

	g.Go(func() error {
		return p.announce(gctx, filepath.Join(work, MediaPlaylist), playlistURL)
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pipeline) need(override, name string) (string, error) {
	bin := override
	if bin == "" {
		bin = name
	}
	path, err := lookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrMissingTool)
	}
	return path, nil
}

// runFFmpeg runs ffmpeg in its own process group until it exits or ctx is
// cancelled. A clean exit is not an error.
func (p *Pipeline) runFFmpeg(ctx context.Context, bin string, args []string) error {
	p.Log().Debug().Str("Method", "runFFmpeg").Strs("Args", args).Msg("starting ffmpeg")

	cmd := exec.Command(bin, args...)
	cmd.Stderr = p.Stderr
	cmd.WaitDelay = ffmpegGrace

	proc, err := catt.StartGroup(cmd, ffmpegGrace)
	if err != nil {
		return fmt.Errorf("runFFmpeg: start: %w", err)
	}

	select {
	case <-proc.Done():
	case <-ctx.Done():
		if err := proc.Terminate(); err != nil {
			p.Log().Error().Str("Method", "runFFmpeg").Err(err).Msg("terminate ffmpeg")
		}
		return ctx.Err()
	}

	if code := proc.ExitCode(); code != 0 {
		return fmt.Errorf("runFFmpeg: ffmpeg exited with code %d", code)
	}
	p.printf("[i] ffmpeg finished; still serving, press Ctrl-C to stop\n")
	return nil
}

// announce waits for the first segment, then casts and opens the URL as
// requested. Cast failures are reported but do not stop the stream.
func (p *Pipeline) announce(ctx context.Context, mediaPlaylist, playlistURL string) error {
	if p.CastDevice == "" && !p.OpenBrowser {
		return nil
	}

	if err := WaitForPlaylist(ctx, mediaPlaylist); err != nil {
		return err
	}

	if p.CastDevice != "" {
		p.printf("[i] Casting to %s …\n", p.CastDevice)
		if _, err := p.Caster.Invoke(ctx, catt.CastArgs(p.CastDevice, playlistURL), catt.Blocking); err != nil {
			p.Log().Error().Str("Method", "announce").Str("Device", p.CastDevice).Err(err).Msg("cast failed")
			p.printf("[!] Cast failed: %v\n", err)
		}
	}

	if p.OpenBrowser {
		if err := openURL(playlistURL); err != nil {
			p.Log().Error().Str("Method", "announce").Err(err).Msg("open failed")
		}
	}
	return nil
}

// LocalIP returns the preferred outbound IPv4 address of this host, or
// 127.0.0.1 when there is no route.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
