package hlsserve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultPort           = 8000
	DefaultSegmentSeconds = 6
	DefaultListSize       = 10

	MasterPlaylist = "master.m3u8"
	MediaPlaylist  = "stream.m3u8"
	segmentPattern = "seg_%05d.m4s"

	// ytdlpFormat prefers H.264 video and AAC audio, which receivers play
	// without transcoding.
	ytdlpFormat = "bestvideo[vcodec^=avc1][height>=?900]+bestaudio[ext=m4a]/bestvideo[ext=mp4]+bestaudio[ext=m4a]/best"
)

var ErrNoSources = errors.New("yt-dlp returned no media URLs")

// Sources are the direct media URLs for one video. Audio is empty when the
// format is a single muxed stream.
type Sources struct {
	Video string
	Audio string
}

// Muxed reports whether audio and video come from one input.
func (s Sources) Muxed() bool {
	return s.Audio == ""
}

// Options are the knobs of the HLS pipeline.
type Options struct {
	Port           int
	SegmentSeconds int
	ListSize       int
	WorkDir        string
}

func (o *Options) setDefaults() {
	if o.Port <= 0 {
		o.Port = DefaultPort
	}
	if o.SegmentSeconds <= 0 {
		o.SegmentSeconds = DefaultSegmentSeconds
	}
	if o.ListSize <= 0 {
		o.ListSize = DefaultListSize
	}
}

// runOutput is swapped in tests.
var runOutput = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// ResolveSources asks yt-dlp for the direct media URLs of pageURL.
func ResolveSources(ctx context.Context, ytdlp, pageURL string) (Sources, error) {
	out, err := runOutput(ctx, ytdlp, "-f", ytdlpFormat, "--get-url", "--no-playlist", pageURL)
	if err != nil {
		return Sources{}, fmt.Errorf("ResolveSources: %w", err)
	}

	var urls []string
	for line := range strings.Lines(string(out)) {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}

	switch len(urls) {
	case 0:
		return Sources{}, ErrNoSources
	case 1:
		return Sources{Video: urls[0]}, nil
	}
	return Sources{Video: urls[0], Audio: urls[1]}, nil
}

// BuildFFmpegArgs builds a realtime remux of src into fMP4 HLS inside
// workDir. Video is copied and audio re-encoded to AAC.
func BuildFFmpegArgs(src Sources, opts Options, workDir string) []string {
	opts.setDefaults()

	args := []string{
		"-hide_banner", "-loglevel", "warning",
		"-re", "-i", src.Video,
	}
	if src.Muxed() {
		args = append(args, "-map", "0:v:0", "-map", "0:a:0")
	} else {
		args = append(args, "-i", src.Audio, "-map", "0:v:0", "-map", "1:a:0")
	}

	return append(args,
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "128k",
		"-f", "hls",
		"-hls_segment_type", "fmp4",
		"-hls_time", strconv.Itoa(opts.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(opts.ListSize),
		"-master_pl_name", MasterPlaylist,
		"-hls_segment_filename", filepath.Join(workDir, segmentPattern),
		filepath.Join(workDir, MediaPlaylist),
	)
}
