package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ergosteur/catt-cast-gui/hlsserve"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var hlsOpts struct {
	port    int
	seg     int
	list    int
	workdir string
	castTo  string
	openURL bool
	ytdlp   string
	ffmpeg  string
}

var hlsCmd = &cobra.Command{
	Use:   "hls <url>",
	Short: "Restream a web video as live HLS on the local network",
	Long: `Resolve a web video with yt-dlp, segment it with ffmpeg into fMP4 HLS
and serve the playlist over HTTP with CORS enabled.

With --cast the playlist is sent to a receiver once the first segment is
ready. The server keeps running until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hlsOpts.port <= 0 || hlsOpts.port > 65535 {
			return errors.Errorf("invalid port %d", hlsOpts.port)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logw := consoleLog()
		p := &hlsserve.Pipeline{
			URL: args[0],
			Options: hlsserve.Options{
				Port:           hlsOpts.port,
				SegmentSeconds: hlsOpts.seg,
				ListSize:       hlsOpts.list,
				WorkDir:        hlsOpts.workdir,
			},
			CastDevice:  hlsOpts.castTo,
			OpenBrowser: hlsOpts.openURL,
			YTDLP:       hlsOpts.ytdlp,
			FFmpeg:      hlsOpts.ffmpeg,
			Stdout:      cmd.OutOrStdout(),
			Stderr:      cmd.ErrOrStderr(),
			LogOutput:   logw,
		}
		if hlsOpts.castTo != "" {
			ch := newChannel(cfg, logw)
			defer ch.Close()
			p.Caster = ch
		}

		return errors.Wrap(p.Run(ctx), "hls")
	},
}

func init() {
	rootCmd.AddCommand(hlsCmd)

	f := hlsCmd.Flags()
	f.IntVar(&hlsOpts.port, "port", hlsserve.DefaultPort, "HTTP port")
	f.IntVar(&hlsOpts.seg, "seg", hlsserve.DefaultSegmentSeconds, "segment length in seconds")
	f.IntVar(&hlsOpts.list, "list", hlsserve.DefaultListSize, "segments kept in the live playlist")
	f.StringVar(&hlsOpts.workdir, "workdir", "", "segment directory (default: a temp dir removed on exit)")
	f.StringVar(&hlsOpts.castTo, "cast", "", "receiver to cast to (name for catt, ip:port for native)")
	f.BoolVar(&hlsOpts.openURL, "open", false, "open the playlist URL locally when ready")
	f.StringVar(&hlsOpts.ytdlp, "yt-dlp", "", "yt-dlp executable (default from PATH)")
	f.StringVar(&hlsOpts.ffmpeg, "ffmpeg", "", "ffmpeg executable (default from PATH)")
}
