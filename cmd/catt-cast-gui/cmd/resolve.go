package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ergosteur/catt-cast-gui/piped"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	resolveBase       string
	resolveContainers string
	resolveCodecs     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url-or-id>",
	Short: "Print the best direct media URL for a video via a Piped relay",
	Long: `Resolve a YouTube style URL or bare video ID into a direct media URL
through a Piped compatible API.

Progressive streams are preferred. When only an HLS (.m3u8) or DASH (.mpd)
manifest is available it is printed instead, with a note on stderr.

Exit codes: 0 on success, 1 on bad arguments or network errors, 2 when no
suitable stream exists.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveBase, "base", "", "Piped API host (default from settings)")
	resolveCmd.Flags().StringVar(&resolveContainers, "prefer-container", "mp4,webm", "comma separated container preference")
	resolveCmd.Flags().StringVar(&resolveCodecs, "prefer-codecs", "h264,av1,vp9", "comma separated codec preference")
}

func runResolve(cmd *cobra.Command, args []string) error {
	host := resolveBase
	if host == "" {
		host = cfg.Relay.Host
	}
	if host == "" {
		return &exitError{code: 1, err: errors.New("a Piped API host is required (--base)")}
	}

	client := newResolver(cfg, consoleLog())
	if changed(cmd.Flags(), "prefer-container", "prefer-codecs") {
		client.Preferences = piped.Preferences{
			Containers: piped.ParseList(resolveContainers),
			Codecs:     piped.ParseList(resolveCodecs),
		}
	}

	timeout := client.Timeout
	if timeout <= 0 {
		timeout = piped.DefaultTimeout
	}
	ctx, cancel := contextWithTimeout(cmd.Context(), timeout)
	defer cancel()

	u, err := client.Resolve(ctx, args[0], host)
	if err != nil {
		code := 1
		if errors.Is(err, piped.ErrNoStreamAvailable) {
			code = 2
		}
		return &exitError{code: code, err: err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), u)
	switch piped.ManifestKind(u) {
	case "hls":
		fmt.Fprintln(cmd.ErrOrStderr(), "note: returned an HLS manifest (.m3u8)")
	case "dash":
		fmt.Fprintln(cmd.ErrOrStderr(), "note: returned a DASH manifest (.mpd)")
	}
	return nil
}

func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, d)
}
