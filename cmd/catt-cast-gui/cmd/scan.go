package cmd

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/ergosteur/catt-cast-gui/devices"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List Chromecast receivers on the local network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ch := newChannel(cfg, consoleLog())
		defer ch.Close()

		ctx := cmd.Context()
		if scanTimeout > 0 {
			var cancel func()
			ctx, cancel = contextWithTimeout(ctx, scanTimeout)
			defer cancel()
		}

		res, err := ch.Invoke(ctx, catt.ScanArgs(), catt.Blocking)
		if err != nil {
			return errors.Wrap(err, "scan")
		}

		list := catt.ParseScan(res.Output)
		if len(list) == 0 {
			return devices.ErrNoDeviceAvailable
		}
		printDevices(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 30*time.Second, "give up after this long")
}

func printDevices(w io.Writer, list []devices.Device) {
	boldStart, boldEnd := "", ""
	if runtime.GOOS == "linux" {
		boldStart = "\033[1m"
		boldEnd = "\033[0m"
	}

	fmt.Fprintln(w)
	for i, d := range list {
		fmt.Fprintf(w, "%sDevice %d%s\n", boldStart, i+1, boldEnd)
		fmt.Fprintf(w, "%s--------%s\n", boldStart, boldEnd)
		fmt.Fprintf(w, "%sName:%s    %s\n", boldStart, boldEnd, d.Name)
		fmt.Fprintf(w, "%sAddress:%s %s\n", boldStart, boldEnd, d.Addr)
		if d.Model != "" {
			fmt.Fprintf(w, "%sModel:%s   %s\n", boldStart, boldEnd, d.Model)
		}
		if d.IsAudioOnly {
			fmt.Fprintf(w, "%sType:%s    %s\n", boldStart, boldEnd, devices.AudioOnlyTag)
		}
		fmt.Fprintln(w)
	}
}
