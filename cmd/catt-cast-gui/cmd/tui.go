package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ergosteur/catt-cast-gui/internal/interactive"
	"github.com/ergosteur/catt-cast-gui/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [reference]",
	Short: "Open the interactive remote",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	logFile, err := fileLog()
	if err != nil {
		return errors.Wrap(err, "opening log file")
	}
	defer logFile.Close()

	log := zerolog.New(logFile).With().Timestamp().Str("Component", "tui").Logger()

	exitCTX, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scr, err := interactive.InitRemoteScreen(cancel)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		scr.SetReference(args[0])
	}

	ch := newChannel(cfg, logFile)
	defer ch.Close()

	ctrl := session.New(sessionOptions(cfg, ch, newResolver(cfg, logFile), scr, logFile))
	scr.Remote = ctrl

	ctrlCtx, stopCtrl := context.WithCancel(context.Background())
	defer stopCtrl()
	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(ctrlCtx) }()

	if err := ctrl.Scan(); err != nil {
		log.Error().Str("Method", "runTUI").Err(err).Msg("initial scan")
	}

	uiErr := scr.InterInit(exitCTX)

	snap, snapErr := ctrl.Snapshot()
	stopCtrl()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Str("Method", "runTUI").Err(err).Msg("session stopped")
	}

	if snapErr == nil && snap.Relay.Enabled != cfg.Relay.Enabled {
		cfg.Relay.Enabled = snap.Relay.Enabled
		if err := cfg.SaveAppConfig(); err != nil {
			log.Error().Str("Method", "runTUI").Err(err).Msg("saving relay setting")
		}
	}

	return uiErr
}
