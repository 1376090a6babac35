package cmd

import (
	"io"

	"github.com/ergosteur/catt-cast-gui/castprotocol"
	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/ergosteur/catt-cast-gui/internal/config"
	"github.com/ergosteur/catt-cast-gui/piped"
	"github.com/ergosteur/catt-cast-gui/session"
)

// backendChannel is a session channel that may hold connections.
type backendChannel interface {
	session.Channel
	Close() error
}

type runnerChannel struct {
	*catt.Runner
}

func (runnerChannel) Close() error { return nil }

// newChannel builds the configured casting backend.
func newChannel(c *config.Config, logw io.Writer) backendChannel {
	if c.Backend == config.BackendNative {
		ch := castprotocol.NewChannel()
		ch.Grace = c.Catt.LocalCastGrace
		ch.LogOutput = logw
		return ch
	}

	r := catt.NewRunner(c.Catt.Path)
	r.Grace = c.Catt.LocalCastGrace
	r.LogOutput = logw
	return runnerChannel{r}
}

func newResolver(c *config.Config, logw io.Writer) *piped.Client {
	client := piped.NewClient()
	client.Timeout = c.Relay.Timeout
	client.LogOutput = logw
	if len(c.Relay.PreferContainers) > 0 || len(c.Relay.PreferCodecs) > 0 {
		client.Preferences = piped.Preferences{
			Containers: c.Relay.PreferContainers,
			Codecs:     c.Relay.PreferCodecs,
		}
	}
	return client
}

func sessionOptions(c *config.Config, ch session.Channel, res session.Resolver, scr session.Screen, logw io.Writer) session.Options {
	return session.Options{
		Channel:  ch,
		Resolver: res,
		Screen:   scr,
		Relay: session.RelaySettings{
			Enabled: c.Relay.Enabled,
			Host:    c.Relay.Host,
		},
		ResyncInterval:  c.Poll.ResyncInterval,
		ConfirmInterval: c.Poll.ConfirmInterval,
		ConfirmAttempts: c.Poll.ConfirmAttempts,
		TickInterval:    c.Poll.TickInterval,
		RelayTimeout:    c.Relay.Timeout,
		LogOutput:       logw,
	}
}
