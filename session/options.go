package session

import (
	"context"
	"io"
	"time"

	"github.com/ergosteur/catt-cast-gui/catt"
)

const (
	DefaultResyncInterval  = 15 * time.Second
	DefaultConfirmInterval = 3 * time.Second
	DefaultConfirmAttempts = 5
	DefaultTickInterval    = 1 * time.Second
	DefaultRelayTimeout    = 15 * time.Second
)

// Channel runs casting tool invocations. *catt.Runner and the native
// castprotocol backend implement it.
type Channel interface {
	Invoke(ctx context.Context, args []string, mode catt.Mode) (catt.Result, error)
}

// Resolver turns an indirect video reference into a direct media URL.
type Resolver interface {
	Resolve(ctx context.Context, reference, relayHost string) (string, error)
}

// Screen receives state updates. Implementations must not block.
type Screen interface {
	EmitMsg(msg string)
	Render(s Snapshot)
}

// Options wires a Controller.
type Options struct {
	Channel  Channel
	Resolver Resolver
	Screen   Screen
	Relay    RelaySettings

	ResyncInterval  time.Duration
	ConfirmInterval time.Duration
	ConfirmAttempts int
	TickInterval    time.Duration
	RelayTimeout    time.Duration
	// CommandTimeout bounds blocking invocations; zero means no bound.
	CommandTimeout time.Duration

	// IsLocalFile decides whether a cast reference is played through a
	// detached local cast. Defaults to an os.Stat check.
	IsLocalFile func(ref string) bool

	LogOutput io.Writer
}

func (o *Options) setDefaults() {
	if o.ResyncInterval <= 0 {
		o.ResyncInterval = DefaultResyncInterval
	}
	if o.ConfirmInterval <= 0 {
		o.ConfirmInterval = DefaultConfirmInterval
	}
	if o.ConfirmAttempts <= 0 {
		o.ConfirmAttempts = DefaultConfirmAttempts
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.RelayTimeout <= 0 {
		o.RelayTimeout = DefaultRelayTimeout
	}
	if o.IsLocalFile == nil {
		o.IsLocalFile = isLocalFile
	}
}
