package session

import (
	"context"
	"sync"
	"time"

	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/ergosteur/catt-cast-gui/devices"
	"github.com/rs/zerolog"
)

// Controller owns the session state of one application instance. All
// state lives on the goroutine running Run; background invocations report
// back through completion messages.
type Controller struct {
	opts Options

	intents     chan func()
	completions chan completion
	stopping    chan struct{}
	done        chan struct{}
	runCtx      context.Context

	// deliverMu is held shared by senders on completions and exclusively
	// by shutdown before it drains the channel.
	deliverMu sync.RWMutex

	logger      zerolog.Logger
	initLogOnce sync.Once

	// Fields below are only touched by the Run goroutine.
	devices   []devices.Device
	device    devices.Device
	hasDevice bool
	relay     RelaySettings
	message   string

	status   Status
	attempts int
	media    playback

	inflight     *job
	pollInFlight bool
	pending      *pendingResolution
	process      catt.Process
	epoch        uint64

	// gen advances whenever a status taken earlier can no longer describe
	// the receiver. Poll results carry the gen they were issued under.
	gen       uint64
	pollGen   uint64
	pollAgain bool

	resync  ticker
	confirm ticker
	tick    ticker
}

// New returns a Controller. Run must be started before any other method
// is called.
func New(opts Options) *Controller {
	opts.setDefaults()
	return &Controller{
		opts:        opts,
		relay:       opts.Relay,
		intents:     make(chan func()),
		completions: make(chan completion, 8),
		stopping:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (c *Controller) Log() *zerolog.Logger {
	if c.opts.LogOutput != nil {
		c.initLogOnce.Do(func() {
			c.logger = zerolog.New(c.opts.LogOutput).With().Timestamp().Str("Component", "session").Logger()
		})
	}
	return &c.logger
}

// Run processes intents, completions and timers until ctx is cancelled.
// On exit it terminates any detached local cast.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)
	defer c.shutdown()

	c.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.intents:
			fn()
		case cm := <-c.completions:
			c.handleCompletion(cm)
		case <-c.resync.C:
			c.pollNow()
		case <-c.confirm.C:
			c.confirmAttempt()
		case <-c.tick.C:
			c.advanceLocalProgress()
		}
		c.render()
	}
}

func (c *Controller) shutdown() {
	c.stopTimers()

	// Senders still inside deliver either see stopping or finish their
	// send before the lock is granted, so the drain below sees every
	// completion that made it into the buffer.
	close(c.stopping)
	c.deliverMu.Lock()
drain:
	for {
		select {
		case cm := <-c.completions:
			c.orphan(cm)
		default:
			break drain
		}
	}
	c.deliverMu.Unlock()

	if c.process != nil {
		c.Log().Debug().Str("Method", "shutdown").Int("Pid", c.process.Pid()).Msg("terminating local cast")
		if err := c.process.Terminate(); err != nil {
			c.Log().Error().Str("Method", "shutdown").Err(err).Msg("terminate local cast")
		}
		c.process = nil
	}
}

// do runs fn on the control goroutine and returns its result.
func (c *Controller) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.intents <- func() { reply <- fn() }:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// deliver hands a completion to the control goroutine. Once shutdown has
// begun a detached process nobody will own is terminated instead.
func (c *Controller) deliver(cm completion) {
	c.deliverMu.RLock()
	defer c.deliverMu.RUnlock()

	select {
	case <-c.stopping:
		c.orphan(cm)
		return
	default:
	}

	select {
	case c.completions <- cm:
	case <-c.stopping:
		c.orphan(cm)
	}
}

func (c *Controller) orphan(cm completion) {
	if cm.result.Process == nil {
		return
	}
	c.Log().Debug().Str("CommandID", cm.id).Int("Pid", cm.result.Process.Pid()).Msg("terminating orphaned local cast")
	if err := cm.result.Process.Terminate(); err != nil {
		c.Log().Error().Str("CommandID", cm.id).Err(err).Msg("terminate orphaned local cast")
	}
}

func (c *Controller) setMessage(msg string) {
	c.message = msg
	if c.opts.Screen != nil {
		c.opts.Screen.EmitMsg(msg)
	}
}

func (c *Controller) render() {
	if c.opts.Screen != nil {
		c.opts.Screen.Render(c.snapshot())
	}
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := c.do(func() error {
		s = c.snapshot()
		return nil
	})
	return s, err
}

func (c *Controller) snapshot() Snapshot {
	left := 0
	if c.status == Confirming {
		left = max(c.opts.ConfirmAttempts-c.attempts, 0)
	}
	return Snapshot{
		Devices:             append([]devices.Device(nil), c.devices...),
		Device:              c.device,
		HasDevice:           c.hasDevice,
		Status:              c.status,
		ConfirmAttemptsLeft: left,
		PlayerState:         c.media.player,
		Title:               c.media.title,
		Position:            c.media.position,
		Duration:            c.media.duration,
		Live:                c.media.live,
		Volume:              c.media.volume,
		Muted:               c.media.muted,
		Busy:                c.busy(),
		ControlsLocked:      c.controlsLocked(),
		Resolving:           c.pending != nil,
		LocalCast:           c.process != nil,
		Relay:               c.relay,
		Message:             c.message,
	}
}

func (c *Controller) busy() bool {
	return c.inflight != nil || c.pending != nil
}

func (c *Controller) controlsLocked() bool {
	return c.pending != nil || (c.inflight != nil && c.inflight.locks)
}

// ticker is a stoppable ticker whose channel is nil while off, so a
// select on it blocks.
type ticker struct {
	t *time.Ticker
	C <-chan time.Time
}

func (k *ticker) start(d time.Duration) {
	k.stop()
	k.t = time.NewTicker(d)
	k.C = k.t.C
}

func (k *ticker) stop() {
	if k.t != nil {
		k.t.Stop()
		k.t = nil
		k.C = nil
	}
}

func (k *ticker) active() bool {
	return k.t != nil
}

func (c *Controller) stopTimers() {
	c.resync.stop()
	c.confirm.stop()
	c.tick.stop()
}
