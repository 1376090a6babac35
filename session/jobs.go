package session

import (
	"context"

	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/ergosteur/catt-cast-gui/devices"
	"github.com/google/uuid"
)

type action int

const (
	actScan action = iota
	actCast
	actEnqueue
	actCastSite
	actStop
	actVolume
	actSeek
	actQuick
	actPoll
	actResolve
)

func (a action) String() string {
	switch a {
	case actScan:
		return "scan"
	case actCast:
		return "cast"
	case actEnqueue:
		return "enqueue"
	case actCastSite:
		return "cast_site"
	case actStop:
		return "stop"
	case actVolume:
		return "volume"
	case actSeek:
		return "seek"
	case actQuick:
		return "quick"
	case actPoll:
		return "status"
	case actResolve:
		return "resolve"
	}
	return "unknown"
}

// job is the record of the one non-poll invocation allowed in flight.
type job struct {
	id     string
	action action
	device devices.Device
	epoch  uint64
	locks  bool
}

// pendingResolution is created when a cast or enqueue must first go
// through the relay. At most one exists.
type pendingResolution struct {
	id     string
	action action
	device devices.Device
	epoch  uint64
}

// completion is the immutable result a background goroutine sends back.
type completion struct {
	id     string
	action action
	device devices.Device
	epoch  uint64
	gen    uint64
	result catt.Result
	url    string
	err    error
}

// startCommand launches a non-poll invocation. prior, if set, is a
// detached local cast that is terminated before args run.
func (c *Controller) startCommand(act action, dev devices.Device, args []string, mode catt.Mode, locks bool, prior catt.Process) {
	j := &job{
		id:     uuid.NewString(),
		action: act,
		device: dev,
		epoch:  c.epoch,
		locks:  locks,
	}
	c.inflight = j
	c.gen++

	c.Log().Debug().Str("Method", "startCommand").Str("CommandID", j.id).Stringer("Action", act).Strs("Args", args).Msg("dispatch")

	go func() {
		if prior != nil {
			if err := prior.Terminate(); err != nil {
				c.Log().Error().Str("CommandID", j.id).Err(err).Msg("terminate previous local cast")
			}
		}

		ctx, cancel := c.commandContext(mode)
		defer cancel()

		res, err := c.opts.Channel.Invoke(ctx, args, mode)
		c.deliver(completion{
			id:     j.id,
			action: act,
			device: dev,
			epoch:  j.epoch,
			result: res,
			err:    err,
		})
	}()
}

func (c *Controller) commandContext(mode catt.Mode) (context.Context, context.CancelFunc) {
	if c.opts.CommandTimeout > 0 && mode == catt.Blocking {
		return context.WithTimeout(c.runCtx, c.opts.CommandTimeout)
	}
	return context.WithCancel(c.runCtx)
}

// pollNow issues a status query unless any invocation is outstanding.
// Dropped polls are not queued, except that a poll dropped behind an
// outdated one is issued again once that one returns.
func (c *Controller) pollNow() {
	if !c.hasDevice || c.inflight != nil {
		return
	}
	if c.pollInFlight {
		if c.pollGen != c.gen {
			c.pollAgain = true
		}
		return
	}
	c.pollInFlight = true
	c.pollGen = c.gen
	dev, epoch, gen := c.device, c.epoch, c.gen

	go func() {
		ctx, cancel := c.commandContext(catt.Blocking)
		defer cancel()

		res, err := c.opts.Channel.Invoke(ctx, catt.StatusArgs(dev.Addr), catt.Blocking)
		c.deliver(completion{
			action: actPoll,
			device: dev,
			epoch:  epoch,
			gen:    gen,
			result: res,
			err:    err,
		})
	}()
}

func (c *Controller) startResolve(p *pendingResolution, ref, host string) {
	c.pending = p
	c.Log().Debug().Str("Method", "startResolve").Str("CommandID", p.id).Str("Reference", ref).Str("Host", host).Msg("resolving")

	go func() {
		ctx, cancel := context.WithTimeout(c.runCtx, c.opts.RelayTimeout)
		defer cancel()

		u, err := c.opts.Resolver.Resolve(ctx, ref, host)
		c.deliver(completion{
			id:     p.id,
			action: actResolve,
			device: p.device,
			epoch:  p.epoch,
			url:    u,
			err:    err,
		})
	}()
}

func (c *Controller) handleCompletion(cm completion) {
	switch cm.action {
	case actPoll:
		c.onPollDone(cm)
	case actResolve:
		c.onResolveDone(cm)
	default:
		c.onCommandDone(cm)
	}
}
