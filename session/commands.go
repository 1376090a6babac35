package session

import (
	"fmt"
	"strings"

	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/ergosteur/catt-cast-gui/devices"
	"github.com/ergosteur/catt-cast-gui/piped"
	"github.com/google/uuid"
)

// Scan replaces the device list with a fresh scan result.
func (c *Controller) Scan() error {
	return c.do(func() error {
		if c.busy() {
			c.setMessage(msgBusy)
			return ErrBusy
		}
		c.setMessage(msgScanning)
		c.startCommand(actScan, devices.Device{}, catt.ScanArgs(), catt.Blocking, true, nil)
		return nil
	})
}

// SelectDevice switches the session to the device with address addr.
// An empty addr clears the selection.
func (c *Controller) SelectDevice(addr string) error {
	return c.do(func() error {
		if addr == "" {
			c.switchDevice(devices.Device{}, false)
			c.setMessage(msgSelectDevice)
			return nil
		}
		d, ok := devices.Find(c.devices, addr)
		if !ok {
			return ErrUnknownDevice
		}
		c.switchDevice(d, true)
		c.setMessage(msgChecking)
		c.pollNow()
		return nil
	})
}

// ClearDevice drops the current selection.
func (c *Controller) ClearDevice() error {
	return c.SelectDevice("")
}

// switchDevice cancels all timers and invalidates outstanding polls.
func (c *Controller) switchDevice(d devices.Device, ok bool) {
	c.epoch++
	c.gen++
	c.stopTimers()
	c.status = Idle
	c.attempts = 0
	c.media.reset()
	c.device, c.hasDevice = d, ok
}

// SetRelay changes relay resolution settings for later casts.
func (c *Controller) SetRelay(settings RelaySettings) error {
	return c.do(func() error {
		c.relay = settings
		return nil
	})
}

// Cast plays ref on the selected device, resolving it through the relay
// first when enabled and the reference is eligible.
func (c *Controller) Cast(ref string) error {
	return c.do(func() error { return c.perform(actCast, ref) })
}

// Enqueue adds ref to the receiver's queue.
func (c *Controller) Enqueue(ref string) error {
	return c.do(func() error { return c.perform(actEnqueue, ref) })
}

// CastSite casts a web page.
func (c *Controller) CastSite(url string) error {
	return c.do(func() error {
		dev, err := c.requireDevice()
		if err != nil {
			return err
		}
		url = strings.TrimSpace(url)
		if url == "" {
			c.setMessage(msgEnterSite)
			return ErrEmptyReference
		}
		if c.busy() {
			c.setMessage(msgBusy)
			return ErrBusy
		}
		c.setMessage(fmt.Sprintf("Casting site to %s...", dev.Label()))
		c.startCommand(actCastSite, dev, catt.CastSiteArgs(dev.Addr, url), catt.Blocking, true, nil)
		return nil
	})
}

// Stop terminates any local cast, resets playback to Idle and sends stop.
func (c *Controller) Stop() error {
	return c.do(func() error {
		if c.busy() {
			c.setMessage(msgBusy)
			return ErrBusy
		}

		prior := c.process
		c.process = nil

		dev, err := c.requireDevice()
		if err != nil {
			if prior != nil {
				go c.terminate(prior)
			}
			return err
		}

		c.epoch++
		c.stopTimers()
		c.status = Idle
		c.attempts = 0
		c.media.reset()

		c.setMessage(fmt.Sprintf("Stopping playback on %s...", dev.Label()))
		c.startCommand(actStop, dev, catt.StopArgs(dev.Addr), catt.Blocking, true, prior)
		return nil
	})
}

// SetVolume sets the receiver volume in percent and resyncs on success.
func (c *Controller) SetVolume(percent int) error {
	return c.do(func() error {
		dev, err := c.requireDevice()
		if err != nil {
			return err
		}
		if c.busy() {
			c.setMessage(msgBusy)
			return ErrBusy
		}
		c.media.volume = min(max(percent, 0), 100)
		c.startCommand(actVolume, dev, catt.VolumeArgs(dev.Addr, percent), catt.Blocking, false, nil)
		return nil
	})
}

// Seek jumps to an absolute position and resyncs on success.
func (c *Controller) Seek(seconds int) error {
	return c.do(func() error {
		dev, err := c.requireDevice()
		if err != nil {
			return err
		}
		if c.busy() {
			c.setMessage(msgBusy)
			return ErrBusy
		}
		c.media.position = max(seconds, 0)
		c.startCommand(actSeek, dev, catt.SeekArgs(dev.Addr, seconds), catt.Blocking, false, nil)
		return nil
	})
}

func (c *Controller) PlayToggle() error  { return c.quick(catt.PlayToggleArgs) }
func (c *Controller) Rewind() error      { return c.quick(catt.RewindArgs) }
func (c *Controller) FastForward() error { return c.quick(catt.FastForwardArgs) }
func (c *Controller) Skip() error        { return c.quick(catt.SkipArgs) }
func (c *Controller) ToggleMute() error  { return c.quick(catt.VolumeMuteArgs) }
func (c *Controller) VolumeDown() error  { return c.quick(catt.VolumeDownArgs) }
func (c *Controller) VolumeUp() error    { return c.quick(catt.VolumeUpArgs) }

// quick runs a transport action without locking the controls and
// confirms its effect with a fast poll cycle.
func (c *Controller) quick(build func(addr string) []string) error {
	return c.do(func() error {
		dev, err := c.requireDevice()
		if err != nil {
			return err
		}
		if c.busy() {
			c.setMessage(msgBusy)
			return ErrBusy
		}
		c.startCommand(actQuick, dev, build(dev.Addr), catt.Blocking, false, nil)
		return nil
	})
}

// Refresh starts a fast poll cycle for the selected device. It is
// rejected while a command is in flight, since every poll of the cycle
// would be dropped.
func (c *Controller) Refresh() error {
	return c.do(func() error {
		if _, err := c.requireDevice(); err != nil {
			return err
		}
		if c.busy() {
			c.setMessage(msgBusy)
			return ErrBusy
		}
		c.startConfirm(msgRefreshing)
		return nil
	})
}

func (c *Controller) requireDevice() (devices.Device, error) {
	if !c.hasDevice {
		c.setMessage(msgNoDevice)
		return devices.Device{}, ErrNoDeviceSelected
	}
	return c.device, nil
}

// perform routes a cast or enqueue intent through optional relay
// resolution before dispatching it.
func (c *Controller) perform(act action, ref string) error {
	dev, err := c.requireDevice()
	if err != nil {
		return err
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		if act == actEnqueue {
			c.setMessage(msgEnterEnqueue)
		} else {
			c.setMessage(msgEnterReference)
		}
		return ErrEmptyReference
	}

	if c.busy() {
		c.setMessage(msgBusy)
		return ErrBusy
	}

	if c.relay.Enabled && c.opts.Resolver != nil && piped.EligibleFor(ref, c.relay.Host) {
		host := strings.TrimSpace(c.relay.Host)
		if host == "" {
			c.setMessage(msgRelayHost)
			return ErrRelayHostMissing
		}
		c.setMessage(msgResolving)
		c.startResolve(&pendingResolution{
			id:     uuid.NewString(),
			action: act,
			device: dev,
			epoch:  c.epoch,
		}, ref, host)
		return nil
	}

	c.dispatch(act, dev, ref, false)
	return nil
}

// dispatch issues a cast or enqueue for an already resolved reference.
// A local file cast or a relay resolved cast replaces the receiver's
// media, so the running local cast is terminated first. A plain remote
// URL cast leaves it alone.
func (c *Controller) dispatch(act action, dev devices.Device, ref string, resolved bool) {
	switch act {
	case actEnqueue:
		c.setMessage(fmt.Sprintf("Enqueuing on %s...", dev.Label()))
		c.startCommand(actEnqueue, dev, catt.AddArgs(dev.Addr, ref), catt.Blocking, true, nil)
	default:
		mode := catt.Blocking
		local := c.opts.IsLocalFile(ref)
		if local {
			mode = catt.DetachedLocalCast
			c.Log().Debug().Str("Method", "dispatch").Str("Path", ref).Str("MediaType", sniffMediaType(ref)).Msg("local file cast")
		}

		var prior catt.Process
		if local || resolved {
			prior = c.process
			c.process = nil
		}
		c.setMessage(fmt.Sprintf("Casting to %s...", dev.Label()))
		c.startCommand(actCast, dev, catt.CastArgs(dev.Addr, ref), mode, true, prior)
	}
}

func (c *Controller) onCommandDone(cm completion) {
	if c.inflight != nil && c.inflight.id == cm.id {
		c.inflight = nil
	}

	// A detached process is owned by the session even if the device has
	// changed in the meantime, so it can still be terminated later.
	if cm.result.Process != nil {
		c.process = cm.result.Process
	}

	if cm.err != nil {
		c.Log().Error().Str("CommandID", cm.id).Stringer("Action", cm.action).Err(cm.err).Msg("command failed")
		c.setMessage("Error: " + cm.err.Error())
		return
	}

	switch cm.action {
	case actScan:
		c.applyScan(catt.ParseScan(cm.result.Output))
		return
	case actCastSite:
		c.setMessage(fmt.Sprintf("Successfully cast site to %s.", cm.device.Label()))
		return
	case actStop:
		c.setMessage(fmt.Sprintf("Playback stopped on %s.", cm.device.Label()))
		return
	case actEnqueue:
		c.setMessage(fmt.Sprintf("%s: %s", cm.device.ShortName(), strings.TrimSpace(cm.result.Output)))
	}

	if cm.epoch != c.epoch {
		return
	}

	switch cm.action {
	case actCast:
		c.startConfirm(fmt.Sprintf("Cast sent to %s. Confirming playback...", cm.device.Label()))
	case actQuick:
		c.startConfirm(msgConfirming)
	case actEnqueue, actVolume, actSeek:
		c.pollNow()
	}
}

func (c *Controller) applyScan(list []devices.Device) {
	c.devices = list
	if c.hasDevice {
		if d, ok := devices.Find(list, c.device.Addr); ok {
			c.device = d
		} else {
			c.switchDevice(devices.Device{}, false)
		}
	}

	if len(list) == 0 {
		c.setMessage(msgNoDevicesFound)
		return
	}
	c.setMessage(fmt.Sprintf("Found %d device(s).", len(list)))
}

func (c *Controller) onResolveDone(cm completion) {
	p := c.pending
	if p == nil || p.id != cm.id {
		return
	}
	c.pending = nil

	if cm.err != nil {
		c.Log().Error().Str("CommandID", cm.id).Err(cm.err).Msg("relay resolution failed")
		c.setMessage("Relay Error: " + cm.err.Error())
		return
	}
	if p.epoch != c.epoch || !c.hasDevice || c.device.Addr != p.device.Addr {
		c.setMessage(msgRelayDiscarded)
		return
	}

	c.Log().Debug().Str("CommandID", cm.id).Str("URL", cm.url).Msg("relay resolved")
	c.dispatch(p.action, p.device, cm.url, true)
}

func (c *Controller) terminate(p catt.Process) {
	if err := p.Terminate(); err != nil {
		c.Log().Error().Str("Method", "terminate").Int("Pid", p.Pid()).Err(err).Msg("terminate local cast")
	}
}
