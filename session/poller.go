package session

import (
	"github.com/ergosteur/catt-cast-gui/catt"
)

// startConfirm enters the fast poll cycle: one poll right away, then one
// per ConfirmInterval until a title shows up or the attempts run out.
func (c *Controller) startConfirm(msg string) {
	c.setMessage(msg)
	c.resync.stop()
	c.tick.stop()
	c.status = Confirming
	c.attempts = 0
	c.gen++
	c.confirm.start(c.opts.ConfirmInterval)
	c.confirmAttempt()
}

func (c *Controller) confirmAttempt() {
	if c.status != Confirming {
		c.confirm.stop()
		return
	}

	c.attempts++
	if c.attempts > c.opts.ConfirmAttempts {
		c.Log().Debug().Str("Method", "confirmAttempt").Int("Attempts", c.attempts-1).Msg("fast poll timed out")
		c.confirm.stop()
		c.setIdle(msgUnknown)
		return
	}

	c.Log().Debug().Str("Method", "confirmAttempt").Int("Attempt", c.attempts).Msg("fast poll")
	c.pollNow()
}

func (c *Controller) onPollDone(cm completion) {
	c.pollInFlight = false
	again := c.pollAgain
	c.pollAgain = false

	if cm.gen != c.gen {
		c.Log().Debug().Str("Method", "onPollDone").Uint64("Gen", cm.gen).Uint64("Current", c.gen).Msg("discarding outdated status")
		if again {
			c.pollNow()
		}
		return
	}
	if cm.epoch != c.epoch || !c.hasDevice || cm.device.Addr != c.device.Addr {
		return
	}

	if cm.err != nil {
		if catt.IsInactive(cm.err) && c.status != Confirming {
			c.setIdle(msgIdle)
			return
		}
		c.Log().Debug().Str("Method", "onPollDone").Err(cm.err).Msg("status query failed")
		return
	}

	c.applyStatus(catt.ParseStatus(cm.result.Output))
}

// applyStatus reconciles the believed playback state with a parsed
// status response.
func (c *Controller) applyStatus(st catt.Status) {
	if !st.HasTitle {
		// Still waiting for the receiver to pick up the action.
		if c.status == Confirming {
			return
		}
		if st.HasVolume {
			c.setIdle(msgIdle)
			c.media.volume = st.Volume
			c.media.muted = st.Muted
			return
		}
		c.setIdle(msgNoResponse)
		return
	}

	hadMedia := c.media.hasMedia
	if c.status == Confirming {
		c.confirm.stop()
		c.attempts = 0
	}
	c.status = Active
	c.media.hasMedia = true
	if !c.resync.active() {
		c.resync.start(c.opts.ResyncInterval)
	}

	c.media.player = st.StateLabel()
	c.media.title = st.Title
	if c.media.title == "" {
		c.media.title = "No title"
	}
	c.setMessage(c.media.player + ": " + c.media.title)

	if c.media.player == "Playing" {
		if !c.tick.active() {
			c.tick.start(c.opts.TickInterval)
		}
	} else {
		c.tick.stop()
	}

	c.media.volume = st.Volume
	c.media.muted = st.Muted

	if st.Live() {
		c.media.live = true
		c.media.duration = 0
		if !hadMedia {
			c.media.position = 0
		}
		return
	}

	c.media.live = false
	c.media.duration = st.Duration
	c.media.position = 0
	if st.HasPosition {
		c.media.position = st.Position
	}
}

// setIdle drops to Idle and clears the believed playback state.
func (c *Controller) setIdle(msg string) {
	c.status = Idle
	c.attempts = 0
	c.stopTimers()
	c.media.reset()
	c.setMessage(msg)
}

// advanceLocalProgress moves the believed position forward between polls.
func (c *Controller) advanceLocalProgress() {
	if c.status != Active || !c.media.hasMedia {
		c.tick.stop()
		return
	}

	c.media.position++
	if !c.media.live && c.media.duration > 0 && c.media.position >= c.media.duration {
		c.media.position = c.media.duration
		c.tick.stop()
	}
}
