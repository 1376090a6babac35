package session

import (
	"github.com/ergosteur/catt-cast-gui/devices"
)

// Status is the poll coordinator state.
type Status int

const (
	Idle Status = iota
	Confirming
	Active
)

func (s Status) String() string {
	switch s {
	case Confirming:
		return "confirming"
	case Active:
		return "active"
	default:
		return "idle"
	}
}

// RelaySettings controls URL resolution before cast and enqueue.
type RelaySettings struct {
	Enabled bool
	Host    string
}

// Snapshot is an immutable copy of the session state handed to screens.
type Snapshot struct {
	Devices   []devices.Device
	Device    devices.Device
	HasDevice bool

	Status              Status
	ConfirmAttemptsLeft int

	PlayerState string
	Title       string
	Position    int
	Duration    int
	Live        bool
	Volume      int
	Muted       bool

	Busy           bool
	ControlsLocked bool
	Resolving      bool
	LocalCast      bool

	Relay   RelaySettings
	Message string
}

// Playing reports whether the receiver is believed to be playing.
func (s Snapshot) Playing() bool {
	return s.Status == Active && s.PlayerState == "Playing"
}

// playback is the believed media state of the selected device.
type playback struct {
	hasMedia bool
	player   string
	title    string
	position int
	duration int
	live     bool
	volume   int
	muted    bool
}

func (p *playback) reset() {
	*p = playback{}
}
