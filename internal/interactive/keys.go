package interactive

import (
	"github.com/ergosteur/catt-cast-gui/devices"
	"github.com/ergosteur/catt-cast-gui/session"
	"github.com/gdamore/tcell/v2"
)

type action int

const (
	actNone action = iota
	actQuit
	actScan
	actSelect
	actEdit
	actCast
	actEnqueue
	actCastSite
	actStop
	actPlayToggle
	actRewind
	actFastForward
	actSkip
	actMute
	actVolumeUp
	actVolumeDown
	actRefresh
	actRelay
)

var runeActions = map[rune]action{
	'q': actQuit,
	'd': actScan,
	'i': actEdit,
	'c': actCast,
	'e': actEnqueue,
	'w': actCastSite,
	's': actStop,
	'p': actPlayToggle,
	' ': actPlayToggle,
	'n': actSkip,
	'm': actMute,
	'+': actVolumeUp,
	'-': actVolumeDown,
	'r': actRefresh,
	'y': actRelay,
}

func keyAction(ev *tcell.EventKey) action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return actQuit
	case tcell.KeyLeft:
		return actRewind
	case tcell.KeyRight:
		return actFastForward
	case tcell.KeyPgUp:
		return actVolumeUp
	case tcell.KeyPgDn:
		return actVolumeDown
	case tcell.KeyRune:
	default:
		return actNone
	}

	r := ev.Rune()
	if r >= '1' && r <= '9' {
		return actSelect
	}
	return runeActions[r]
}

// deviceForKey maps the digit keys onto the listed devices.
func deviceForKey(s session.Snapshot, r rune) (devices.Device, error) {
	return devices.DevicePicker(s.Devices, int(r-'0'))
}
