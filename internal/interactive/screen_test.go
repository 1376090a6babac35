package interactive

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ergosteur/catt-cast-gui/devices"
	"github.com/ergosteur/catt-cast-gui/session"
	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls []string
	relay session.RelaySettings
	err   error
}

func (f *fakeRemote) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeRemote) Scan() error                    { return f.record("scan") }
func (f *fakeRemote) SelectDevice(addr string) error { return f.record("select " + addr) }
func (f *fakeRemote) Cast(ref string) error          { return f.record("cast " + ref) }
func (f *fakeRemote) Enqueue(ref string) error       { return f.record("enqueue " + ref) }
func (f *fakeRemote) CastSite(url string) error      { return f.record("site " + url) }
func (f *fakeRemote) Stop() error                    { return f.record("stop") }
func (f *fakeRemote) PlayToggle() error              { return f.record("play_toggle") }
func (f *fakeRemote) Rewind() error                  { return f.record("rewind") }
func (f *fakeRemote) FastForward() error             { return f.record("ffwd") }
func (f *fakeRemote) Skip() error                    { return f.record("skip") }
func (f *fakeRemote) ToggleMute() error              { return f.record("mute") }
func (f *fakeRemote) VolumeUp() error                { return f.record("volumeup") }
func (f *fakeRemote) VolumeDown() error              { return f.record("volumedown") }
func (f *fakeRemote) Refresh() error                 { return f.record("refresh") }
func (f *fakeRemote) SetRelay(s session.RelaySettings) error {
	f.relay = s
	return f.record("relay")
}

func (f *fakeRemote) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestScreen(t *testing.T) (*RemoteScreen, *fakeRemote) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, sim.Init())
	sim.SetSize(100, 40)
	t.Cleanup(sim.Fini)

	r := &fakeRemote{}
	p := newRemoteScreen(sim, nil)
	p.Remote = r
	return p, r
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func typeText(p *RemoteScreen, s string) {
	for _, r := range s {
		p.HandleKeyEvent(runeKey(r))
	}
}

func TestKeyAction(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want action
	}{
		{"escape quits", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), actQuit},
		{"q quits", runeKey('q'), actQuit},
		{"space toggles", runeKey(' '), actPlayToggle},
		{"left rewinds", tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), actRewind},
		{"right forwards", tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone), actFastForward},
		{"page up", tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModNone), actVolumeUp},
		{"page down", tcell.NewEventKey(tcell.KeyPgDn, 0, tcell.ModNone), actVolumeDown},
		{"minus", runeKey('-'), actVolumeDown},
		{"digit", runeKey('3'), actSelect},
		{"zero is nothing", runeKey('0'), actNone},
		{"unbound rune", runeKey('z'), actNone},
		{"unbound key", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), actNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyAction(tt.ev))
		})
	}
}

func TestTransportKeys(t *testing.T) {
	p, r := newTestScreen(t)

	for _, ev := range []*tcell.EventKey{
		runeKey('p'),
		runeKey('s'),
		tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone),
		tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone),
		runeKey('n'),
		runeKey('m'),
		tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModNone),
		runeKey('-'),
	} {
		assert.False(t, p.HandleKeyEvent(ev))
	}

	assert.Equal(t, []string{"play_toggle", "stop", "rewind", "ffwd", "skip", "mute", "volumeup", "volumedown"}, r.seen())
}

func TestEditAndCast(t *testing.T) {
	p, r := newTestScreen(t)

	p.HandleKeyEvent(runeKey('i'))
	typeText(p, "https://youtu.be/abcX")
	p.HandleKeyEvent(tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone))
	p.HandleKeyEvent(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))

	assert.Empty(t, r.seen(), "typing must not trigger commands")

	p.HandleKeyEvent(runeKey('c'))
	p.HandleKeyEvent(runeKey('e'))
	p.HandleKeyEvent(runeKey('w'))
	assert.Equal(t, []string{
		"cast https://youtu.be/abc",
		"enqueue https://youtu.be/abc",
		"site https://youtu.be/abc",
	}, r.seen())
}

func TestEditQuitKeyIsText(t *testing.T) {
	p, r := newTestScreen(t)

	p.HandleKeyEvent(runeKey('i'))
	assert.False(t, p.HandleKeyEvent(runeKey('q')))
	p.HandleKeyEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	assert.Equal(t, "q", p.ref)
	assert.Empty(t, r.seen())

	assert.True(t, p.HandleKeyEvent(runeKey('q')))
}

func TestSelectDeviceByDigit(t *testing.T) {
	p, r := newTestScreen(t)
	p.Render(session.Snapshot{Devices: []devices.Device{
		{Name: "Kitchen", Addr: "192.168.1.10"},
		{Name: "Living Room", Addr: "192.168.1.20"},
	}})

	p.HandleKeyEvent(runeKey('2'))
	p.HandleKeyEvent(runeKey('5'))

	assert.Equal(t, []string{"select 192.168.1.20"}, r.seen())
	assert.Equal(t, devices.ErrDeviceNotAvailable.Error(), p.note)
}

func TestRelayToggleKeepsHost(t *testing.T) {
	p, r := newTestScreen(t)
	p.Render(session.Snapshot{Relay: session.RelaySettings{Host: "pipedapi.example"}})

	p.HandleKeyEvent(runeKey('y'))

	assert.Equal(t, []string{"relay"}, r.seen())
	assert.Equal(t, session.RelaySettings{Enabled: true, Host: "pipedapi.example"}, r.relay)
}

func TestScanAndRefreshAreRateLimited(t *testing.T) {
	p, r := newTestScreen(t)

	p.HandleKeyEvent(runeKey('d'))
	p.HandleKeyEvent(runeKey('d'))
	p.HandleKeyEvent(runeKey('r'))
	p.HandleKeyEvent(runeKey('r'))

	assert.Equal(t, []string{"scan", "refresh"}, r.seen())
}

func TestReportSkipsMessagedErrors(t *testing.T) {
	p, r := newTestScreen(t)

	r.err = session.ErrBusy
	p.HandleKeyEvent(runeKey('p'))
	assert.Empty(t, p.note)

	r.err = errors.New("boom")
	p.HandleKeyEvent(runeKey('p'))
	assert.Equal(t, "boom", p.note)

	p.EmitMsg("Playing")
	assert.Empty(t, p.note)
}

func TestDraw(t *testing.T) {
	p, _ := newTestScreen(t)
	p.Render(session.Snapshot{
		Devices: []devices.Device{
			{Name: "Kitchen", Addr: "192.168.1.10"},
			{Name: "Speaker", Addr: "192.168.1.30", IsAudioOnly: true},
		},
		Device:    devices.Device{Name: "Kitchen", Addr: "192.168.1.10"},
		HasDevice: true,
		Status:    session.Active,
		Title:     "Big Buck Bunny",
		Position:  65,
		Duration:  600,
		Volume:    40,
		Muted:     true,
	})
	p.EmitMsg("Playing")
	p.draw()

	text := screenText(p.Current)
	assert.Contains(t, text, "* 1. Kitchen (192.168.1.10)")
	assert.Contains(t, text, "2. Speaker (192.168.1.30) [audio only]")
	assert.Contains(t, text, "Title: Big Buck Bunny")
	assert.Contains(t, text, "Playing")
	assert.Contains(t, text, "01:05 / 10:00  Vol 40%")
	assert.Contains(t, text, "MUTED")
	assert.Contains(t, text, "Relay: off")
}

func screenText(s tcell.Screen) string {
	w, h := s.Size()
	var b strings.Builder
	for y := range h {
		for x := range w {
			r, _, _, _ := s.GetContent(x, y)
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func TestProgressLine(t *testing.T) {
	tests := []struct {
		name string
		snap session.Snapshot
		want string
	}{
		{"idle", session.Snapshot{Status: session.Idle, Duration: 10}, ""},
		{"live", session.Snapshot{Status: session.Active, Live: true, Volume: 30}, "LIVE  Vol 30%"},
		{"vod", session.Snapshot{Status: session.Active, Position: 3725, Duration: 7200}, "1:02:05 / 2:00:00"},
		{"volume only", session.Snapshot{Status: session.Active, Volume: 55}, "Vol 55%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progressLine(tt.snap))
		})
	}
}

func TestRelayLine(t *testing.T) {
	assert.Equal(t, "Relay: off", relayLine(session.RelaySettings{Host: "x"}))
	assert.Equal(t, "Relay: on (no host configured)", relayLine(session.RelaySettings{Enabled: true}))
	assert.Equal(t, "Relay: on via x", relayLine(session.RelaySettings{Enabled: true, Host: "x"}))
}
