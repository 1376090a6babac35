package interactive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ergosteur/catt-cast-gui/session"
	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/encoding"
	"github.com/mattn/go-runewidth"
	"golang.org/x/time/rate"
)

// Remote is the part of *session.Controller the screen drives.
type Remote interface {
	Scan() error
	SelectDevice(addr string) error
	SetRelay(settings session.RelaySettings) error
	Cast(ref string) error
	Enqueue(ref string) error
	CastSite(url string) error
	Stop() error
	PlayToggle() error
	Rewind() error
	FastForward() error
	Skip() error
	ToggleMute() error
	VolumeUp() error
	VolumeDown() error
	Refresh() error
}

// RemoteScreen is a full screen terminal remote for one session. The
// controller feeds it through EmitMsg and Render from its own goroutine;
// drawing only happens on the event loop.
type RemoteScreen struct {
	Current tcell.Screen
	Remote  Remote

	exitCTXfunc context.CancelFunc

	scanLimit    *rate.Limiter
	refreshLimit *rate.Limiter

	mu      sync.RWMutex
	snap    session.Snapshot
	message string
	note    string
	ref     string
	editing bool
}

var _ session.Screen = (*RemoteScreen)(nil)

// InitRemoteScreen creates a remote screen. ctxCancel is called when the
// user quits.
func InitRemoteScreen(ctxCancel context.CancelFunc) (*RemoteScreen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("interactive: %w", err)
	}
	return newRemoteScreen(s, ctxCancel), nil
}

func newRemoteScreen(s tcell.Screen, ctxCancel context.CancelFunc) *RemoteScreen {
	return &RemoteScreen{
		Current:      s,
		exitCTXfunc:  ctxCancel,
		scanLimit:    rate.NewLimiter(rate.Every(3*time.Second), 1),
		refreshLimit: rate.NewLimiter(rate.Every(2*time.Second), 1),
		message:      "Press d to scan for devices.",
	}
}

// EmitMsg shows msg on the status line.
func (p *RemoteScreen) EmitMsg(msg string) {
	p.mu.Lock()
	p.message = msg
	p.note = ""
	p.mu.Unlock()
	p.wake()
}

// Render stores the latest session state for the next redraw.
func (p *RemoteScreen) Render(s session.Snapshot) {
	p.mu.Lock()
	p.snap = s
	p.mu.Unlock()
	p.wake()
}

// SetReference prefills the media field.
func (p *RemoteScreen) SetReference(ref string) {
	p.mu.Lock()
	p.ref = ref
	p.mu.Unlock()
}

// wake asks the event loop to redraw. A full queue already holds a
// pending redraw, so the error is ignored.
func (p *RemoteScreen) wake() {
	_ = p.Current.PostEvent(tcell.NewEventInterrupt(nil))
}

// InterInit runs the event loop until the user quits or ctx is done.
func (p *RemoteScreen) InterInit(ctx context.Context) error {
	encoding.Register()
	s := p.Current
	if err := s.Init(); err != nil {
		return fmt.Errorf("interactive: %w", err)
	}
	defer s.Fini()

	s.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	p.draw()

	go func() {
		<-ctx.Done()
		p.wake()
	}()

	for {
		ev := s.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return nil
		}

		switch ev := ev.(type) {
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventKey:
			if p.HandleKeyEvent(ev) {
				if p.exitCTXfunc != nil {
					p.exitCTXfunc()
				}
				return nil
			}
		}
		p.draw()
	}
}

// HandleKeyEvent applies one key press and reports whether to quit.
func (p *RemoteScreen) HandleKeyEvent(ev *tcell.EventKey) bool {
	p.mu.RLock()
	editing := p.editing
	p.mu.RUnlock()

	if editing {
		p.editKey(ev)
		return false
	}

	act := keyAction(ev)
	if act == actQuit {
		return true
	}
	p.report(p.run(act, ev.Rune()))
	return false
}

func (p *RemoteScreen) editKey(ev *tcell.EventKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Key() {
	case tcell.KeyEnter, tcell.KeyEscape:
		p.editing = false
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if r := []rune(p.ref); len(r) > 0 {
			p.ref = string(r[:len(r)-1])
		}
	case tcell.KeyCtrlU:
		p.ref = ""
	case tcell.KeyRune:
		p.ref += string(ev.Rune())
	}
}

func (p *RemoteScreen) run(act action, r rune) error {
	if p.Remote == nil {
		return nil
	}

	p.mu.RLock()
	ref := strings.TrimSpace(p.ref)
	snap := p.snap
	p.mu.RUnlock()

	switch act {
	case actScan:
		if !p.scanLimit.Allow() {
			return nil
		}
		return p.Remote.Scan()
	case actSelect:
		d, err := deviceForKey(snap, r)
		if err != nil {
			return err
		}
		return p.Remote.SelectDevice(d.Addr)
	case actEdit:
		p.mu.Lock()
		p.editing = true
		p.mu.Unlock()
	case actCast:
		return p.Remote.Cast(ref)
	case actEnqueue:
		return p.Remote.Enqueue(ref)
	case actCastSite:
		return p.Remote.CastSite(ref)
	case actStop:
		return p.Remote.Stop()
	case actPlayToggle:
		return p.Remote.PlayToggle()
	case actRewind:
		return p.Remote.Rewind()
	case actFastForward:
		return p.Remote.FastForward()
	case actSkip:
		return p.Remote.Skip()
	case actMute:
		return p.Remote.ToggleMute()
	case actVolumeUp:
		return p.Remote.VolumeUp()
	case actVolumeDown:
		return p.Remote.VolumeDown()
	case actRefresh:
		if !p.refreshLimit.Allow() {
			return nil
		}
		return p.Remote.Refresh()
	case actRelay:
		relay := snap.Relay
		relay.Enabled = !relay.Enabled
		return p.Remote.SetRelay(relay)
	}
	return nil
}

// report shows errors the controller has not already put on the status
// line.
func (p *RemoteScreen) report(err error) {
	if err == nil || errors.Is(err, session.ErrBusy) || errors.Is(err, session.ErrEmptyReference) {
		return
	}
	p.mu.Lock()
	p.note = err.Error()
	p.mu.Unlock()
}

func (p *RemoteScreen) emitStr(x, y int, style tcell.Style, str string) {
	s := p.Current
	for _, c := range str {
		var comb []rune
		w := runewidth.RuneWidth(c)
		if w == 0 {
			comb = []rune{c}
			c = ' '
			w = 1
		}
		s.SetContent(x, y, c, comb, style)
		x += w
	}
}

func (p *RemoteScreen) emitCentered(y int, style tcell.Style, str string) {
	w, _ := p.Current.Size()
	p.emitStr(max(w/2-runewidth.StringWidth(str)/2, 0), y, style, str)
}

func (p *RemoteScreen) draw() {
	p.mu.RLock()
	snap := p.snap
	message, note := p.message, p.note
	ref, editing := p.ref, p.editing
	p.mu.RUnlock()

	s := p.Current
	_, h := s.Size()
	boldStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite).Bold(true)
	blinkStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite).Blink(true)
	dimStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorGray)

	s.Clear()

	p.emitStr(1, 1, tcell.StyleDefault, "Press ESC or q to exit.")
	y := 3
	for i, d := range snap.Devices {
		if i >= 9 {
			break
		}
		marker := " "
		if snap.HasDevice && d.Addr == snap.Device.Addr {
			marker = "*"
		}
		p.emitStr(1, y, tcell.StyleDefault, fmt.Sprintf("%s %d. %s", marker, i+1, d.Label()))
		y++
	}

	mid := max(h/2, y+2)
	p.emitCentered(mid-2, tcell.StyleDefault, "Title: "+snap.Title)

	msgStyle := boldStyle
	if snap.Busy || snap.Status == session.Confirming {
		msgStyle = blinkStyle
	}
	p.emitCentered(mid, msgStyle, message)
	if note != "" {
		p.emitCentered(mid+1, dimStyle, note)
	}
	if line := progressLine(snap); line != "" {
		p.emitCentered(mid+2, tcell.StyleDefault, line)
	}
	if snap.Muted {
		p.emitCentered(mid+3, blinkStyle, "MUTED")
	}

	refStyle := tcell.StyleDefault
	prompt := "Media: "
	if editing {
		refStyle = boldStyle
		prompt = "Media (Enter to finish): "
	}
	p.emitStr(1, mid+5, refStyle, prompt+ref)
	p.emitStr(1, mid+6, dimStyle, relayLine(snap.Relay))

	for i, line := range helpLines {
		p.emitCentered(mid+8+i, dimStyle, line)
	}
	s.Show()
}

var helpLines = []string{
	`"d" scan  "1-9" device  "i" edit media  "c" cast  "e" enqueue  "w" site`,
	`"p" play/pause  "s" stop  "←/→" -/+15s  "n" skip  "m" mute  "PgUp/PgDn" volume`,
	`"r" refresh  "y" relay on/off`,
}

func relayLine(r session.RelaySettings) string {
	if !r.Enabled {
		return "Relay: off"
	}
	if r.Host == "" {
		return "Relay: on (no host configured)"
	}
	return "Relay: on via " + r.Host
}

// progressLine renders position, duration and volume for Active sessions.
func progressLine(s session.Snapshot) string {
	if s.Status != session.Active {
		return ""
	}

	var parts []string
	switch {
	case s.Live:
		parts = append(parts, "LIVE")
	case s.Duration > 0:
		parts = append(parts, formatClock(s.Position)+" / "+formatClock(s.Duration))
	}
	if s.Volume > 0 || s.Muted {
		parts = append(parts, fmt.Sprintf("Vol %d%%", s.Volume))
	}
	return strings.Join(parts, "  ")
}

func formatClock(sec int) string {
	sec = max(sec, 0)
	h, m, s := sec/3600, sec/60%60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
