package castprotocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/ergosteur/catt-cast-gui/devices"
	"github.com/ergosteur/catt-cast-gui/piped"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog"
)

// DefaultScanTimeout is how long a scan browses for receivers.
const DefaultScanTimeout = 4 * time.Second

// ErrUnsupported is returned for catt verbs the native backend cannot serve.
var ErrUnsupported = errors.New("not supported by the native backend")

// Receiver is the per-device control surface. *CastClient implements it.
type Receiver interface {
	Load(mediaURL, contentType string, startTime int) error
	LoadLocal(path string) error
	Play() error
	Pause() error
	Stop() error
	Skip() error
	Seek(seconds int) error
	SeekBy(delta int) error
	SetVolume(level float32) error
	SetMuted(muted bool) error
	GetStatus() (*CastStatus, error)
	Close(stopMedia bool) error
}

// Channel answers catt style invocations by talking Cast v2 directly, so
// the session can run without the catt executable installed.
type Channel struct {
	// Dial connects to a receiver. Defaults to a connected *CastClient.
	Dial func(addr string) (Receiver, error)
	// Discover lists receivers. Defaults to devices.DiscoverChromecasts.
	Discover    func(ctx context.Context, timeout time.Duration) ([]devices.Device, error)
	ScanTimeout time.Duration
	// Grace is how long a local cast must keep serving before it counts
	// as started.
	Grace time.Duration

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once

	mu        sync.Mutex
	receivers map[string]*receiverConn
}

var (
	_ Receiver     = (*CastClient)(nil)
	_ catt.Process = (*localProcess)(nil)
)

type receiverConn struct {
	mu sync.Mutex
	r  Receiver
}

// NewChannel returns a Channel using real discovery and connections.
func NewChannel() *Channel {
	return &Channel{
		ScanTimeout: DefaultScanTimeout,
		Grace:       catt.DefaultGrace,
	}
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (ch *Channel) Log() *zerolog.Logger {
	if ch.LogOutput != nil {
		ch.initLogOnce.Do(func() {
			ch.Logger = zerolog.New(ch.LogOutput).With().Timestamp().Str("Component", "castprotocol").Logger()
		})
	}
	return &ch.Logger
}

func (ch *Channel) dial(addr string) (Receiver, error) {
	if ch.Dial != nil {
		return ch.Dial(addr)
	}

	host, port, err := SplitAddr(addr)
	if err != nil {
		return nil, err
	}
	if !devices.HostPortIsAlive(net.JoinHostPort(host, strconv.Itoa(port))) {
		return nil, fmt.Errorf("%s: %w", addr, devices.ErrDeviceNotAvailable)
	}

	c, err := NewCastClient(addr)
	if err != nil {
		return nil, err
	}
	c.LogOutput = ch.LogOutput
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Invoke implements the session channel contract.
func (ch *Channel) Invoke(ctx context.Context, args []string, mode catt.Mode) (catt.Result, error) {
	verb := catt.Verb(args)
	if verb == "scan" {
		return ch.scan(ctx, args)
	}

	addr := catt.DeviceAddr(args)
	if addr == "" {
		return catt.Result{}, commandError(args, errors.New("no device specified"))
	}

	if verb == "cast" && mode == catt.DetachedLocalCast {
		return ch.castLocal(ctx, args, addr)
	}

	var out string
	err := ch.withReceiver(ctx, addr, func(r Receiver) error {
		var err error
		out, err = ch.apply(r, args)
		return err
	})
	if err != nil {
		var ce *catt.CommandError
		if errors.As(err, &ce) {
			return catt.Result{}, err
		}
		return catt.Result{}, commandError(args, err)
	}
	return catt.Result{Output: out}, nil
}

func (ch *Channel) scan(ctx context.Context, args []string) (catt.Result, error) {
	discover := ch.Discover
	if discover == nil {
		discover = devices.DiscoverChromecasts
	}
	timeout := ch.ScanTimeout
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}

	list, err := discover(ctx, timeout)
	if err != nil {
		return catt.Result{}, commandError(args, err)
	}
	return catt.Result{Output: catt.FormatScan(list)}, nil
}

// withReceiver runs fn with the cached connection for addr, serialized per
// device. A failing connection is dropped so the next call redials.
func (ch *Channel) withReceiver(ctx context.Context, addr string, fn func(Receiver) error) error {
	rc := ch.conn(addr)

	errCh := make(chan error, 1)
	go func() {
		rc.mu.Lock()
		defer rc.mu.Unlock()

		if rc.r == nil {
			r, err := ch.dial(addr)
			if err != nil {
				errCh <- err
				return
			}
			rc.r = r
		}

		err := fn(rc.r)
		if err != nil && !isReceiverError(err) {
			ch.Log().Debug().Str("Method", "withReceiver").Str("Addr", addr).Err(err).Msg("dropping connection")
			_ = rc.r.Close(false)
			rc.r = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ch *Channel) conn(addr string) *receiverConn {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.receivers == nil {
		ch.receivers = make(map[string]*receiverConn)
	}
	rc, ok := ch.receivers[addr]
	if !ok {
		rc = &receiverConn{}
		ch.receivers[addr] = rc
	}
	return rc
}

// Close disconnects every cached receiver without stopping playback.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	conns := ch.receivers
	ch.receivers = nil
	ch.mu.Unlock()

	var errs []error
	for _, rc := range conns {
		rc.mu.Lock()
		if rc.r != nil {
			errs = append(errs, rc.r.Close(false))
			rc.r = nil
		}
		rc.mu.Unlock()
	}
	return errors.Join(errs...)
}

// apply maps one catt verb onto the receiver.
func (ch *Channel) apply(r Receiver, args []string) (string, error) {
	verb, ops := catt.Verb(args), catt.Operands(args)

	switch verb {
	case "status":
		st, err := r.GetStatus()
		if err != nil {
			return "", err
		}
		return catt.FormatStatus(st.CattStatus()), nil

	case "cast":
		ref, err := operand(args, ops, 0)
		if err != nil {
			return "", err
		}
		return "", r.Load(ref, ContentTypeFor(ref), 0)

	case "stop":
		return "", r.Stop()

	case "play_toggle":
		st, err := r.GetStatus()
		if err != nil {
			return "", err
		}
		if st.PlayerState == "PLAYING" || st.PlayerState == "BUFFERING" {
			return "", r.Pause()
		}
		return "", r.Play()

	case "skip":
		return "", r.Skip()

	case "seek":
		n, err := intOperand(args, ops)
		if err != nil {
			return "", err
		}
		return "", r.Seek(max(n, 0))

	case "rewind", "ffwd":
		n, err := intOperand(args, ops)
		if err != nil {
			return "", err
		}
		if verb == "rewind" {
			n = -n
		}
		return "", r.SeekBy(n)

	case "volume":
		n, err := intOperand(args, ops)
		if err != nil {
			return "", err
		}
		return "", r.SetVolume(percentToLevel(n))

	case "volumeup", "volumedown":
		n, err := intOperand(args, ops)
		if err != nil {
			return "", err
		}
		st, err := r.GetStatus()
		if err != nil {
			return "", err
		}
		if verb == "volumedown" {
			n = -n
		}
		return "", r.SetVolume(percentToLevel(st.VolumePercent() + n))

	case "volumemute":
		st, err := r.GetStatus()
		if err != nil {
			return "", err
		}
		return "", r.SetMuted(!st.Muted)
	}

	return "", &catt.CommandError{Args: args, ExitCode: 1, Stderr: fmt.Sprintf("%s: %v", verb, ErrUnsupported)}
}

// castLocal serves a local file from a background goroutine and hands the
// session a Process that stops it. The receiver connection is dedicated to
// the local cast since LoadLocal blocks until playback ends.
func (ch *Channel) castLocal(ctx context.Context, args []string, addr string) (catt.Result, error) {
	ref, err := operand(args, catt.Operands(args), 0)
	if err != nil {
		return catt.Result{}, err
	}

	r, err := ch.dial(addr)
	if err != nil {
		return catt.Result{}, commandError(args, err)
	}

	p := newLocalProcess(r)
	go p.serve(ref)

	grace := ch.Grace
	if grace <= 0 {
		grace = catt.DefaultGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.Done():
		ch.Log().Debug().Str("Method", "castLocal").Err(p.err).Msg("local cast ended inside grace window")
		ce := &catt.CommandError{Args: args, EarlyExit: true}
		if p.err != nil {
			ce.ExitCode, ce.Stderr = 1, p.err.Error()
		}
		return catt.Result{}, ce
	case <-ctx.Done():
		_ = p.Terminate()
		return catt.Result{}, ctx.Err()
	case <-timer.C:
		return catt.Result{Output: catt.DetachedStartedMsg, Process: p}, nil
	}
}

// ContentTypeFor guesses a MIME type from a media URL, falling back to mp4.
func ContentTypeFor(ref string) string {
	switch piped.ManifestKind(ref) {
	case "hls":
		return "application/x-mpegURL"
	case "dash":
		return "application/dash+xml"
	}

	p := ref
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if t := filetype.GetType(ext); t.MIME.Value != "" {
		return t.MIME.Value
	}
	return "video/mp4"
}

func percentToLevel(pct int) float32 {
	return float32(min(max(pct, 0), 100)) / 100
}

func operand(args, ops []string, i int) (string, error) {
	if len(ops) <= i || strings.TrimSpace(ops[i]) == "" {
		return "", &catt.CommandError{Args: args, ExitCode: 2, Stderr: "missing argument"}
	}
	return ops[i], nil
}

func intOperand(args, ops []string) (int, error) {
	s, err := operand(args, ops, 0)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &catt.CommandError{Args: args, ExitCode: 2, Stderr: fmt.Sprintf("invalid value %q", s)}
	}
	return n, nil
}

func commandError(args []string, err error) *catt.CommandError {
	return &catt.CommandError{Args: args, ExitCode: 1, Stderr: err.Error(), Cause: err}
}

// isReceiverError reports errors that came back from the receiver over a
// healthy connection, as opposed to transport failures.
func isReceiverError(err error) bool {
	var ce *catt.CommandError
	return errors.As(err, &ce)
}
