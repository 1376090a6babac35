package castprotocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vishen/go-chromecast/application"
	"github.com/vishen/go-chromecast/cast"
)

// DefaultPort is the Cast v2 control port.
const DefaultPort = 8009

// wakeRetries bounds the load retries for receivers that time out while
// waking up from standby.
const wakeRetries = 3

var wakeDelay = 4 * time.Second

// app is the subset of go-chromecast's Application the client drives.
type app interface {
	Start(addr string, port int) error
	Load(filenameOrURL string, startTime int, contentType string, transcode, detach, forceDetach bool) error
	Update() error
	Status() (*cast.Application, *cast.Media, *cast.Volume)
	Pause() error
	Unpause() error
	Stop() error
	Skip() error
	Seek(value int) error
	SeekFromStart(value int) error
	SetVolume(value float32) error
	SetMuted(value bool) error
	Close(stopMedia bool) error
}

// CastClient wraps go-chromecast Application for one receiver.
type CastClient struct {
	app         app
	mu          sync.RWMutex
	host        string
	port        int
	connected   bool
	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (c *CastClient) Log() *zerolog.Logger {
	if c.LogOutput != nil {
		c.initLogOnce.Do(func() {
			c.Logger = zerolog.New(c.LogOutput).With().Timestamp().Str("Component", "castprotocol").Logger()
		})
	}
	return &c.Logger
}

// NewCastClient accepts "host" or "host:port".
func NewCastClient(deviceAddr string) (*CastClient, error) {
	host, port, err := SplitAddr(deviceAddr)
	if err != nil {
		return nil, err
	}

	a := application.NewApplication(
		application.WithCacheDisabled(true),
		application.WithConnectionRetries(wakeRetries),
	)

	return &CastClient{
		app:  a,
		host: host,
		port: port,
	}, nil
}

// SplitAddr splits a receiver address, defaulting the port to DefaultPort.
func SplitAddr(deviceAddr string) (string, int, error) {
	if deviceAddr == "" {
		return "", 0, errors.New("parse device addr: empty address")
	}

	host, portStr, err := net.SplitHostPort(deviceAddr)
	if err != nil {
		// No port given.
		return deviceAddr, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("parse device addr: invalid port %q", portStr)
	}
	return host, port, nil
}

// Connect establishes the connection to the receiver.
func (c *CastClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Log().Debug().Str("Method", "Connect").Str("Host", c.host).Int("Port", c.port).Msg("connecting")
	if err := c.app.Start(c.host, c.port); err != nil {
		c.Log().Error().Str("Method", "Connect").Err(err).Msg("connection failed")
		return fmt.Errorf("chromecast connect: %w", err)
	}
	c.connected = true
	return nil
}

// isTimeoutError reports errors a sleeping receiver typically produces.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Load starts mediaURL on the default media receiver and returns once the
// receiver accepted it.
func (c *CastClient) Load(mediaURL, contentType string, startTime int) error {
	c.Log().Debug().Str("Method", "Load").Str("URL", mediaURL).Str("ContentType", contentType).Int("StartTime", startTime).Msg("loading media")

	if !c.IsConnected() {
		if err := c.Connect(); err != nil {
			return fmt.Errorf("reconnect before load: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := range wakeRetries {
		err := c.app.Load(mediaURL, startTime, contentType, false, true, true)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTimeoutError(err) {
			break
		}
		c.Log().Debug().Str("Method", "Load").Int("Attempt", attempt).Err(err).Msg("timeout, receiver may be waking up, retrying")
		time.Sleep(wakeDelay)
	}

	c.Log().Error().Str("Method", "Load").Err(lastErr).Msg("load failed")
	return lastErr
}

// LoadLocal serves path from this host and blocks until playback ends or
// the client is closed.
func (c *CastClient) LoadLocal(path string) error {
	c.Log().Debug().Str("Method", "LoadLocal").Str("Path", path).Msg("serving local file")

	if !c.IsConnected() {
		if err := c.Connect(); err != nil {
			return fmt.Errorf("reconnect before load: %w", err)
		}
	}

	// Not under mu: the call blocks for the length of the media and
	// transport commands must still get through.
	return c.app.Load(path, 0, "", false, false, false)
}

// Play resumes playback.
func (c *CastClient) Play() error {
	return c.locked("Play", c.app.Unpause)
}

// Pause pauses playback.
func (c *CastClient) Pause() error {
	return c.locked("Pause", c.app.Pause)
}

// Stop stops playback and closes the media session.
func (c *CastClient) Stop() error {
	return c.locked("Stop", c.app.Stop)
}

// Skip moves to the next queue item.
func (c *CastClient) Skip() error {
	return c.locked("Skip", c.app.Skip)
}

// Seek seeks to position in seconds from start.
func (c *CastClient) Seek(seconds int) error {
	return c.locked("Seek", func() error { return c.app.SeekFromStart(seconds) })
}

// SeekBy seeks relative to the current position.
func (c *CastClient) SeekBy(delta int) error {
	return c.locked("SeekBy", func() error { return c.app.Seek(delta) })
}

// SetVolume sets volume (0.0 to 1.0).
func (c *CastClient) SetVolume(level float32) error {
	return c.locked("SetVolume", func() error { return c.app.SetVolume(level) })
}

// SetMuted sets mute state.
func (c *CastClient) SetMuted(muted bool) error {
	return c.locked("SetMuted", func() error { return c.app.SetMuted(muted) })
}

func (c *CastClient) locked(method string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Log().Debug().Str("Method", method).Msg("sending")
	err := fn()
	if err != nil {
		c.Log().Error().Str("Method", method).Err(err).Msg("failed")
	}
	return err
}

// GetStatus returns current playback status.
// No mutex needed - only reads from underlying library which has its own sync.
func (c *CastClient) GetStatus() (*CastStatus, error) {
	if err := c.app.Update(); err != nil {
		c.Log().Debug().Str("Method", "GetStatus").Err(err).Msg("app.Update failed")
		return nil, err
	}

	_, media, vol := c.app.Status()
	status := &CastStatus{PlayerState: "IDLE"}
	if vol != nil {
		status.Volume = float32(vol.Level)
		status.Muted = vol.Muted
	}
	if media != nil {
		status.HasMedia = true
		status.PlayerState = media.PlayerState
		status.CurrentTime = media.CurrentTime
		if media.Media.Duration > 0 {
			status.Duration = float32(media.Media.Duration)
		}
		status.ContentID = media.Media.ContentId
		status.ContentType = media.Media.ContentType
		status.MediaTitle = media.Media.Metadata.Title
	}
	return status, nil
}

// Close disconnects from the receiver.
func (c *CastClient) Close(stopMedia bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Log().Debug().Str("Method", "Close").Bool("StopMedia", stopMedia).Msg("closing connection")
	c.connected = false
	return c.app.Close(stopMedia)
}

// IsConnected returns whether client is connected.
func (c *CastClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Host returns the hostname of the receiver.
func (c *CastClient) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}
