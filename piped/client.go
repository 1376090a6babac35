package piped

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

var (
	ErrNoSuchIdentifier  = errors.New("could not extract a video ID")
	ErrRelayNetwork      = errors.New("relay request failed")
	ErrNoStreamAvailable = errors.New("no suitable stream URL found (no progressive/HLS/DASH available)")
)

const (
	// UserAgent is sent on every relay request.
	UserAgent = "piped-best-url/1.1"
	// DefaultTimeout bounds a whole resolution, retries included.
	DefaultTimeout = 15 * time.Second

	relayHTTPDialTimeout           = 5 * time.Second
	relayHTTPKeepAlive             = 30 * time.Second
	relayHTTPTLSHandshakeTimeout   = 5 * time.Second
	relayHTTPResponseHeaderTimeout = 10 * time.Second
	relayHTTPIdleConnTimeout       = 90 * time.Second
	relayRetryMax                  = 2
	maxBodyBytes                   = 8 << 20
)

var relayHTTPTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   relayHTTPDialTimeout,
		KeepAlive: relayHTTPKeepAlive,
	}).DialContext,
	TLSHandshakeTimeout:   relayHTTPTLSHandshakeTimeout,
	ResponseHeaderTimeout: relayHTTPResponseHeaderTimeout,
	IdleConnTimeout:       relayHTTPIdleConnTimeout,
}

func newRetryableHTTPClient(retryMax int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.Logger = nil
	retryClient.HTTPClient = &http.Client{Transport: relayHTTPTransport}

	return retryClient.StandardClient()
}

// Client resolves video references into direct media URLs through a
// Piped-compatible relay API.
type Client struct {
	HTTPClient  *http.Client
	Preferences Preferences
	Timeout     time.Duration
	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// NewClient returns a Client with retries and the default preferences.
func NewClient() *Client {
	return &Client{
		HTTPClient:  newRetryableHTTPClient(relayRetryMax),
		Preferences: DefaultPreferences(),
		Timeout:     DefaultTimeout,
	}
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (c *Client) Log() *zerolog.Logger {
	if c.LogOutput != nil {
		c.initLogOnce.Do(func() {
			c.Logger = zerolog.New(c.LogOutput).With().Timestamp().Logger()
		})
	}
	return &c.Logger
}

// Resolve returns the best direct URL for reference. Progressive streams
// are preferred; the HLS manifest and then the DASH manifest are used as
// fallbacks.
func (c *Client) Resolve(ctx context.Context, reference, relayHost string) (string, error) {
	id, ok := extractVideoID(reference, relayHost)
	if !ok {
		return "", fmt.Errorf("%w from: %s", ErrNoSuchIdentifier, reference)
	}

	data, err := c.Streams(ctx, relayHost, id)
	if err != nil {
		return "", err
	}

	prefs := c.Preferences
	if len(prefs.Containers) == 0 && len(prefs.Codecs) == 0 {
		prefs = DefaultPreferences()
	}

	if best, ok := PickBestProgressive(data.VideoStreams, prefs); ok {
		c.Log().Debug().Str("Method", "Resolve").Str("ID", id).Msg("picked progressive stream")
		return best, nil
	}
	if data.HLS != "" {
		c.Log().Debug().Str("Method", "Resolve").Str("ID", id).Msg("falling back to HLS")
		return data.HLS, nil
	}
	if data.Dash != "" {
		c.Log().Debug().Str("Method", "Resolve").Str("ID", id).Msg("falling back to DASH")
		return data.Dash, nil
	}

	return "", ErrNoStreamAvailable
}

// Streams fetches GET {base}/streams/{id}.
func (c *Client) Streams(ctx context.Context, relayHost, id string) (*StreamsResponse, error) {
	base := NormalizeHost(relayHost)
	if base == "" {
		base = NormalizeHost(DefaultHost)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := base + "/streams/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRelayNetwork, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = newRetryableHTTPClient(relayRetryMax)
	}

	c.Log().Debug().Str("Method", "Streams").Str("URL", endpoint).Msg("querying relay")
	resp, err := client.Do(req)
	if err != nil {
		c.Log().Error().Str("Method", "Streams").Err(err).Msg("relay request failed")
		return nil, fmt.Errorf("%w: %w", ErrRelayNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrRelayNetwork, endpoint, resp.Status)
	}

	var data StreamsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrRelayNetwork, err)
	}

	return &data, nil
}
