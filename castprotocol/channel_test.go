package castprotocol

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ergosteur/catt-cast-gui/catt"
	"github.com/ergosteur/catt-cast-gui/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReceiver struct {
	mu      sync.Mutex
	status  CastStatus
	calls   []string
	volume  float32
	muted   *bool
	seek    int
	seekBy  int
	loaded  string
	ctype   string
	failOn  string
	closed  int
	localCh chan error
}

func (f *fakeReceiver) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeReceiver) Load(u, ct string, _ int) error {
	f.loaded, f.ctype = u, ct
	return f.record("Load")
}

func (f *fakeReceiver) LoadLocal(path string) error {
	f.mu.Lock()
	f.loaded = path
	f.mu.Unlock()
	_ = f.record("LoadLocal")
	return <-f.localCh
}

func (f *fakeReceiver) Play() error  { return f.record("Play") }
func (f *fakeReceiver) Pause() error { return f.record("Pause") }
func (f *fakeReceiver) Stop() error  { return f.record("Stop") }
func (f *fakeReceiver) Skip() error  { return f.record("Skip") }
func (f *fakeReceiver) Seek(s int) error {
	f.seek = s
	return f.record("Seek")
}
func (f *fakeReceiver) SeekBy(d int) error {
	f.seekBy = d
	return f.record("SeekBy")
}
func (f *fakeReceiver) SetVolume(l float32) error {
	f.volume = l
	return f.record("SetVolume")
}
func (f *fakeReceiver) SetMuted(m bool) error {
	f.muted = &m
	return f.record("SetMuted")
}

func (f *fakeReceiver) GetStatus() (*CastStatus, error) {
	if err := f.record("GetStatus"); err != nil {
		return nil, err
	}
	st := f.status
	return &st, nil
}

func (f *fakeReceiver) Close(stop bool) error {
	f.mu.Lock()
	f.closed++
	ch := f.localCh
	f.mu.Unlock()
	if stop && ch != nil {
		select {
		case ch <- nil:
		default:
		}
	}
	return nil
}

func newTestChannel(r *fakeReceiver) (*Channel, *int) {
	dials := 0
	ch := NewChannel()
	ch.Grace = 30 * time.Millisecond
	ch.Dial = func(addr string) (Receiver, error) {
		dials++
		return r, nil
	}
	return ch, &dials
}

const addr = "192.168.1.30:8009"

func TestInvokeStatus(t *testing.T) {
	r := &fakeReceiver{status: CastStatus{
		HasMedia:    true,
		PlayerState: "PLAYING",
		CurrentTime: 61.4,
		Duration:    3600,
		Volume:      0.35,
		ContentID:   "https://example.com/media/film.mp4?token=abc",
	}}
	ch, _ := newTestChannel(r)

	res, err := ch.Invoke(context.Background(), catt.StatusArgs(addr), catt.Blocking)
	require.NoError(t, err)

	st := catt.ParseStatus(res.Output)
	assert.True(t, st.HasTitle)
	assert.Equal(t, "film.mp4", st.Title)
	assert.Equal(t, "PLAYING", st.State)
	assert.Equal(t, 61, st.Position)
	assert.Equal(t, 3600, st.Duration)
	assert.Equal(t, 35, st.Volume)
	assert.False(t, st.Muted)
}

func TestInvokeStatusIdle(t *testing.T) {
	r := &fakeReceiver{status: CastStatus{PlayerState: "IDLE", Volume: 0.5, Muted: true}}
	ch, _ := newTestChannel(r)

	res, err := ch.Invoke(context.Background(), catt.StatusArgs(addr), catt.Blocking)
	require.NoError(t, err)

	st := catt.ParseStatus(res.Output)
	assert.False(t, st.HasTitle)
	assert.True(t, st.HasVolume)
	assert.Equal(t, 50, st.Volume)
	assert.True(t, st.Muted)
}

func TestInvokeTransport(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		state string
		call  string
		check func(t *testing.T, r *fakeReceiver)
	}{
		{name: "pause when playing", args: catt.PlayToggleArgs(addr), state: "PLAYING", call: "Pause"},
		{name: "play when paused", args: catt.PlayToggleArgs(addr), state: "PAUSED", call: "Play"},
		{name: "stop", args: catt.StopArgs(addr), call: "Stop"},
		{name: "skip", args: catt.SkipArgs(addr), call: "Skip"},
		{
			name: "seek", args: catt.SeekArgs(addr, 90), call: "Seek",
			check: func(t *testing.T, r *fakeReceiver) { assert.Equal(t, 90, r.seek) },
		},
		{
			name: "rewind", args: catt.RewindArgs(addr), call: "SeekBy",
			check: func(t *testing.T, r *fakeReceiver) { assert.Equal(t, -catt.SeekStep, r.seekBy) },
		},
		{
			name: "ffwd", args: catt.FastForwardArgs(addr), call: "SeekBy",
			check: func(t *testing.T, r *fakeReceiver) { assert.Equal(t, catt.SeekStep, r.seekBy) },
		},
		{
			name: "volume", args: catt.VolumeArgs(addr, 40), call: "SetVolume",
			check: func(t *testing.T, r *fakeReceiver) { assert.InDelta(t, 0.4, r.volume, 0.001) },
		},
		{
			name: "volume up", args: catt.VolumeUpArgs(addr), call: "SetVolume",
			check: func(t *testing.T, r *fakeReceiver) { assert.InDelta(t, 0.55, r.volume, 0.001) },
		},
		{
			name: "volume down", args: catt.VolumeDownArgs(addr), call: "SetVolume",
			check: func(t *testing.T, r *fakeReceiver) { assert.InDelta(t, 0.45, r.volume, 0.001) },
		},
		{
			name: "mute toggles", args: catt.VolumeMuteArgs(addr), call: "SetMuted",
			check: func(t *testing.T, r *fakeReceiver) {
				require.NotNil(t, r.muted)
				assert.True(t, *r.muted)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeReceiver{status: CastStatus{HasMedia: true, PlayerState: tt.state, Volume: 0.5}}
			ch, _ := newTestChannel(r)

			_, err := ch.Invoke(context.Background(), tt.args, catt.Blocking)
			require.NoError(t, err)
			assert.Contains(t, r.calls, tt.call)
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}

func TestInvokeCastURL(t *testing.T) {
	r := &fakeReceiver{}
	ch, _ := newTestChannel(r)

	_, err := ch.Invoke(context.Background(), catt.CastArgs(addr, "https://cdn.example/live/index.m3u8"), catt.Blocking)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/live/index.m3u8", r.loaded)
	assert.Equal(t, "application/x-mpegURL", r.ctype)
}

func TestInvokeUnsupported(t *testing.T) {
	r := &fakeReceiver{}
	ch, dials := newTestChannel(r)

	for _, args := range [][]string{
		catt.AddArgs(addr, "https://example.com/a.mp4"),
		catt.CastSiteArgs(addr, "https://example.com"),
	} {
		_, err := ch.Invoke(context.Background(), args, catt.Blocking)
		var ce *catt.CommandError
		require.ErrorAs(t, err, &ce)
		assert.Contains(t, ce.Error(), ErrUnsupported.Error())
	}
	assert.Equal(t, 1, *dials, "receiver errors keep the connection")
	assert.Zero(t, r.closed)
}

func TestInvokeTransportErrorRedials(t *testing.T) {
	r := &fakeReceiver{failOn: "Stop"}
	ch, dials := newTestChannel(r)

	_, err := ch.Invoke(context.Background(), catt.StopArgs(addr), catt.Blocking)
	require.ErrorIs(t, err, catt.ErrCommandFailed)
	assert.Equal(t, "Stop failed", err.Error())

	r.failOn = ""
	_, err = ch.Invoke(context.Background(), catt.StopArgs(addr), catt.Blocking)
	require.NoError(t, err)
	assert.Equal(t, 2, *dials)
}

func TestInvokeMissingDevice(t *testing.T) {
	ch, _ := newTestChannel(&fakeReceiver{})
	_, err := ch.Invoke(context.Background(), []string{"status"}, catt.Blocking)
	require.ErrorIs(t, err, catt.ErrCommandFailed)
}

func TestInvokeUnreachableDevice(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ch := &Channel{}
	_, err = ch.Invoke(context.Background(), catt.StatusArgs(addr), catt.Blocking)
	require.ErrorIs(t, err, catt.ErrCommandFailed)
	assert.ErrorIs(t, err, devices.ErrDeviceNotAvailable)
}

func TestInvokeScanAudioOnly(t *testing.T) {
	ch, _ := newTestChannel(&fakeReceiver{})
	ch.Discover = func(context.Context, time.Duration) ([]devices.Device, error) {
		return []devices.Device{{Name: "Speaker", Addr: "10.0.0.6:8009", IsAudioOnly: true}}, nil
	}

	res, err := ch.Invoke(context.Background(), catt.ScanArgs(), catt.Blocking)
	require.NoError(t, err)
	list := catt.ParseScan(res.Output)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsAudioOnly)
	assert.Equal(t, "Speaker (10.0.0.6:8009) [audio only]", list[0].Label())
}

func TestInvokeScan(t *testing.T) {
	ch, _ := newTestChannel(&fakeReceiver{})
	ch.Discover = func(ctx context.Context, timeout time.Duration) ([]devices.Device, error) {
		assert.Equal(t, DefaultScanTimeout, timeout)
		return []devices.Device{{Name: "Den", Addr: "10.0.0.5:8009", Model: "Chromecast Ultra"}}, nil
	}

	res, err := ch.Invoke(context.Background(), catt.ScanArgs(), catt.Blocking)
	require.NoError(t, err)

	list := catt.ParseScan(res.Output)
	require.Len(t, list, 1)
	assert.Equal(t, "Den", list[0].Name)
	assert.Equal(t, "10.0.0.5:8009", list[0].Addr)
	assert.Equal(t, "Chromecast Ultra", list[0].Model)
}

func TestCastLocalStartsAndTerminates(t *testing.T) {
	r := &fakeReceiver{localCh: make(chan error, 1)}
	ch, _ := newTestChannel(r)

	res, err := ch.Invoke(context.Background(), catt.CastArgs(addr, "/media/movie.mkv"), catt.DetachedLocalCast)
	require.NoError(t, err)
	require.NotNil(t, res.Process)
	assert.Equal(t, catt.DetachedStartedMsg, res.Output)
	assert.Equal(t, "/media/movie.mkv", r.loaded)

	require.NoError(t, res.Process.Terminate())
	select {
	case <-res.Process.Done():
	case <-time.After(time.Second):
		t.Fatal("local cast did not stop")
	}
}

func TestCastLocalEarlyExit(t *testing.T) {
	r := &fakeReceiver{localCh: make(chan error, 1)}
	r.localCh <- errors.New("unsupported media")
	ch, _ := newTestChannel(r)

	_, err := ch.Invoke(context.Background(), catt.CastArgs(addr, "/media/file.xyz"), catt.DetachedLocalCast)
	var ce *catt.CommandError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.EarlyExit)
	assert.Equal(t, "unsupported media", ce.Error())
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"https://a.example/x.m3u8":           "application/x-mpegURL",
		"https://a.example/manifest.mpd?x=1": "application/dash+xml",
		"https://a.example/clip.webm":        "video/webm",
		"https://a.example/song.mp3":         "audio/mpeg",
		"https://a.example/film.mkv":         "video/x-matroska",
		"https://a.example/watch":            "video/mp4",
	}
	for in, want := range tests {
		assert.Equal(t, want, ContentTypeFor(in), in)
	}
}

func TestSplitAddr(t *testing.T) {
	host, port, err := SplitAddr("192.168.1.9")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.9", host)
	assert.Equal(t, DefaultPort, port)

	host, port, err = SplitAddr("192.168.1.9:8010")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.9", host)
	assert.Equal(t, 8010, port)

	_, _, err = SplitAddr("192.168.1.9:http")
	assert.Error(t, err)
	_, _, err = SplitAddr("")
	assert.Error(t, err)
}

func TestCastStatusTitle(t *testing.T) {
	assert.Equal(t, "Named", (&CastStatus{MediaTitle: "Named", ContentID: "x/y.mp4"}).Title())
	assert.Equal(t, "y.mp4", (&CastStatus{ContentID: "https://h/x/y.mp4#t=1"}).Title())
	assert.Empty(t, (&CastStatus{}).Title())
}
