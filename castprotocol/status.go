package castprotocol

import (
	"math"
	"path"
	"strings"

	"github.com/ergosteur/catt-cast-gui/catt"
)

// CastStatus represents current Chromecast playback state.
type CastStatus struct {
	HasMedia    bool
	PlayerState string  // "PLAYING", "PAUSED", "IDLE", "BUFFERING"
	CurrentTime float32 // Current position in seconds
	Duration    float32 // Total duration in seconds, 0 for live or unknown
	Volume      float32 // Volume level (0.0 to 1.0)
	Muted       bool
	MediaTitle  string
	ContentID   string
	ContentType string
}

// Title falls back to the last path element of the content id when the
// sender did not attach metadata.
func (s *CastStatus) Title() string {
	if s.MediaTitle != "" {
		return s.MediaTitle
	}
	id := strings.TrimRight(s.ContentID, "/")
	if id == "" {
		return ""
	}
	if i := strings.IndexAny(id, "?#"); i >= 0 {
		id = id[:i]
	}
	return path.Base(id)
}

// VolumePercent converts the 0.0-1.0 level to a rounded percentage.
func (s *CastStatus) VolumePercent() int {
	return int(math.Round(float64(s.Volume) * 100))
}

// CattStatus maps the receiver state onto the status shape catt prints. A
// receiver without a media session only reports its volume, which the
// session reads as idle.
func (s *CastStatus) CattStatus() catt.Status {
	st := catt.Status{
		Volume:    s.VolumePercent(),
		HasVolume: true,
		Muted:     s.Muted,
	}
	if !s.HasMedia || (s.PlayerState == "IDLE" && s.ContentID == "") {
		return st
	}

	st.Title, st.HasTitle = s.Title(), true
	st.State = s.PlayerState
	st.Position, st.HasPosition = int(s.CurrentTime), true
	if s.Duration > 0 {
		st.Duration, st.HasDuration = int(s.Duration), true
	}
	return st
}
