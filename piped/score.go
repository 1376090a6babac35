package piped

import "strings"

// Stream is one entry of the relay's videoStreams array.
type Stream struct {
	URL       string `json:"url"`
	VideoOnly bool   `json:"videoOnly"`
	Container string `json:"container"`
	Format    string `json:"format"`
	Codec     string `json:"codec"`
	Codecs    string `json:"codecs"`
	Height    int    `json:"height"`
	Bitrate   int    `json:"bitrate"`
}

// StreamsResponse is the subset of GET /streams/{id} used for selection.
type StreamsResponse struct {
	VideoStreams []Stream `json:"videoStreams"`
	HLS          string   `json:"hls"`
	Dash         string   `json:"dash"`
}

// Preferences steer progressive stream selection. Earlier entries win.
type Preferences struct {
	Containers []string
	Codecs     []string
}

// DefaultPreferences favours broadly compatible streams.
func DefaultPreferences() Preferences {
	return Preferences{
		Containers: []string{"mp4", "webm"},
		Codecs:     []string{"h264", "av1", "vp9"},
	}
}

// Score ranks a progressive stream as (container rank, codec rank, height,
// bitrate). A rank is len(list)-index for a match and 0 otherwise;
// containers match exactly, codecs by prefix.
func Score(s Stream, prefs Preferences) [4]int {
	container := norm(firstNonEmpty(s.Container, s.Format, extFromURL(s.URL)))
	codec := norm(firstNonEmpty(s.Codec, s.Codecs))

	return [4]int{
		prefRank(container, prefs.Containers, func(v, p string) bool { return v == p }),
		prefRank(codec, prefs.Codecs, strings.HasPrefix),
		s.Height,
		s.Bitrate,
	}
}

// PickBestProgressive returns the URL of the highest scoring muxed
// audio+video stream. Ties keep the earliest candidate.
func PickBestProgressive(streams []Stream, prefs Preferences) (string, bool) {
	var (
		best      [4]int
		bestURL   string
		haveFirst bool
	)
	for _, s := range streams {
		if s.URL == "" || s.VideoOnly {
			continue
		}
		sc := Score(s, prefs)
		if !haveFirst || greater(sc, best) {
			best, bestURL, haveFirst = sc, s.URL, true
		}
	}
	return bestURL, haveFirst
}

func greater(a, b [4]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

func prefRank(val string, list []string, match func(v, p string) bool) int {
	for i, p := range list {
		p = norm(p)
		if p == "" {
			continue
		}
		if match(val, p) {
			return len(list) - i
		}
	}
	return 0
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseList splits a comma separated preference flag.
func ParseList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := norm(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
