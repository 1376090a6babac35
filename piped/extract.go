package piped

import (
	"net/url"
	"path"
	"strings"
)

// DefaultHost is the public relay API used when none is configured.
const DefaultHost = "pipedapi.kavin.rocks"

const videoIDLen = 11

// ExtractVideoID pulls a video identifier out of a bare 11 character token,
// a youtu.be short link, or a youtube.com / youtube-nocookie.com / relay
// frontend URL (v query parameter or /shorts/<id>).
func ExtractVideoID(ref string) (string, bool) {
	return extractVideoID(ref, DefaultHost)
}

func extractVideoID(ref, relayHost string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if isBareID(ref) {
		return ref, true
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Host)

	if strings.HasSuffix(host, "youtu.be") {
		seg, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		return seg, seg != ""
	}

	relay := strings.ToLower(hostOnly(relayHost))
	if !strings.Contains(host, "youtube.com") &&
		!strings.Contains(host, "youtube-nocookie.com") &&
		(relay == "" || !strings.Contains(host, relay)) {
		return "", false
	}

	if v := u.Query().Get("v"); v != "" {
		return v, true
	}

	var parts []string
	for p := range strings.SplitSeq(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) >= 2 && parts[0] == "shorts" {
		return parts[1], true
	}

	return "", false
}

// Eligible reports whether ref can be routed through the relay.
func Eligible(ref string) bool {
	_, ok := ExtractVideoID(ref)
	return ok
}

// EligibleFor is Eligible with links to a custom relay frontend accepted.
func EligibleFor(ref, relayHost string) bool {
	_, ok := extractVideoID(ref, relayHost)
	return ok
}

func isBareID(s string) bool {
	if len(s) != videoIDLen {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// NormalizeHost turns a bare hostname into an https origin and drops any
// trailing slash.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/")
}

func hostOnly(host string) string {
	u, err := url.Parse(NormalizeHost(host))
	if err != nil {
		return host
	}
	return u.Host
}

// ManifestKind classifies a resolved URL as "hls", "dash" or "" for
// progressive media.
func ManifestKind(mediaURL string) string {
	u, err := url.Parse(strings.TrimSpace(mediaURL))
	if err != nil {
		return ""
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u8":
		return "hls"
	case ".mpd":
		return "dash"
	}
	return ""
}

func extFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
}
