package catt

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the parsed form of `catt status`.
type Status struct {
	Fields map[string]string

	Title    string
	HasTitle bool
	State    string

	Volume    int
	HasVolume bool
	Muted     bool

	Position    int
	HasPosition bool
	Duration    int
	HasDuration bool
}

// Live reports whether the media has no usable duration.
func (s Status) Live() bool {
	return !s.HasDuration || s.Duration <= 0
}

// StateLabel is the player state with only its first letter upper-cased,
// "Unknown" when catt did not report one.
func (s Status) StateLabel() string {
	st := strings.ToLower(strings.TrimSpace(s.State))
	if st == "" {
		return "Unknown"
	}
	return strings.ToUpper(st[:1]) + st[1:]
}

// ParseStatus reads newline separated "Key: Value" lines. Keys are
// matched case-insensitively. A malformed time field leaves position and
// duration unset instead of failing the parse.
func ParseStatus(out string) Status {
	st := Status{Fields: make(map[string]string)}
	for line := range strings.Lines(out) {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		st.Fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	if v, ok := st.Fields["title"]; ok {
		st.Title = v
		st.HasTitle = true
	}
	st.State = st.Fields["state"]

	if v, ok := st.Fields["volume"]; ok {
		st.HasVolume = true
		if n, err := strconv.Atoi(v); err == nil {
			st.Volume = n
		}
	}
	st.Muted = strings.EqualFold(st.Fields["volume muted"], "true")

	if v, ok := st.Fields["time"]; ok {
		elapsed, total, hasTotal, err := parseTimeField(v)
		if err == nil {
			st.Position, st.HasPosition = elapsed, true
			st.Duration, st.HasDuration = total, hasTotal
		}
	}

	return st
}

func parseTimeField(v string) (elapsed, total int, hasTotal bool, err error) {
	parts := strings.Split(v, " / ")
	elapsed, err = ParseClock(parts[0])
	if err != nil {
		return 0, 0, false, err
	}
	if len(parts) > 1 {
		// catt may append a percentage after the total.
		field, _, _ := strings.Cut(strings.TrimSpace(parts[1]), " ")
		total, err = ParseClock(field)
		if err != nil {
			return 0, 0, false, err
		}
		hasTotal = true
	}
	return elapsed, total, hasTotal, nil
}

// ParseClock converts "H:MM:SS" to seconds.
func ParseClock(s string) (int, error) {
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("ParseClock: malformed time %q", s)
	}

	var parts [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("ParseClock: malformed time %q", s)
		}
		parts[i] = n
	}

	return parts[0]*3600 + parts[1]*60 + parts[2], nil
}

// FormatClock renders seconds as HH:MM:SS; negative values render as zero.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// formatCattClock renders seconds the way catt prints them (H:MM:SS).
func formatCattClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// FormatStatus renders a status in the catt text format so other backends
// can feed the same parser.
func FormatStatus(st Status) string {
	var lines []string
	if st.HasTitle {
		lines = append(lines, "Title: "+st.Title)
	}
	if st.HasPosition {
		t := formatCattClock(st.Position)
		if st.HasDuration {
			t += " / " + formatCattClock(st.Duration)
		}
		lines = append(lines, "Time: "+t)
	}
	if st.State != "" {
		lines = append(lines, "State: "+st.State)
	}
	if st.HasVolume {
		lines = append(lines, "Volume: "+strconv.Itoa(st.Volume))
		muted := "False"
		if st.Muted {
			muted = "True"
		}
		lines = append(lines, "Volume muted: "+muted)
	}
	return strings.Join(lines, "\n")
}
