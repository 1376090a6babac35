package catt

import "strconv"

const (
	// SeekStep is the rewind/ffwd jump in seconds.
	SeekStep = 15
	// VolumeStep is the volumeup/volumedown delta in percent.
	VolumeStep = 5
)

// ScanArgs lists receivers on the local network.
func ScanArgs() []string {
	return []string{"scan"}
}

func deviceArgs(addr string, verb ...string) []string {
	return append([]string{"-d", addr}, verb...)
}

func CastArgs(addr, ref string) []string     { return deviceArgs(addr, "cast", ref) }
func CastSiteArgs(addr, url string) []string { return deviceArgs(addr, "cast_site", url) }
func AddArgs(addr, ref string) []string      { return deviceArgs(addr, "add", ref) }
func StopArgs(addr string) []string          { return deviceArgs(addr, "stop") }
func StatusArgs(addr string) []string        { return deviceArgs(addr, "status") }
func PlayToggleArgs(addr string) []string    { return deviceArgs(addr, "play_toggle") }
func SkipArgs(addr string) []string          { return deviceArgs(addr, "skip") }
func VolumeMuteArgs(addr string) []string    { return deviceArgs(addr, "volumemute") }

// VolumeArgs clamps percent to 0-100.
func VolumeArgs(addr string, percent int) []string {
	return deviceArgs(addr, "volume", strconv.Itoa(clamp(percent, 0, 100)))
}

// SeekArgs seeks to an absolute position; negative positions seek to 0.
func SeekArgs(addr string, seconds int) []string {
	return deviceArgs(addr, "seek", strconv.Itoa(max(seconds, 0)))
}

func RewindArgs(addr string) []string {
	return deviceArgs(addr, "rewind", strconv.Itoa(SeekStep))
}

func FastForwardArgs(addr string) []string {
	return deviceArgs(addr, "ffwd", strconv.Itoa(SeekStep))
}

func VolumeDownArgs(addr string) []string {
	return deviceArgs(addr, "volumedown", strconv.Itoa(VolumeStep))
}

func VolumeUpArgs(addr string) []string {
	return deviceArgs(addr, "volumeup", strconv.Itoa(VolumeStep))
}

// DeviceAddr returns the value of the -d flag, if any.
func DeviceAddr(args []string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-d" {
			return args[i+1]
		}
	}
	return ""
}

// Operands returns the arguments following the verb.
func Operands(args []string) []string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-d" {
			i++
			continue
		}
		return args[i+1:]
	}
	return nil
}

func clamp(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
