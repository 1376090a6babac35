package catt

import (
	"strings"

	"github.com/ergosteur/catt-cast-gui/devices"
)

// ParseScan reads "address - name - model" lines as printed by catt scan.
// Lines with fewer than two fields are skipped; output order is kept.
func ParseScan(out string) []devices.Device {
	var list []devices.Device
	for line := range strings.Lines(out) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, " - ")
		if len(parts) < 2 {
			continue
		}

		d := devices.Device{
			Addr: strings.TrimSpace(parts[0]),
			Name: strings.TrimSpace(parts[1]),
		}
		if n := len(parts); n > 3 && strings.TrimSpace(parts[n-1]) == devices.AudioOnlyTag {
			d.IsAudioOnly = true
			parts = parts[:n-1]
		}
		if len(parts) > 2 {
			d.Model = strings.TrimSpace(strings.Join(parts[2:], " - "))
		}
		list = append(list, d)
	}
	return list
}

// FormatScan renders devices in the catt scan line format.
func FormatScan(list []devices.Device) string {
	var b strings.Builder
	for i, d := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(d.Addr)
		b.WriteString(" - ")
		b.WriteString(d.Name)
		b.WriteString(" - ")
		b.WriteString(d.Model)
		if d.IsAudioOnly {
			b.WriteString(" - ")
			b.WriteString(devices.AudioOnlyTag)
		}
	}
	return b.String()
}
