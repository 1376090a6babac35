package devices

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNoDeviceAvailable  = errors.New("no Chromecast receivers found")
	ErrDeviceNotAvailable = errors.New("requested device not available")
)

// AudioOnlyTag marks receivers without video output in scan lines.
const AudioOnlyTag = "audio only"

// Device is a cast receiver. Addr is the only field used to address it;
// Name and Model are cosmetic.
type Device struct {
	Name        string
	Addr        string
	Model       string
	IsAudioOnly bool
}

// Label is the display form used by front-ends.
func (d Device) Label() string {
	l := d.Addr
	if d.Name != "" {
		l = d.Name + " (" + d.Addr + ")"
	}
	if d.IsAudioOnly {
		l += " [" + AudioOnlyTag + "]"
	}
	return l
}

// ShortName is the name without the address suffix.
func (d Device) ShortName() string {
	if d.Name == "" {
		return d.Addr
	}
	return d.Name
}

// Find returns the device whose address matches addr.
func Find(list []Device, addr string) (Device, bool) {
	for _, d := range list {
		if d.Addr == addr {
			return d, true
		}
	}
	return Device{}, false
}

// DevicePicker returns the nth (1-based) device in list.
func DevicePicker(list []Device, n int) (Device, error) {
	if n <= 0 || n > len(list) {
		return Device{}, ErrDeviceNotAvailable
	}
	return list[n-1], nil
}

// SortByName orders devices case-insensitively by name, then address.
func SortByName(list []Device) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
		if a != b {
			return a < b
		}
		return list[i].Addr < list[j].Addr
	})
}
