package devices

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// CapabilityVideoOut is the bitmask for video output capability (bit 0)
	CapabilityVideoOut = 1

	googlecastService = "_googlecast._tcp"
	// DefaultDiscoveryTimeout bounds a single mDNS browse.
	DefaultDiscoveryTimeout = 3 * time.Second
)

// mdnsQuery is swapped in tests.
var mdnsQuery = mdns.Query

// DiscoverChromecasts browses for Chromecast receivers on every active
// IPv4 multicast interface and returns them sorted by name. Addr has the
// form "ip:port".
func DiscoverChromecasts(ctx context.Context, timeout time.Duration) ([]Device, error) {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	found := make(map[string]Device)
	var mu sync.Mutex

	entriesCh := make(chan *mdns.ServiceEntry, 256)
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		for entry := range entriesCh {
			d, ok := deviceFromEntry(entry)
			if !ok {
				continue
			}
			mu.Lock()
			found[d.Addr] = d
			mu.Unlock()
		}
	}()

	queryIface := func(iface *net.Interface) {
		params := mdns.DefaultParams(googlecastService)
		params.Entries = entriesCh
		params.Timeout = timeout
		params.DisableIPv6 = true
		params.WantUnicastResponse = true
		params.Logger = log.New(io.Discard, "", 0)
		params.Interface = iface
		_ = mdnsQuery(params)
	}

	interfaces := getActiveNetworkInterfaces()
	if len(interfaces) > 0 {
		var wg sync.WaitGroup
		for _, iface := range interfaces {
			wg.Add(1)
			go func(iface net.Interface) {
				defer wg.Done()
				queryIface(&iface)
			}(iface)
		}
		wg.Wait()
	} else {
		queryIface(nil)
	}

	close(entriesCh)
	<-doneCh

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("DiscoverChromecasts: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Device, 0, len(found))
	for _, d := range found {
		out = append(out, d)
	}
	SortByName(out)

	return out, nil
}

func deviceFromEntry(entry *mdns.ServiceEntry) (Device, bool) {
	if entry == nil || entry.AddrV4 == nil {
		return Device{}, false
	}
	if !strings.Contains(entry.Name, "_googlecast") {
		return Device{}, false
	}

	d := Device{
		Addr: net.JoinHostPort(entry.AddrV4.String(), strconv.Itoa(entry.Port)),
		Name: entry.Name,
	}

	for _, txt := range entry.InfoFields {
		switch {
		case strings.HasPrefix(txt, "fn="):
			d.Name = strings.TrimPrefix(txt, "fn=")
		case strings.HasPrefix(txt, "md="):
			d.Model = strings.TrimPrefix(txt, "md=")
		case strings.HasPrefix(txt, "ca="):
			d.IsAudioOnly = isChromecastAudioOnly(strings.TrimPrefix(txt, "ca="))
		}
	}

	if idx := strings.Index(d.Name, "._googlecast"); idx > 0 {
		d.Name = d.Name[:idx]
	}

	return d, true
}

func getActiveNetworkInterfaces() []net.Interface {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var active []net.Interface
	for _, iface := range interfaces {
		// Skip down, loopback, or non-multicast interfaces.
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagMulticast == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				active = append(active, iface)
				break
			}
		}
	}

	return active
}

// HostPortIsAlive checks if a device at the given address is reachable via TCP connection.
func HostPortIsAlive(address string) bool {
	conn, err := net.DialTimeout("tcp", address, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// isChromecastAudioOnly reads the "ca" capability bitmask; a device without
// the video-out bit is audio only. Unparseable values count as video.
func isChromecastAudioOnly(caField string) bool {
	ca, err := strconv.Atoi(caField)
	if err != nil {
		return false
	}
	return (ca & CapabilityVideoOut) == 0
}
