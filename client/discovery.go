package client

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service a homelink server advertises.
const ServiceType = "_homelink-ws._tcp"

// DiscoveredService is a homelink server found on the local network.
type DiscoveredService struct {
	ServiceName string
	Address     string
	Port        int
	Path        string
	TXTRecords  []string
}

// URL returns the device channel address of the service.
func (s *DiscoveredService) URL() string {
	return "ws://" + net.JoinHostPort(s.Address, strconv.Itoa(s.Port)) + s.Path
}

// Discover waits up to timeout for the first homelink server on the LAN.
func Discover(timeout time.Duration) (*DiscoveredService, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entriesCh
	params.Timeout = timeout

	go func() {
		defer close(entriesCh)
		if err := mdns.Query(params); err != nil {
			slog.Debug("mDNS lookup failed", "error", err)
		}
	}()

	entry, ok := firstEntry(entriesCh)
	if !ok {
		return nil, fmt.Errorf("no %s service found within %s", ServiceType, timeout)
	}
	return fromEntry(entry)
}

// firstEntry returns the first entry and keeps draining the rest so the
// sender never blocks. The query closes entries when its timeout ends.
func firstEntry(entries <-chan *mdns.ServiceEntry) (*mdns.ServiceEntry, bool) {
	for entry := range entries {
		if entry == nil {
			continue
		}
		go func() {
			for range entries {
			}
		}()
		return entry, true
	}
	return nil, false
}

func fromEntry(entry *mdns.ServiceEntry) (*DiscoveredService, error) {
	var address string
	switch {
	case entry.AddrV4 != nil:
		address = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		address = entry.AddrV6.String()
	default:
		return nil, fmt.Errorf("no valid address found for service")
	}

	service := &DiscoveredService{
		ServiceName: entry.Name,
		Address:     address,
		Port:        entry.Port,
		Path:        "/socket",
		TXTRecords:  entry.InfoFields,
	}
	for _, field := range entry.InfoFields {
		if path, ok := strings.CutPrefix(field, "path="); ok && path != "" {
			service.Path = path
		}
	}

	slog.Info("Discovered homelink server",
		"service_name", service.ServiceName,
		"url", service.URL(),
	)
	return service, nil
}
