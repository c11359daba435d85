package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/mdns"
)

// DiscoveryService matches client.ServiceType.
const DiscoveryService = "_homelink-ws._tcp"

// Advertise announces the device channel over mDNS so devices on the LAN
// can find it. The returned func stops the announcement.
func Advertise(instance string, port int, path, version string) (func(), error) {
	host, _ := os.Hostname()
	info := []string{"path=" + path, "version=" + version}

	service, err := mdns.NewMDNSService(instance, DiscoveryService, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	responder, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}

	slog.Info("Advertising device channel", "service", DiscoveryService, "host", host, "port", port, "path", path)
	return func() {
		if err := responder.Shutdown(); err != nil {
			slog.Warn("mDNS shutdown failed", "error", err)
		}
	}, nil
}
