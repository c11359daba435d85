package client

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEntry(t *testing.T) {
	service, err := fromEntry(&mdns.ServiceEntry{
		Name:       "home._homelink-ws._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       3000,
		InfoFields: []string{"version=dev", "path=/device"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ws://192.168.1.20:3000/device", service.URL())
}

func TestFromEntry_DefaultPathAndIPv6(t *testing.T) {
	service, err := fromEntry(&mdns.ServiceEntry{
		AddrV6: net.ParseIP("fe80::1"),
		Port:   3000,
	})
	require.NoError(t, err)
	assert.Equal(t, "ws://[fe80::1]:3000/socket", service.URL())
}

func TestFromEntry_NoAddress(t *testing.T) {
	_, err := fromEntry(&mdns.ServiceEntry{Port: 3000})
	assert.Error(t, err)
}

func TestFirstEntry_DrainsLateEntries(t *testing.T) {
	entries := make(chan *mdns.ServiceEntry, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(entries)
		for port := 3000; port < 3010; port++ {
			entries <- &mdns.ServiceEntry{Port: port}
		}
	}()

	entry, ok := firstEntry(entries)
	require.True(t, ok)
	assert.Equal(t, 3000, entry.Port)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender blocked after the first entry was taken")
	}
}

func TestFirstEntry_NoneFound(t *testing.T) {
	entries := make(chan *mdns.ServiceEntry)
	close(entries)

	_, ok := firstEntry(entries)
	assert.False(t, ok)
}
