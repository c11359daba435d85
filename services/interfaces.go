package services

import (
	"context"
	"encoding/json"
)

// DeviceService talks to whichever device session is current.
type DeviceService interface {
	// Query sends a named query and waits for the device's single reply.
	// It returns ErrDeviceAbsent when no device is connected. Without a
	// configured timeout it waits until ctx is done.
	Query(ctx context.Context, name string, payload any) (json.RawMessage, error)

	// Instruct sends a named fire-and-forget command.
	Instruct(name string, payload any) error

	Status() DeviceStatus
}
