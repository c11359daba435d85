package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mbocsi/homelink/proto"
	"github.com/mbocsi/homelink/server"
)

// DeviceServiceImpl implements DeviceService
type DeviceServiceImpl struct {
	registry     *server.SessionRegistry
	queryTracker *QueryTracker
}

// NewDeviceService creates a device service over the session registry
func NewDeviceService(registry *server.SessionRegistry, tracker *QueryTracker) *DeviceServiceImpl {
	if tracker == nil {
		tracker = NewQueryTracker(0)
	}
	return &DeviceServiceImpl{
		registry:     registry,
		queryTracker: tracker,
	}
}

func (ds *DeviceServiceImpl) Query(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	session, ok := ds.registry.Current()
	if !ok {
		return nil, ErrDeviceAbsent
	}

	slog.Debug("Querying device", "query", name, "session", session.Meta().Id)
	return ds.queryTracker.SendQuery(ctx, session, name, payload)
}

func (ds *DeviceServiceImpl) Instruct(name string, payload any) error {
	if err := validateName(name); err != nil {
		return err
	}

	session, ok := ds.registry.Current()
	if !ok {
		return ErrDeviceAbsent
	}

	payloadBytes, err := marshalPayload(payload)
	if err != nil {
		return ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Failed to marshal command payload",
			Cause:   err,
		}
	}

	if err := session.Send(proto.NewCommand(name, payloadBytes)); err != nil {
		return ServiceError{
			Code:    ErrCodeInternal,
			Message: "Failed to send command message",
			Cause:   err,
		}
	}
	return nil
}

func (ds *DeviceServiceImpl) Status() DeviceStatus {
	status := DeviceStatus{PendingQueries: ds.queryTracker.Pending()}

	session, ok := ds.registry.Current()
	if !ok {
		return status
	}

	meta := session.Meta()
	meta.Mu.RLock()
	defer meta.Mu.RUnlock()

	status.Connected = true
	status.SessionID = meta.Id
	status.RemoteAddr = meta.RemoteAddr
	connectedAt, lastSeen := meta.ConnectedAt, meta.LastSeen
	status.ConnectedAt = &connectedAt
	status.LastSeen = &lastSeen
	return status
}

// HandleResponse handles incoming response messages for query correlation
func (ds *DeviceServiceImpl) HandleResponse(msg proto.Message) bool {
	return ds.queryTracker.HandleResponse(msg)
}

// SessionEnded abandons the queries of a replaced or disconnected session
func (ds *DeviceServiceImpl) SessionEnded(sessionID string) {
	ds.queryTracker.Abandon(sessionID)
}
