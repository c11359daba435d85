package services

import (
	"errors"
	"time"
)

// ErrDeviceAbsent means no device session is connected. It is an expected
// outcome, not a failure; callers branch on it with errors.Is.
var ErrDeviceAbsent = errors.New("no device connected")

// DeviceStatus describes the current device session for health reporting.
type DeviceStatus struct {
	Connected      bool       `json:"device_connected"`
	SessionID      string     `json:"session_id,omitempty"`
	RemoteAddr     string     `json:"remote_addr,omitempty"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	PendingQueries int        `json:"pending_queries"`
}

// ServiceError represents structured service layer errors
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"cause,omitempty"`
}

func (e ServiceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e ServiceError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeCanceled     = "CANCELED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)
