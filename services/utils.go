package services

import (
	"encoding/json"
)

// marshalPayload marshals payload to JSON bytes. A nil payload is sent as
// no payload at all.
func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

// validateName validates a query or command name
func validateName(name string) error {
	if name == "" {
		return ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Name cannot be empty",
		}
	}
	return nil
}
