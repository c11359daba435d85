package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

var ErrMissingField = errors.New("missing payload field")

// Reading is a gas sensor snapshot reported by the device. Values keep the
// textual form the device sent so nothing is lost to float formatting.
type Reading struct {
	CO           string
	GasLPG       string
	Smoke        string
	Link         string
	AnalysisLink string // optional
}

// ParseReading extracts a Reading from a status, fire or watch payload.
func ParseReading(data []byte) (Reading, error) {
	var (
		r   Reading
		err error
	)
	if r.CO, err = fieldText(data, "CO"); err != nil {
		return Reading{}, err
	}
	if r.GasLPG, err = fieldText(data, "GAS_LPG"); err != nil {
		return Reading{}, err
	}
	if r.Smoke, err = fieldText(data, "SMOKE"); err != nil {
		return Reading{}, err
	}
	if r.Link, err = fieldText(data, "link"); err != nil {
		return Reading{}, err
	}
	r.AnalysisLink, _ = fieldText(data, "analysis_link")
	return r, nil
}

// Succeeded reports whether a reply carries a truthy "OK" field.
// A missing field or an unparsable payload counts as failure.
func Succeeded(data []byte) bool {
	value, typ, _, err := jsonparser.Get(data, "OK")
	if err != nil {
		return false
	}
	switch typ {
	case jsonparser.Boolean:
		ok, err := jsonparser.ParseBoolean(value)
		return err == nil && ok
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(value)
		return err == nil && f != 0
	case jsonparser.String:
		return len(value) > 0
	case jsonparser.Object, jsonparser.Array:
		return true
	default:
		return false
	}
}

// ParseString accepts either a bare JSON string or an object with the given
// key. Devices push image URLs and notices as bare strings.
func ParseString(data []byte, key string) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: empty string", ErrMissingField)
		}
		return s, nil
	}
	return fieldText(data, key)
}

// fieldText returns strings unquoted and any other value as the device sent
// it, so numbers keep their literal JSON spelling.
func fieldText(data []byte, key string) (string, error) {
	value, typ, _, err := jsonparser.Get(data, key)
	if err != nil || typ == jsonparser.NotExist || typ == jsonparser.Null {
		return "", fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	if typ == jsonparser.String {
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
		return s, nil
	}
	return string(value), nil
}
