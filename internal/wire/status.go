package wire

import (
	"errors"
	"fmt"
	"strings"

	"smartwindow-hub/internal/model"
)

// Status keys a device reports on /devices/{uid}/status/{key}.
const (
	StatusPower   = "power"
	StatusOpen    = "open"
	StatusOpacity = "opacity"
	StatusMode    = "mode"
	StatusSensor  = "sensor"
)

// Request keys a device sends on /devices/{uid}/request/{key}.
const (
	RequestAlarms = "alarms"
)

var ErrInvalidPayload = errors.New("invalid status payload")

// ParseStatusBool decodes the legacy boolean status body: the literal
// strings "true" / "false", not JSON booleans. Devices have shipped with
// this format, so it is parsed as-is rather than JSON-decoded.
func ParseStatusBool(payload []byte) (bool, error) {
	switch strings.TrimSpace(string(payload)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: want \"true\" or \"false\", got %q", ErrInvalidPayload, payload)
	}
}

// ParseStatusMode decodes a mode status body: the bare enum name.
func ParseStatusMode(payload []byte) (model.DeviceMode, error) {
	m, err := model.ParseDeviceMode(string(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	return m, nil
}
