// Package topic maps device identifiers and message kinds to MQTT topic
// strings and back. No I/O happens here; callers decide what to do with
// a decode failure.
package topic

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindStatus  = "status"
	KindRequest = "request"

	// Wildcard patterns the subscriber binds to.
	StatusPattern  = "/devices/+/status/+"
	RequestPattern = "/devices/+/request/+"
)

var ErrMalformedTopic = errors.New("malformed topic")

// EncodeCommand builds the outbound command topic for one device:
// /devices/{deviceUniqueId}/command/{key}.
func EncodeCommand(deviceUniqueID, key string) string {
	return fmt.Sprintf("/devices/%s/command/%s", deviceUniqueID, key)
}

// Inbound is a decoded status or request topic.
type Inbound struct {
	DeviceUniqueID string
	Kind           string // KindStatus or KindRequest
	Subtype        string // status key or request key
}

// DecodeInbound splits an inbound topic. Topics have a leading slash, so
// a valid one splits into exactly five segments with an empty first
// segment: "", "devices", uid, kind, subtype.
func DecodeInbound(t string) (Inbound, error) {
	parts := strings.Split(t, "/")
	if len(parts) != 5 || parts[0] != "" || parts[1] != "devices" {
		return Inbound{}, fmt.Errorf("%w: %q", ErrMalformedTopic, t)
	}
	if parts[3] != KindStatus && parts[3] != KindRequest {
		return Inbound{}, fmt.Errorf("%w: unknown channel %q", ErrMalformedTopic, parts[3])
	}
	if parts[2] == "" || parts[4] == "" {
		return Inbound{}, fmt.Errorf("%w: empty segment in %q", ErrMalformedTopic, t)
	}
	return Inbound{DeviceUniqueID: parts[2], Kind: parts[3], Subtype: parts[4]}, nil
}
