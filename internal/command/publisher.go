// Package command publishes outbound device commands. Publishing is
// fire-and-forget from the domain's point of view: callers commit their
// local state first and treat a failed publish as a reported, not
// rolled-back, condition.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"smartwindow-hub/internal/mqtt"
	"smartwindow-hub/internal/topic"
	"smartwindow-hub/internal/wire"
)

var (
	// ErrEncodePayload marks a local data error: the payload could not
	// be serialized. Never retried.
	ErrEncodePayload = errors.New("command payload encode failed")
	// ErrPublish marks a transport failure after encoding succeeded.
	ErrPublish = errors.New("command publish failed")
)

type Publisher struct {
	client mqtt.ClientAPI
}

func NewPublisher(client mqtt.ClientAPI) *Publisher {
	return &Publisher{client: client}
}

// Publish serializes payload and hands it to the transport on the
// command topic derived from the payload's own key. The returned error
// wraps ErrEncodePayload or ErrPublish so callers can tell a data bug
// from a broker problem.
func (p *Publisher) Publish(deviceUniqueID string, payload wire.CommandPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("command encode failed", "device", deviceUniqueID, "command", payload.CommandKey(), "error", err)
		return fmt.Errorf("%w: %v", ErrEncodePayload, err)
	}
	t := topic.EncodeCommand(deviceUniqueID, payload.CommandKey())
	if err := p.client.Publish(t, body); err != nil {
		slog.Error("command publish failed", "topic", t, "error", err)
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	slog.Info("command published", "topic", t, "bytes", len(body))
	return nil
}
