package sync

import (
	"context"
	"log/slog"

	paho "github.com/eclipse/paho.mqtt.golang"

	"smartwindow-hub/internal/mqtt"
	"smartwindow-hub/internal/topic"
	"smartwindow-hub/internal/wire"
)

// Subscriber binds the two inbound wildcard subscriptions and routes
// each message to the reconciler or the alarm replicator. A bad message
// is logged and dropped; it never takes the subscription down.
type Subscriber struct {
	client     mqtt.ClientAPI
	reconciler *Reconciler
	alarms     *AlarmReplicator
}

func NewSubscriber(client mqtt.ClientAPI, reconciler *Reconciler, alarms *AlarmReplicator) *Subscriber {
	return &Subscriber{client: client, reconciler: reconciler, alarms: alarms}
}

// Start subscribes to the status and request wildcards. The broker
// redelivers on reconnect, so Start is called once at boot.
func (s *Subscriber) Start() error {
	if err := s.client.Subscribe(topic.StatusPattern, s.handleInbound); err != nil {
		return err
	}
	return s.client.Subscribe(topic.RequestPattern, s.handleInbound)
}

func (s *Subscriber) Stop() {
	if err := s.client.Unsubscribe(topic.StatusPattern); err != nil {
		slog.Warn("unsubscribe failed", "topic", topic.StatusPattern, "error", err)
	}
	if err := s.client.Unsubscribe(topic.RequestPattern); err != nil {
		slog.Warn("unsubscribe failed", "topic", topic.RequestPattern, "error", err)
	}
}

func (s *Subscriber) handleInbound(_ paho.Client, msg paho.Message) {
	// Device firmware is not trusted input: a panic on one message must
	// not kill the paho router goroutine.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("inbound handler panic", "topic", msg.Topic(), "payload", string(msg.Payload()), "panic", rec)
		}
	}()

	in, err := topic.DecodeInbound(msg.Topic())
	if err != nil {
		slog.Warn("dropping inbound message", "topic", msg.Topic(), "error", err)
		return
	}

	ctx := context.Background()
	switch in.Kind {
	case topic.KindStatus:
		if err := s.reconciler.ApplyStatus(ctx, in.DeviceUniqueID, in.Subtype, msg.Payload()); err != nil {
			slog.Warn("status report dropped", "topic", msg.Topic(), "payload", string(msg.Payload()), "error", err)
		}
	case topic.KindRequest:
		if in.Subtype != wire.RequestAlarms {
			slog.Warn("unknown request key", "topic", msg.Topic(), "key", in.Subtype)
			return
		}
		if err := s.alarms.PublishSnapshot(ctx, in.DeviceUniqueID); err != nil {
			slog.Warn("alarm snapshot failed", "topic", msg.Topic(), "error", err)
		}
	}
}
