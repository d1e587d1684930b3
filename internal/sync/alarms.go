package sync

import (
	"context"
	"fmt"
	"log/slog"

	"smartwindow-hub/internal/model"
	"smartwindow-hub/internal/wire"
)

// AlarmStore is the slice of the repository the replicator needs.
type AlarmStore interface {
	GetDeviceByUniqueID(ctx context.Context, uniqueID string) (*model.Device, error)
	ListAlarmsByDevice(ctx context.Context, deviceID any) ([]model.Alarm, error)
}

// CommandPublisher sends one command payload to one device.
type CommandPublisher interface {
	Publish(deviceUniqueID string, payload wire.CommandPayload) error
}

// AlarmReplicator answers a device's request for its alarm list with a
// single full snapshot. Devices use this to rebuild local schedules
// after a reboot or a missed delta.
type AlarmReplicator struct {
	store AlarmStore
	pub   CommandPublisher
}

func NewAlarmReplicator(store AlarmStore, pub CommandPublisher) *AlarmReplicator {
	return &AlarmReplicator{store: store, pub: pub}
}

// PublishSnapshot looks up the device, loads every alarm attached to
// it, and publishes them as one array. An empty list still publishes
// so the device can clear stale local entries.
func (a *AlarmReplicator) PublishSnapshot(ctx context.Context, deviceUniqueID string) error {
	dev, err := a.store.GetDeviceByUniqueID(ctx, deviceUniqueID)
	if err != nil {
		return fmt.Errorf("device lookup: %w", err)
	}
	if dev == nil {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceUniqueID)
	}
	alarms, err := a.store.ListAlarmsByDevice(ctx, dev.ID)
	if err != nil {
		return fmt.Errorf("list alarms: %w", err)
	}
	if err := a.pub.Publish(deviceUniqueID, wire.NewAlarmSnapshot(alarms)); err != nil {
		return err
	}
	slog.Info("alarm snapshot published", "device", deviceUniqueID, "count", len(alarms))
	return nil
}
