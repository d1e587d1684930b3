// Package sync is the inbound half of the device loop: it receives
// status reports and requests from windows over MQTT, reconciles the
// persisted device records with what the device reported, and answers
// alarm-list requests with full snapshots.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smartwindow-hub/internal/model"
	"smartwindow-hub/internal/notify"
	"smartwindow-hub/internal/wire"
)

var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrUnknownStatusKey = errors.New("unknown status key")
)

// DeviceStore is the slice of the repository the reconciler needs.
type DeviceStore interface {
	GetDeviceByUniqueID(ctx context.Context, uniqueID string) (*model.Device, error)
	UpdateDeviceByUniqueID(ctx context.Context, uniqueID string, updates map[string]any) (int64, error)
}

// StatusCache receives raw report bodies for keys with no relational
// home. May be nil when no cache is configured.
type StatusCache interface {
	SetSensor(ctx context.Context, deviceUniqueID string, payload []byte) error
	SetStatus(ctx context.Context, deviceUniqueID, statusType string, payload []byte) error
}

// EventSink accepts notification events without blocking.
type EventSink interface {
	Enqueue(ev notify.Event)
}

// Reconciler applies one inbound status report to the persisted device
// record, committing the mutation before the notification event is
// emitted. A fan-out problem can therefore never undo a state change.
type Reconciler struct {
	store  DeviceStore
	cache  StatusCache
	events EventSink
}

func NewReconciler(store DeviceStore, cache StatusCache, events EventSink) *Reconciler {
	return &Reconciler{store: store, cache: cache, events: events}
}

// ApplyStatus runs one state transition. Errors mean the message was
// dropped; the caller logs them and moves on.
func (r *Reconciler) ApplyStatus(ctx context.Context, deviceUniqueID, statusType string, payload []byte) error {
	dev, err := r.store.GetDeviceByUniqueID(ctx, deviceUniqueID)
	if err != nil {
		return fmt.Errorf("device lookup: %w", err)
	}
	if dev == nil {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceUniqueID)
	}

	var body string
	switch statusType {
	case wire.StatusPower:
		v, err := wire.ParseStatusBool(payload)
		if err != nil {
			return err
		}
		if err := r.persist(ctx, deviceUniqueID, map[string]any{"power_status": v}); err != nil {
			return fmt.Errorf("persist power status: %w", err)
		}
		body = dev.Name + " powered " + onOff(v)
	case wire.StatusOpen:
		v, err := wire.ParseStatusBool(payload)
		if err != nil {
			return err
		}
		if err := r.persist(ctx, deviceUniqueID, map[string]any{"open_status": v}); err != nil {
			return fmt.Errorf("persist open status: %w", err)
		}
		if v {
			body = dev.Name + " opened"
		} else {
			body = dev.Name + " closed"
		}
	case wire.StatusOpacity:
		v, err := wire.ParseStatusBool(payload)
		if err != nil {
			return err
		}
		if err := r.persist(ctx, deviceUniqueID, map[string]any{"opacity_status": v}); err != nil {
			return fmt.Errorf("persist opacity status: %w", err)
		}
		if v {
			body = dev.Name + " turned opaque"
		} else {
			body = dev.Name + " turned transparent"
		}
	case wire.StatusMode:
		m, err := wire.ParseStatusMode(payload)
		if err != nil {
			return err
		}
		if err := r.persist(ctx, deviceUniqueID, map[string]any{"mode_status": m}); err != nil {
			return fmt.Errorf("persist mode status: %w", err)
		}
		body = dev.Name + " is now in " + string(m)
	case wire.StatusSensor:
		// No relational field; the raw blob goes to the cache and the
		// owner sees it verbatim.
		if r.cache != nil {
			if err := r.cache.SetSensor(ctx, deviceUniqueID, payload); err != nil {
				slog.Warn("sensor cache write failed", "device", deviceUniqueID, "error", err)
			}
		}
		body = string(payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatusKey, statusType)
	}

	// Only accepted reports become the device's last known status.
	if r.cache != nil {
		if err := r.cache.SetStatus(ctx, deviceUniqueID, statusType, payload); err != nil {
			slog.Warn("status cache write failed", "device", deviceUniqueID, "error", err)
		}
	}

	slog.Info("device status reconciled", "device", deviceUniqueID, "status", statusType)
	if r.events != nil {
		r.events.Enqueue(notify.Event{UserID: dev.UserID, Title: dev.Name, Body: body})
	}
	return nil
}

// persist runs one targeted update. Zero affected rows means the
// device vanished between the lookup and the write; the message is
// dropped like any other unknown-device report.
func (r *Reconciler) persist(ctx context.Context, deviceUniqueID string, updates map[string]any) error {
	n, err := r.store.UpdateDeviceByUniqueID(ctx, deviceUniqueID, updates)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceUniqueID)
	}
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
