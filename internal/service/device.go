// Package service implements the use cases behind the HTTP API:
// device registry, control operations and alarm management. Control
// operations commit the local record first and publish the command
// after, so a broker outage leaves the backend's view intact and the
// caller an explicit error.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"smartwindow-hub/internal/model"
	"smartwindow-hub/internal/store"
	"smartwindow-hub/internal/wire"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDeviceExists = errors.New("device unique id already registered")
	ErrValidation   = errors.New("validation failed")
)

// Publisher sends one command payload to one device.
type Publisher interface {
	Publish(deviceUniqueID string, payload wire.CommandPayload) error
}

// SensorReader serves the latest raw sensor report for a device, nil
// when no report has arrived yet.
type SensorReader interface {
	GetSensor(ctx context.Context, deviceUniqueID string) ([]byte, error)
}

type DeviceService struct {
	repo    *store.Repository
	pub     Publisher
	sensors SensorReader
}

func NewDeviceService(repo *store.Repository, pub Publisher, sensors SensorReader) *DeviceService {
	return &DeviceService{repo: repo, pub: pub, sensors: sensors}
}

// Register attaches a physical window to a user account. The unique id
// is claimed first-come, so a second registration attempt conflicts.
func (s *DeviceService) Register(ctx context.Context, userID uuid.UUID, uniqueID, name string) (*model.Device, error) {
	if uniqueID == "" || name == "" {
		return nil, fmt.Errorf("%w: device_unique_id and name are required", ErrValidation)
	}
	exists, err := s.repo.DeviceUniqueIDExists(ctx, uniqueID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDeviceExists
	}
	d := &model.Device{UserID: userID, DeviceUniqueID: uniqueID, Name: name}
	if err := s.repo.CreateDevice(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DeviceService) List(ctx context.Context, userID uuid.UUID) ([]model.Device, error) {
	return s.repo.ListDevicesByUser(ctx, userID)
}

func (s *DeviceService) Get(ctx context.Context, userID, deviceID uuid.UUID) (*model.Device, error) {
	return s.owned(ctx, userID, deviceID)
}

func (s *DeviceService) Rename(ctx context.Context, userID, deviceID uuid.UUID, name string) (*model.Device, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	d, err := s.owned(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	d.Name = name
	if err := s.repo.SaveDevice(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DeviceService) Delete(ctx context.Context, userID, deviceID uuid.UUID) error {
	d, err := s.owned(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	return s.repo.DeleteDevice(ctx, d.ID)
}

// SetPower commits the desired power state and tells the device. The
// device later confirms over the status channel.
func (s *DeviceService) SetPower(ctx context.Context, userID, deviceID uuid.UUID, on bool) error {
	return s.control(ctx, userID, deviceID,
		map[string]any{"power_status": on}, wire.PowerPayload{Status: on})
}

func (s *DeviceService) SetOpen(ctx context.Context, userID, deviceID uuid.UUID, open bool) error {
	return s.control(ctx, userID, deviceID,
		map[string]any{"open_status": open}, wire.OpenPayload{Status: open})
}

func (s *DeviceService) SetOpacity(ctx context.Context, userID, deviceID uuid.UUID, opaque bool) error {
	return s.control(ctx, userID, deviceID,
		map[string]any{"opacity_status": opaque}, wire.OpacityPayload{Status: opaque})
}

func (s *DeviceService) SetMode(ctx context.Context, userID, deviceID uuid.UUID, mode string) error {
	m, err := model.ParseDeviceMode(mode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.control(ctx, userID, deviceID,
		map[string]any{"mode_status": m}, wire.ModePayload{Status: m})
}

// SetWidgets stores the free-form widget flags and forwards them as-is.
func (s *DeviceService) SetWidgets(ctx context.Context, userID, deviceID uuid.UUID, widgets map[string]any) error {
	raw, err := json.Marshal(widgets)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.control(ctx, userID, deviceID,
		map[string]any{"mode_settings": datatypes.JSON(raw)}, wire.WidgetsPayload(widgets))
}

// SetMedia points the window at one of the owner's media files. The
// device receives the URL directly so it can fetch without another
// round trip.
func (s *DeviceService) SetMedia(ctx context.Context, userID, deviceID, mediaID uuid.UUID) error {
	m, err := s.repo.GetMediaForUser(ctx, mediaID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: media %s", ErrNotFound, mediaID)
	}
	return s.control(ctx, userID, deviceID,
		map[string]any{"media_id": m.ID},
		wire.MediaPayload{MediaID: m.ID.String(), MediaURL: m.FileURL})
}

func (s *DeviceService) SetMusic(ctx context.Context, userID, deviceID, musicID uuid.UUID) error {
	m, err := s.repo.GetMusicForUser(ctx, musicID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: music %s", ErrNotFound, musicID)
	}
	return s.control(ctx, userID, deviceID,
		map[string]any{"music_id": m.ID},
		wire.MusicPayload{MusicID: m.ID.String(), MusicURL: m.FileURL})
}

// Sensor returns the latest cached sensor report, nil when the device
// has not reported yet.
func (s *DeviceService) Sensor(ctx context.Context, userID, deviceID uuid.UUID) ([]byte, error) {
	d, err := s.owned(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	if s.sensors == nil {
		return nil, nil
	}
	return s.sensors.GetSensor(ctx, d.DeviceUniqueID)
}

func (s *DeviceService) owned(ctx context.Context, userID, deviceID uuid.UUID) (*model.Device, error) {
	d, err := s.repo.GetDeviceForUser(ctx, deviceID, userID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
	}
	return d, nil
}

// control is the shared mutate-then-publish path. The update is not
// rolled back when the publish fails: the device converges the next
// time it reports or reconnects, and the caller learns about the
// transport problem from the returned error.
func (s *DeviceService) control(ctx context.Context, userID, deviceID uuid.UUID, updates map[string]any, payload wire.CommandPayload) error {
	d, err := s.owned(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	if _, err := s.repo.UpdateDeviceByUniqueID(ctx, d.DeviceUniqueID, updates); err != nil {
		return err
	}
	return s.pub.Publish(d.DeviceUniqueID, payload)
}
