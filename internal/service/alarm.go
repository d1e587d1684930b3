package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"smartwindow-hub/internal/model"
	"smartwindow-hub/internal/store"
	"smartwindow-hub/internal/wire"
)

// AlarmService manages per-device alarms and replicates every change
// to the device as an incremental delta published after the database
// write. A failed publish surfaces to the caller like any other
// command-delivery failure; the committed row stays, and a device that
// missed the delta recovers by requesting a full snapshot.
type AlarmService struct {
	repo *store.Repository
	pub  Publisher
}

func NewAlarmService(repo *store.Repository, pub Publisher) *AlarmService {
	return &AlarmService{repo: repo, pub: pub}
}

// AlarmInput is the validated shape shared by create and update.
type AlarmInput struct {
	Name       string
	AlarmTime  string
	RepeatDays []string
	Active     bool
}

func (in AlarmInput) validate() (datatypes.JSON, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := model.ValidateAlarmTime(in.AlarmTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	days, err := model.NormalizeRepeatDays(in.RepeatDays)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (s *AlarmService) Create(ctx context.Context, userID, deviceID uuid.UUID, in AlarmInput) (*model.Alarm, error) {
	days, err := in.validate()
	if err != nil {
		return nil, err
	}
	d, err := s.repo.GetDeviceForUser(ctx, deviceID, userID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
	}
	a := &model.Alarm{
		DeviceID:   d.ID,
		Name:       in.Name,
		AlarmTime:  in.AlarmTime,
		RepeatDays: days,
		Active:     in.Active,
	}
	if err := s.repo.CreateAlarm(ctx, a); err != nil {
		return nil, err
	}
	if err := s.pub.Publish(d.DeviceUniqueID, wire.NewAlarmUpsert(*a)); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AlarmService) Update(ctx context.Context, userID, alarmID uuid.UUID, in AlarmInput) (*model.Alarm, error) {
	days, err := in.validate()
	if err != nil {
		return nil, err
	}
	a, d, err := s.owned(ctx, userID, alarmID)
	if err != nil {
		return nil, err
	}
	a.Name = in.Name
	a.AlarmTime = in.AlarmTime
	a.RepeatDays = days
	a.Active = in.Active
	if err := s.repo.SaveAlarm(ctx, a); err != nil {
		return nil, err
	}
	if err := s.pub.Publish(d.DeviceUniqueID, wire.NewAlarmUpsert(*a)); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AlarmService) Delete(ctx context.Context, userID, alarmID uuid.UUID) error {
	a, d, err := s.owned(ctx, userID, alarmID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAlarm(ctx, a.ID); err != nil {
		return err
	}
	return s.pub.Publish(d.DeviceUniqueID, wire.NewAlarmDelete(a.ID.String()))
}

func (s *AlarmService) ListByDevice(ctx context.Context, userID, deviceID uuid.UUID) ([]model.Alarm, error) {
	d, err := s.repo.GetDeviceForUser(ctx, deviceID, userID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
	}
	return s.repo.ListAlarmsByDevice(ctx, d.ID)
}

func (s *AlarmService) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Alarm, error) {
	return s.repo.ListAlarmsByUser(ctx, userID)
}

func (s *AlarmService) owned(ctx context.Context, userID, alarmID uuid.UUID) (*model.Alarm, *model.Device, error) {
	a, err := s.repo.GetAlarmForUser(ctx, alarmID, userID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, fmt.Errorf("%w: alarm %s", ErrNotFound, alarmID)
	}
	d, err := s.repo.GetDeviceForUser(ctx, a.DeviceID, userID)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, nil, fmt.Errorf("%w: device %s", ErrNotFound, a.DeviceID)
	}
	return a, d, nil
}
