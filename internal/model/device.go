package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeviceMode is the display mode a window is running in. The names are
// part of the wire protocol and must match what devices report.
type DeviceMode string

const (
	ModeMenu    DeviceMode = "MENU_MODE"
	ModeCustom  DeviceMode = "CUSTOM_MODE"
	ModeAuto    DeviceMode = "AUTO_MODE"
	ModePrivacy DeviceMode = "PRIVACY_MODE"
	ModeGlass   DeviceMode = "GLASS_MODE"
)

var ErrUnknownMode = errors.New("unknown device mode")

func ParseDeviceMode(s string) (DeviceMode, error) {
	switch m := DeviceMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeMenu, ModeCustom, ModeAuto, ModePrivacy, ModeGlass:
		return m, nil
	default:
		return "", ErrUnknownMode
	}
}

// Device is one physical smart window. DeviceUniqueID is the stable
// identifier devices use on the wire; the internal uuid never leaves
// the backend.
type Device struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	DeviceUniqueID string         `gorm:"uniqueIndex;not null" json:"device_unique_id"`
	Name           string         `gorm:"not null" json:"name"`
	PowerStatus    bool           `json:"power_status"`
	OpenStatus     bool           `json:"open_status"`
	OpacityStatus  bool           `json:"opacity_status"`
	ModeStatus     DeviceMode     `gorm:"not null;default:'AUTO_MODE'" json:"mode_status"`
	ModeSettings   datatypes.JSON `gorm:"type:jsonb" json:"mode_settings"`
	MediaID        *uuid.UUID     `gorm:"type:uuid" json:"media_id,omitempty"`
	MusicID        *uuid.UUID     `gorm:"type:uuid" json:"music_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// BeforeCreate GORM hook: ensure UUID is set
func (d *Device) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.ModeStatus == "" {
		d.ModeStatus = ModeAuto
	}
	return nil
}
