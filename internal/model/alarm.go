package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var weekdayNames = map[string]struct{}{
	"MONDAY": {}, "TUESDAY": {}, "WEDNESDAY": {}, "THURSDAY": {},
	"FRIDAY": {}, "SATURDAY": {}, "SUNDAY": {},
}

var ErrInvalidAlarmTime = errors.New("invalid alarm time, want HH:MM:SS")

// NormalizeRepeatDays upper-cases, validates and deduplicates a weekday
// set. Order is not significant; the stored form keeps first occurrence
// order for stable payloads.
func NormalizeRepeatDays(days []string) ([]string, error) {
	seen := make(map[string]struct{}, len(days))
	out := make([]string, 0, len(days))
	for _, d := range days {
		name := strings.ToUpper(strings.TrimSpace(d))
		if _, ok := weekdayNames[name]; !ok {
			return nil, fmt.Errorf("invalid repeat day %q", d)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func ValidateAlarmTime(t string) error {
	if _, err := time.Parse("15:04:05", t); err != nil {
		return ErrInvalidAlarmTime
	}
	return nil
}

// Alarm belongs to exactly one device. AlarmTime is stored as the wire
// form "HH:MM:SS"; RepeatDays is a JSON array of weekday names.
type Alarm struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID   uuid.UUID      `gorm:"type:uuid;index;not null" json:"device_id"`
	Name       string         `gorm:"not null" json:"name"`
	AlarmTime  string         `gorm:"not null" json:"alarm_time"`
	RepeatDays datatypes.JSON `gorm:"type:jsonb" json:"repeat_days"`
	Active     bool           `gorm:"not null" json:"active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (a *Alarm) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
