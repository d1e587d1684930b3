// Package wire holds the payload shapes shared between the backend and
// the window firmware. Command bodies are JSON; status bodies are the
// legacy scalar forms devices actually send. Everything quirky about the
// protocol is isolated here.
package wire

import (
	"encoding/json"

	"smartwindow-hub/internal/model"
)

// Command keys a device understands on /devices/{uid}/command/{key}.
const (
	CmdPower   = "power"
	CmdOpen    = "open"
	CmdOpacity = "opacity"
	CmdMode    = "mode"
	CmdWidgets = "widgets"
	CmdMedia   = "media"
	CmdMusic   = "music"
	CmdAlarm   = "alarm"
)

// CommandPayload is implemented by one variant per command key, so a
// caller cannot publish a body on the wrong topic.
type CommandPayload interface {
	CommandKey() string
}

type PowerPayload struct {
	Status bool `json:"status"`
}

func (PowerPayload) CommandKey() string { return CmdPower }

type OpenPayload struct {
	Status bool `json:"status"`
}

func (OpenPayload) CommandKey() string { return CmdOpen }

type OpacityPayload struct {
	Status bool `json:"status"`
}

func (OpacityPayload) CommandKey() string { return CmdOpacity }

type ModePayload struct {
	Status model.DeviceMode `json:"status"`
}

func (ModePayload) CommandKey() string { return CmdMode }

// WidgetsPayload is the one genuinely free-form body: per-widget toggle
// flags chosen by the mobile app.
type WidgetsPayload map[string]any

func (WidgetsPayload) CommandKey() string { return CmdWidgets }

type MediaPayload struct {
	MediaID  string `json:"mediaId"`
	MediaURL string `json:"mediaUrl"`
}

func (MediaPayload) CommandKey() string { return CmdMedia }

type MusicPayload struct {
	MusicID  string `json:"musicId"`
	MusicURL string `json:"musicUrl"`
}

func (MusicPayload) CommandKey() string { return CmdMusic }

const (
	AlarmActionUpsert = "UPSERT"
	AlarmActionDelete = "DELETE"
)

// AlarmPayload is one alarm as the device sees it.
type AlarmPayload struct {
	AlarmID    string   `json:"alarmId"`
	DeviceID   string   `json:"deviceId"`
	AlarmName  string   `json:"alarmName"`
	AlarmTime  string   `json:"alarmTime"`
	RepeatDays []string `json:"repeatDays"`
	IsActive   bool     `json:"isActive"`
	CreatedAt  string   `json:"createdAt"`
}

func NewAlarmPayload(a model.Alarm) AlarmPayload {
	var days []string
	if len(a.RepeatDays) > 0 {
		// Stored as a JSON array; a decode failure leaves the set empty
		// rather than failing the publish.
		_ = json.Unmarshal(a.RepeatDays, &days)
	}
	return AlarmPayload{
		AlarmID:    a.ID.String(),
		DeviceID:   a.DeviceID.String(),
		AlarmName:  a.Name,
		AlarmTime:  a.AlarmTime,
		RepeatDays: days,
		IsActive:   a.Active,
		CreatedAt:  a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// AlarmDelta is the incremental body published after one alarm changes.
// UPSERT carries the full alarm, DELETE only the alarm id. Construct via
// NewAlarmUpsert / NewAlarmDelete; Alarm is not meant to be set by hand.
type AlarmDelta struct {
	Action string `json:"action"`
	Alarm  any    `json:"alarm"`
}

type alarmRef struct {
	AlarmID string `json:"alarmId"`
}

func (AlarmDelta) CommandKey() string { return CmdAlarm }

func NewAlarmUpsert(a model.Alarm) AlarmDelta {
	return AlarmDelta{Action: AlarmActionUpsert, Alarm: NewAlarmPayload(a)}
}

func NewAlarmDelete(alarmID string) AlarmDelta {
	return AlarmDelta{Action: AlarmActionDelete, Alarm: alarmRef{AlarmID: alarmID}}
}

// AlarmSnapshot is the full-state body a device receives when it asks
// for its alarm list: the bare array, superseding any pending deltas.
type AlarmSnapshot []AlarmPayload

func (AlarmSnapshot) CommandKey() string { return CmdAlarm }

func NewAlarmSnapshot(alarms []model.Alarm) AlarmSnapshot {
	out := make(AlarmSnapshot, 0, len(alarms))
	for _, a := range alarms {
		out = append(out, NewAlarmPayload(a))
	}
	return out
}
