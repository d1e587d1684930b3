package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"smartwindow-hub/internal/command"
	"smartwindow-hub/internal/wire"
)

func TestAlarmCreatePublishesUpsert(t *testing.T) {
	repo := newTestRepo(t)
	u := seedUser(t, repo, "k@example.com")
	pub := &spyPublisher{}
	devices := NewDeviceService(repo, pub, nil)
	alarms := NewAlarmService(repo, pub)
	ctx := context.Background()

	d, _ := devices.Register(ctx, u.ID, "SW-600", "bedroom")
	a, err := alarms.Create(ctx, u.ID, d.ID, AlarmInput{
		Name:       "wake up",
		AlarmTime:  "06:45:00",
		RepeatDays: []string{"monday", "Monday", "FRIDAY"},
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(pub.published) != 1 || pub.published[0].uid != "SW-600" {
		t.Fatalf("expected one publish to the device, got %+v", pub.published)
	}
	delta, ok := pub.published[0].payload.(wire.AlarmDelta)
	if !ok || delta.Action != wire.AlarmActionUpsert {
		t.Fatalf("unexpected payload %+v", pub.published[0].payload)
	}
	body, ok := delta.Alarm.(wire.AlarmPayload)
	if !ok || body.AlarmID != a.ID.String() {
		t.Fatalf("delta does not carry the created alarm: %+v", delta.Alarm)
	}
	// Duplicate weekday collapsed during normalization.
	if len(body.RepeatDays) != 2 {
		t.Fatalf("repeat days not deduplicated: %v", body.RepeatDays)
	}
}

func TestAlarmCreateValidates(t *testing.T) {
	repo := newTestRepo(t)
	u := seedUser(t, repo, "l@example.com")
	pub := &spyPublisher{}
	devices := NewDeviceService(repo, pub, nil)
	alarms := NewAlarmService(repo, pub)
	ctx := context.Background()

	d, _ := devices.Register(ctx, u.ID, "SW-601", "bedroom")
	cases := []AlarmInput{
		{Name: "", AlarmTime: "06:45:00", Active: true},
		{Name: "bad time", AlarmTime: "6:45", Active: true},
		{Name: "bad day", AlarmTime: "06:45:00", RepeatDays: []string{"FUNDAY"}, Active: true},
	}
	for _, in := range cases {
		if _, err := alarms.Create(ctx, u.ID, d.ID, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("input %+v: expected validation error, got %v", in, err)
		}
	}
	if len(pub.published) != 0 {
		t.Fatalf("invalid input published deltas")
	}
	list, _ := alarms.ListByDevice(ctx, u.ID, d.ID)
	if len(list) != 0 {
		t.Fatalf("invalid input created alarms: %d", len(list))
	}
}

func TestAlarmUpdateRejectsForeignAlarm(t *testing.T) {
	repo := newTestRepo(t)
	owner := seedUser(t, repo, "m@example.com")
	stranger := seedUser(t, repo, "n@example.com")
	pub := &spyPublisher{}
	devices := NewDeviceService(repo, pub, nil)
	alarms := NewAlarmService(repo, pub)
	ctx := context.Background()

	d, _ := devices.Register(ctx, owner.ID, "SW-602", "bedroom")
	a, err := alarms.Create(ctx, owner.ID, d.ID, AlarmInput{Name: "wake up", AlarmTime: "07:00:00", Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = alarms.Update(ctx, stranger.ID, a.ID, AlarmInput{Name: "hijack", AlarmTime: "07:00:00", Active: false})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestAlarmDeletePublishesDelete(t *testing.T) {
	repo := newTestRepo(t)
	u := seedUser(t, repo, "o@example.com")
	pub := &spyPublisher{}
	devices := NewDeviceService(repo, pub, nil)
	alarms := NewAlarmService(repo, pub)
	ctx := context.Background()

	d, _ := devices.Register(ctx, u.ID, "SW-603", "bedroom")
	a, err := alarms.Create(ctx, u.ID, d.ID, AlarmInput{Name: "nap", AlarmTime: "14:00:00", Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := alarms.Delete(ctx, u.ID, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(pub.published) != 2 {
		t.Fatalf("expected upsert then delete, got %d publishes", len(pub.published))
	}
	delta := pub.published[1].payload.(wire.AlarmDelta)
	if delta.Action != wire.AlarmActionDelete {
		t.Fatalf("expected delete action, got %q", delta.Action)
	}
	list, _ := alarms.ListByDevice(ctx, u.ID, d.ID)
	if len(list) != 0 {
		t.Fatalf("alarm still present after delete")
	}
}

func TestAlarmDeltaFailureSurfacesToCaller(t *testing.T) {
	repo := newTestRepo(t)
	u := seedUser(t, repo, "p@example.com")
	devices := NewDeviceService(repo, &spyPublisher{}, nil)
	ctx := context.Background()
	d, _ := devices.Register(ctx, u.ID, "SW-604", "bedroom")

	pubErr := fmt.Errorf("%w: broker down", command.ErrPublish)
	broken := NewAlarmService(repo, &spyPublisher{err: pubErr})
	if _, err := broken.Create(ctx, u.ID, d.ID, AlarmInput{Name: "wake up", AlarmTime: "07:15:00", Active: true}); !errors.Is(err, command.ErrPublish) {
		t.Fatalf("expected publish failure to surface, got %v", err)
	}
	// The write commits before the publish; the row survives.
	list, err := repo.ListAlarmsByDevice(ctx, d.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("alarm not persisted: %v %d", err, len(list))
	}

	if err := broken.Delete(ctx, u.ID, list[0].ID); !errors.Is(err, command.ErrPublish) {
		t.Fatalf("expected delete publish failure to surface, got %v", err)
	}
	if remaining, _ := repo.ListAlarmsByDevice(ctx, d.ID); len(remaining) != 0 {
		t.Fatalf("delete should commit before the publish")
	}
}

func TestRegisterTokenMovesBetweenUsers(t *testing.T) {
	repo := newTestRepo(t)
	first := seedUser(t, repo, "q@example.com")
	second := seedUser(t, repo, "r@example.com")
	svc := NewMobileService(repo)
	ctx := context.Background()

	if err := svc.RegisterToken(ctx, first.ID, "fcm-token-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.RegisterToken(ctx, second.ID, "fcm-token-1"); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	m, err := repo.GetMobileByToken(ctx, "fcm-token-1")
	if err != nil || m == nil {
		t.Fatalf("token lookup: %v", err)
	}
	if m.UserID != second.ID {
		t.Fatalf("token did not move to the new user")
	}
	firstTokens, _ := repo.ListMobileTokens(ctx, first.ID)
	if len(firstTokens) != 0 {
		t.Fatalf("old user still holds the token")
	}

	if err := svc.UnregisterToken(ctx, "fcm-token-1"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if m, _ := repo.GetMobileByToken(ctx, "fcm-token-1"); m != nil {
		t.Fatalf("token survived unregister")
	}
}
