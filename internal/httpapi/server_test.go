package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"smartwindow-hub/internal/command"
	"smartwindow-hub/internal/model"
	"smartwindow-hub/internal/service"
	"smartwindow-hub/internal/store"
	"smartwindow-hub/internal/wire"
)

var testSecret = []byte("test-secret")

type spyPublisher struct {
	published []struct {
		uid     string
		payload wire.CommandPayload
	}
	err error
}

func (p *spyPublisher) Publish(uid string, payload wire.CommandPayload) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, struct {
		uid     string
		payload wire.CommandPayload
	}{uid, payload})
	return nil
}

type testEnv struct {
	repo   *store.Repository
	pub    *spyPublisher
	server *httptest.Server
	user   *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:httpapi_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := store.New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	u := &model.User{Email: "owner@example.com", Nickname: "owner"}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	pub := &spyPublisher{}
	srv := NewServer(
		service.NewDeviceService(repo, pub, nil),
		service.NewAlarmService(repo, pub),
		service.NewMobileService(repo),
	)
	ts := httptest.NewServer(srv.Router(testSecret))
	t.Cleanup(ts.Close)
	return &testEnv{repo: repo, pub: pub, server: ts, user: u}
}

func mintToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	if resp := env.do(t, http.MethodGet, "/api/v1/devices", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/v1/devices", "not-a-jwt", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: got %d", resp.StatusCode)
	}

	// Right shape, wrong key.
	claims := jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	if resp := env.do(t, http.MethodGet, "/api/v1/devices", forged, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token: got %d", resp.StatusCode)
	}
}

func TestDeviceRegistrationAndListing(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, env.user.ID)

	resp := env.do(t, http.MethodPost, "/api/v1/devices", token,
		map[string]any{"device_unique_id": "SW-700", "name": "kitchen"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: got %d", resp.StatusCode)
	}
	created := decodeBody[model.Device](t, resp)
	if created.DeviceUniqueID != "SW-700" || created.ModeStatus != model.ModeAuto {
		t.Fatalf("unexpected device: %+v", created)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/devices", token,
		map[string]any{"device_unique_id": "SW-700", "name": "kitchen again"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/devices", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: got %d", resp.StatusCode)
	}
	list := decodeBody[[]model.Device](t, resp)
	if len(list) != 1 {
		t.Fatalf("expected 1 device, got %d", len(list))
	}
}

func TestPowerControlEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, env.user.ID)

	resp := env.do(t, http.MethodPost, "/api/v1/devices", token,
		map[string]any{"device_unique_id": "SW-701", "name": "hall"})
	d := decodeBody[model.Device](t, resp)

	resp = env.do(t, http.MethodPost, "/api/v1/devices/"+d.ID.String()+"/power", token,
		map[string]any{"status": true})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("power: got %d", resp.StatusCode)
	}
	if len(env.pub.published) != 1 || env.pub.published[0].uid != "SW-701" {
		t.Fatalf("command not published: %+v", env.pub.published)
	}
	got, _ := env.repo.GetDeviceByUniqueID(context.Background(), "SW-701")
	if !got.PowerStatus {
		t.Fatalf("power not persisted")
	}

	// Another user cannot control the device.
	other := &model.User{Email: "other@example.com"}
	if err := env.repo.CreateUser(context.Background(), other); err != nil {
		t.Fatalf("create user: %v", err)
	}
	resp = env.do(t, http.MethodPost, "/api/v1/devices/"+d.ID.String()+"/power", mintToken(t, other.ID),
		map[string]any{"status": false})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign control: got %d", resp.StatusCode)
	}
}

func TestModeControlValidation(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, env.user.ID)

	resp := env.do(t, http.MethodPost, "/api/v1/devices", token,
		map[string]any{"device_unique_id": "SW-702", "name": "loft"})
	d := decodeBody[model.Device](t, resp)

	resp = env.do(t, http.MethodPost, "/api/v1/devices/"+d.ID.String()+"/mode", token,
		map[string]any{"status": "PARTY_MODE"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid mode: got %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodPost, "/api/v1/devices/"+d.ID.String()+"/mode", token,
		map[string]any{"status": "GLASS_MODE"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("valid mode: got %d", resp.StatusCode)
	}
}

func TestPublishFailureMapsToBadGateway(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, env.user.ID)

	resp := env.do(t, http.MethodPost, "/api/v1/devices", token,
		map[string]any{"device_unique_id": "SW-703", "name": "attic"})
	d := decodeBody[model.Device](t, resp)

	env.pub.err = errInjected
	resp = env.do(t, http.MethodPost, "/api/v1/devices/"+d.ID.String()+"/power", token,
		map[string]any{"status": true})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("publish failure: got %d", resp.StatusCode)
	}

	// Alarm deltas surface transport failures the same way.
	resp = env.do(t, http.MethodPost, "/api/v1/devices/"+d.ID.String()+"/alarms", token,
		map[string]any{"name": "wake up", "alarm_time": "07:00:00", "active": true})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("alarm publish failure: got %d", resp.StatusCode)
	}
}

func TestAlarmEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, env.user.ID)

	resp := env.do(t, http.MethodPost, "/api/v1/devices", token,
		map[string]any{"device_unique_id": "SW-704", "name": "bedroom"})
	d := decodeBody[model.Device](t, resp)

	resp = env.do(t, http.MethodPost, "/api/v1/devices/"+d.ID.String()+"/alarms", token,
		map[string]any{"name": "wake up", "alarm_time": "06:30:00", "repeat_days": []string{"MONDAY"}, "active": true})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create alarm: got %d", resp.StatusCode)
	}
	a := decodeBody[model.Alarm](t, resp)

	resp = env.do(t, http.MethodGet, "/api/v1/devices/"+d.ID.String()+"/alarms", token, nil)
	if got := decodeBody[[]model.Alarm](t, resp); len(got) != 1 {
		t.Fatalf("expected 1 alarm, got %d", len(got))
	}

	resp = env.do(t, http.MethodPut, "/api/v1/alarms/"+a.ID.String(), token,
		map[string]any{"name": "wake up late", "alarm_time": "08:00:00", "repeat_days": []string{"SUNDAY"}, "active": false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update alarm: got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/alarms/"+a.ID.String(), token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete alarm: got %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodGet, "/api/v1/alarms", token, nil)
	if got := decodeBody[[]model.Alarm](t, resp); len(got) != 0 {
		t.Fatalf("alarm survived delete: %+v", got)
	}
}

func TestSensorEndpointNoReport(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, env.user.ID)

	resp := env.do(t, http.MethodPost, "/api/v1/devices", token,
		map[string]any{"device_unique_id": "SW-705", "name": "porch"})
	d := decodeBody[model.Device](t, resp)

	resp = env.do(t, http.MethodGet, "/api/v1/devices/"+d.ID.String()+"/sensor", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("sensor without report: got %d", resp.StatusCode)
	}
}

func TestMobileTokenEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := mintToken(t, env.user.ID)

	resp := env.do(t, http.MethodPost, "/api/v1/mobiles", token, map[string]any{"token": "fcm-abc"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("register token: got %d", resp.StatusCode)
	}
	tokens, err := env.repo.ListMobileTokens(context.Background(), env.user.ID)
	if err != nil || len(tokens) != 1 {
		t.Fatalf("token not stored: %v %v", tokens, err)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/mobiles/fcm-abc", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unregister token: got %d", resp.StatusCode)
	}
}

// Matches what the real publisher returns when the broker rejects a
// message.
var errInjected = fmt.Errorf("%w: injected transport failure", command.ErrPublish)
