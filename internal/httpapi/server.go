// Package httpapi exposes the mobile-facing REST surface: device
// registry and control, alarm management, push-token registration and
// the cached sensor snapshot.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"smartwindow-hub/internal/command"
	"smartwindow-hub/internal/service"
)

const maxBodyBytes = 64 << 10

type Server struct {
	devices *service.DeviceService
	alarms  *service.AlarmService
	mobiles *service.MobileService
}

func NewServer(devices *service.DeviceService, alarms *service.AlarmService, mobiles *service.MobileService) *Server {
	return &Server{devices: devices, alarms: alarms, mobiles: mobiles}
}

// Router builds the full route tree. Everything under /api/v1 requires
// a valid bearer token.
func (s *Server) Router(jwtSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret))

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", s.handleRegisterDevice)
			r.Get("/", s.handleListDevices)
			r.Route("/{deviceID}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleRenameDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Post("/power", s.handlePower)
				r.Post("/open", s.handleOpen)
				r.Post("/opacity", s.handleOpacity)
				r.Post("/mode", s.handleMode)
				r.Post("/widgets", s.handleWidgets)
				r.Post("/media", s.handleMedia)
				r.Post("/music", s.handleMusic)
				r.Get("/sensor", s.handleSensor)
				r.Get("/alarms", s.handleListDeviceAlarms)
				r.Post("/alarms", s.handleCreateAlarm)
			})
		})

		r.Route("/alarms", func(r chi.Router) {
			r.Get("/", s.handleListAlarms)
			r.Put("/{alarmID}", s.handleUpdateAlarm)
			r.Delete("/{alarmID}", s.handleDeleteAlarm)
		})

		r.Route("/mobiles", func(r chi.Router) {
			r.Post("/", s.handleRegisterToken)
			r.Delete("/{token}", s.handleUnregisterToken)
		})
	})
	return r
}

type jsonErr struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonErr{Error: msg, Code: status})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// respondErr maps service errors onto HTTP statuses. A failed command
// publish is the broker's fault, not the client's.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDeviceExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, command.ErrPublish), errors.Is(err, command.ErrEncodePayload):
		writeError(w, http.StatusBadGateway, "command delivery failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// --- devices ---

type registerDeviceReq struct {
	DeviceUniqueID string `json:"device_unique_id"`
	Name           string `json:"name"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	d, err := s.devices.Register(r.Context(), UserID(r), req.DeviceUniqueID, req.Name)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := s.devices.List(r.Context(), UserID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	d, err := s.devices.Get(r.Context(), UserID(r), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type renameDeviceReq struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	var req renameDeviceReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	d, err := s.devices.Rename(r.Context(), UserID(r), id, req.Name)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	if err := s.devices.Delete(r.Context(), UserID(r), id); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- control ---

type boolControlReq struct {
	Status bool `json:"status"`
}

func (s *Server) handleBoolControl(w http.ResponseWriter, r *http.Request, apply func(uuid.UUID, bool) error) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	var req boolControlReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := apply(id, req.Status); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	s.handleBoolControl(w, r, func(id uuid.UUID, v bool) error {
		return s.devices.SetPower(r.Context(), UserID(r), id, v)
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.handleBoolControl(w, r, func(id uuid.UUID, v bool) error {
		return s.devices.SetOpen(r.Context(), UserID(r), id, v)
	})
}

func (s *Server) handleOpacity(w http.ResponseWriter, r *http.Request) {
	s.handleBoolControl(w, r, func(id uuid.UUID, v bool) error {
		return s.devices.SetOpacity(r.Context(), UserID(r), id, v)
	})
}

type modeControlReq struct {
	Status string `json:"status"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	var req modeControlReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.devices.SetMode(r.Context(), UserID(r), id, req.Status); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleWidgets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	var widgets map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&widgets); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.devices.SetWidgets(r.Context(), UserID(r), id, widgets); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type mediaControlReq struct {
	MediaID uuid.UUID `json:"media_id"`
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	var req mediaControlReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.devices.SetMedia(r.Context(), UserID(r), id, req.MediaID); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type musicControlReq struct {
	MusicID uuid.UUID `json:"music_id"`
}

func (s *Server) handleMusic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	var req musicControlReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.devices.SetMusic(r.Context(), UserID(r), id, req.MusicID); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleSensor serves the last cached sensor report verbatim. 204 means
// the device has not reported yet.
func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	raw, err := s.devices.Sensor(r.Context(), UserID(r), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	if raw == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// --- alarms ---

type alarmReq struct {
	Name       string   `json:"name"`
	AlarmTime  string   `json:"alarm_time"`
	RepeatDays []string `json:"repeat_days"`
	Active     bool     `json:"active"`
}

func (a alarmReq) input() service.AlarmInput {
	return service.AlarmInput{Name: a.Name, AlarmTime: a.AlarmTime, RepeatDays: a.RepeatDays, Active: a.Active}
}

func (s *Server) handleCreateAlarm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	var req alarmReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	a, err := s.alarms.Create(r.Context(), UserID(r), id, req.input())
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListDeviceAlarms(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "deviceID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	list, err := s.alarms.ListByDevice(r.Context(), UserID(r), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListAlarms(w http.ResponseWriter, r *http.Request) {
	list, err := s.alarms.ListByUser(r.Context(), UserID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateAlarm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "alarmID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid alarm id")
		return
	}
	var req alarmReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	a, err := s.alarms.Update(r.Context(), UserID(r), id, req.input())
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAlarm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "alarmID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid alarm id")
		return
	}
	if err := s.alarms.Delete(r.Context(), UserID(r), id); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mobiles ---

type registerTokenReq struct {
	Token string `json:"token"`
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	var req registerTokenReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.mobiles.RegisterToken(r.Context(), UserID(r), req.Token); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnregisterToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := s.mobiles.UnregisterToken(r.Context(), token); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
