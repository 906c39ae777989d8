package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/service"
	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

// MissionAPI is the mission service as seen by operators.
type MissionAPI interface {
	CreateMission(ctx context.Context, req *service.CreateMissionRequest) (*model.MissionDuty, error)
	SendMission(ctx context.Context, vin, code string) (*model.MissionDuty, error)
	CancelMission(ctx context.Context, code, reason string) (*model.MissionDuty, error)
	GetMission(ctx context.Context, code string) (*model.MissionDuty, error)
	ListMissions(ctx context.Context, filter model.MissionFilter) ([]*model.MissionDuty, error)
	Stats(ctx context.Context) (*model.MissionStats, error)
	ListEvents(ctx context.Context, code string) ([]*model.MissionEvent, error)
	SendCommand(ctx context.Context, vin string, command protocol.CommandName, params any) error
}

// CancelRequest is the body of a cancel call.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CommandRequest is the body of an ad-hoc command call.
type CommandRequest struct {
	Command protocol.CommandName `json:"command"`
	Params  json.RawMessage      `json:"params,omitempty"`
}

type handler struct {
	api MissionAPI
}

func (h *handler) createMission(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	duty, err := h.api.CreateMission(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, duty)
}

func (h *handler) listMissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, model.MissionFilter{VIN: q.Get("vin"), Status: model.MissionStatus(q.Get("status"))})
}

func (h *handler) listVehicleMissions(w http.ResponseWriter, r *http.Request) {
	filter := model.MissionFilter{
		VIN:    mux.Vars(r)["vin"],
		Status: model.MissionStatus(r.URL.Query().Get("status")),
	}
	h.list(w, r, filter)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request, filter model.MissionFilter) {
	missions, err := h.api.ListMissions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if missions == nil {
		missions = []*model.MissionDuty{}
	}
	writeJSON(w, http.StatusOK, missions)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.api.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) getMission(w http.ResponseWriter, r *http.Request) {
	duty, err := h.api.GetMission(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, duty)
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.api.ListEvents(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handler) cancelMission(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	duty, err := h.api.CancelMission(r.Context(), mux.Vars(r)["code"], req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, duty)
}

func (h *handler) sendMission(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	duty, err := h.api.SendMission(r.Context(), vars["vin"], vars["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, duty)
}

func (h *handler) sendCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var params any
	if len(req.Params) > 0 {
		params = req.Params
	}
	if err := h.api.SendCommand(r.Context(), mux.Vars(r)["vin"], req.Command, params); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrMissionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrMissionExists),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrVINMismatch):
		code = http.StatusConflict
	default:
		log.Error(err, "Request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return false
	}
	return true
}
