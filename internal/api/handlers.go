package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skybridge/skybridge-core/internal/drc"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Controller.Status())
}

// handleWorkflowAction dispatches one named workflow action. Refused
// transitions map to 409: the UI raced the workflow, not a server bug.
func (s *Server) handleWorkflowAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	ctx := r.Context()

	var err error
	switch action {
	case "request_auth":
		err = s.cfg.Controller.RequestAuth(ctx)
	case "confirm":
		err = s.cfg.Controller.ConfirmAuth()
	case "cancel":
		err = s.cfg.Controller.Cancel()
	case "enter":
		err = s.cfg.Controller.EnterDRC(ctx)
	case "exit":
		err = s.cfg.Controller.ExitDRC(ctx)
	case "reset":
		s.cfg.Controller.Reset()
	default:
		writeError(w, http.StatusNotFound, "unknown action", action)
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, drc.ErrInvalidTransition),
			errors.Is(err, drc.ErrInvalidState),
			errors.Is(err, drc.ErrNoPendingAuth):
			status = http.StatusConflict
		case errors.Is(err, drc.ErrPrecondition),
			errors.Is(err, drc.ErrConfigInvalid):
			status = http.StatusBadRequest
		}
		writeError(w, status, "workflow action failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.cfg.Controller.Status())
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Heartbeat == nil {
		writeError(w, http.StatusNotFound, "heartbeat not configured", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running": s.cfg.Heartbeat.IsRunning(),
		"stats":   s.cfg.Heartbeat.Stats(),
	})
}

func (s *Server) handleGetCurrentDevice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"sn": s.cfg.Devices.CurrentSN()})
}

func (s *Server) handleSetCurrentDevice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SN string `json:"sn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SN == "" {
		writeError(w, http.StatusBadRequest, "invalid request body", "expected {\"sn\": \"...\"}")
		return
	}

	if err := s.cfg.Devices.SetCurrentDevice(r.Context(), body.SN); err != nil {
		writeError(w, http.StatusInternalServerError, "switching device failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sn": body.SN})
}

func (s *Server) handleGetCardState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	fields, err := s.cfg.State.GetState(r.Context(), vars["sn"], vars["cardId"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading state failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handleSetCardField(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		Field string          `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Field == "" {
		writeError(w, http.StatusBadRequest, "invalid request body",
			"expected {\"field\": \"...\", \"value\": ...}")
		return
	}

	var value interface{}
	if err := json.Unmarshal(body.Value, &value); err != nil {
		writeError(w, http.StatusBadRequest, "invalid field value", err.Error())
		return
	}

	if err := s.cfg.State.SetState(r.Context(), vars["sn"], vars["cardId"], body.Field, value); err != nil {
		writeError(w, http.StatusInternalServerError, "writing state failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Sessions == nil {
		writeError(w, http.StatusNotFound, "session history not configured", "")
		return
	}

	sn := r.URL.Query().Get("sn")
	if sn == "" {
		writeError(w, http.StatusBadRequest, "missing sn query parameter", "")
		return
	}

	records, err := s.cfg.Sessions.RecentSessions(r.Context(), sn, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading sessions failed", err.Error())
		return
	}
	if records == nil {
		records = []drc.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
