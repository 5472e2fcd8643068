package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skybridge/skybridge-core/internal/drc"
	"github.com/skybridge/skybridge-core/internal/heartbeat"
)

// fakeController records actions and returns scripted errors.
type fakeController struct {
	actions []string
	err     error
	status  drc.ControllerStatus
}

func (f *fakeController) RequestAuth(context.Context) error { f.actions = append(f.actions, "request_auth"); return f.err }
func (f *fakeController) ConfirmAuth() error                { f.actions = append(f.actions, "confirm"); return f.err }
func (f *fakeController) Cancel() error                     { f.actions = append(f.actions, "cancel"); return f.err }
func (f *fakeController) EnterDRC(context.Context) error    { f.actions = append(f.actions, "enter"); return f.err }
func (f *fakeController) ExitDRC(context.Context) error     { f.actions = append(f.actions, "exit"); return f.err }
func (f *fakeController) Reset()                            { f.actions = append(f.actions, "reset") }
func (f *fakeController) Status() drc.ControllerStatus      { return f.status }

type fakeDevices struct {
	current string
}

func (f *fakeDevices) CurrentSN() string { return f.current }
func (f *fakeDevices) SetCurrentDevice(_ context.Context, sn string) error {
	f.current = sn
	return nil
}

type fakeState struct {
	data map[string]json.RawMessage
	sets []string
}

func (f *fakeState) GetState(context.Context, string, string) (map[string]json.RawMessage, error) {
	if f.data == nil {
		return map[string]json.RawMessage{}, nil
	}
	return f.data, nil
}

func (f *fakeState) SetState(_ context.Context, _, _, field string, _ interface{}) error {
	f.sets = append(f.sets, field)
	return nil
}

type fakeHeartbeatStats struct{ running bool }

func (f *fakeHeartbeatStats) Stats() heartbeat.Stats { return heartbeat.Stats{Sent: 10, Received: 9} }
func (f *fakeHeartbeatStats) IsRunning() bool        { return f.running }

func testServer(ctrl *fakeController) (*Server, *fakeDevices, *fakeState) {
	devices := &fakeDevices{current: "SN123"}
	state := &fakeState{}
	s := New(Config{
		ListenAddr: "127.0.0.1:0",
		Controller: ctrl,
		Devices:    devices,
		State:      state,
		Heartbeat:  &fakeHeartbeatStats{running: true},
	})
	return s, devices, state
}

func TestHealth(t *testing.T) {
	s, _, _ := testServer(&fakeController{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestWorkflowStatus(t *testing.T) {
	ctrl := &fakeController{status: drc.ControllerStatus{Step: drc.StepAuthPending, Progress: 40}}
	s, _, _ := testServer(ctrl)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workflow", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status drc.ControllerStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if status.Step != drc.StepAuthPending || status.Progress != 40 {
		t.Errorf("status = %+v, want auth_pending/40", status)
	}
}

func TestWorkflowActionsDispatch(t *testing.T) {
	for _, action := range []string{"request_auth", "confirm", "cancel", "enter", "exit", "reset"} {
		ctrl := &fakeController{}
		s, _, _ := testServer(ctrl)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/v1/workflow/actions/"+action, nil))

		if rec.Code != http.StatusOK {
			t.Errorf("action %s: status = %d, want 200", action, rec.Code)
		}
		if len(ctrl.actions) != 1 || ctrl.actions[0] != action {
			t.Errorf("action %s: controller saw %v", action, ctrl.actions)
		}
	}
}

func TestWorkflowActionUnknown(t *testing.T) {
	s, _, _ := testServer(&fakeController{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/workflow/actions/self_destruct", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWorkflowActionRefusedTransitionIs409(t *testing.T) {
	ctrl := &fakeController{err: drc.ErrInvalidTransition}
	s, _, _ := testServer(ctrl)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/workflow/actions/enter", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestWorkflowActionPreconditionIs400(t *testing.T) {
	ctrl := &fakeController{err: drc.ErrPrecondition}
	s, _, _ := testServer(ctrl)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/workflow/actions/enter", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHeartbeatStats(t *testing.T) {
	s, _, _ := testServer(&fakeController{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/heartbeat", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"running":true`) {
		t.Errorf("body = %s, want running:true", rec.Body.String())
	}
}

func TestDeviceSwitch(t *testing.T) {
	s, devices, _ := testServer(&fakeController{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/current", nil))
	if !strings.Contains(rec.Body.String(), "SN123") {
		t.Errorf("current device body = %s, want SN123", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/devices/current",
		strings.NewReader(`{"sn":"SN456"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if devices.current != "SN456" {
		t.Errorf("current = %q after switch, want SN456", devices.current)
	}
}

func TestDeviceSwitchEmptyBody(t *testing.T) {
	s, _, _ := testServer(&fakeController{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/devices/current",
		strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCardStateRoundTrip(t *testing.T) {
	s, _, state := testServer(&fakeController{})
	state.data = map[string]json.RawMessage{"x": json.RawMessage("5")}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/devices/SN123/cards/drc-card/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"x":5`) {
		t.Errorf("body = %s, want x:5", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPut, "/api/v1/devices/SN123/cards/drc-card/state",
			strings.NewReader(`{"field":"y","value":7}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(state.sets) != 1 || state.sets[0] != "y" {
		t.Errorf("state writes = %v, want [y]", state.sets)
	}
}

func TestSessionsRequiresSN(t *testing.T) {
	s, _, _ := testServer(&fakeController{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))

	// No lister configured in testServer: 404 before the sn check.
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without a session lister", rec.Code)
	}
}
