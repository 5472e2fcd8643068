package drc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skybridge/skybridge-core/internal/correlator"
	"github.com/skybridge/skybridge-core/internal/heartbeat"
)

type fakeHeartbeat struct {
	started int
	stopped int
	stats   heartbeat.Stats
}

func (f *fakeHeartbeat) Start(context.Context) error { f.started++; return nil }
func (f *fakeHeartbeat) Stop()                       { f.stopped++ }
func (f *fakeHeartbeat) Stats() heartbeat.Stats      { return f.stats }

// fakeTelemetry records every measurement the controller emits.
type fakeTelemetry struct {
	transitions []string
	outcomes    []string
	heartbeats  []heartbeat.Stats
}

func (f *fakeTelemetry) WriteWorkflowTransition(_ string, from string, to string) {
	f.transitions = append(f.transitions, from+"->"+to)
}

func (f *fakeTelemetry) WriteSessionDuration(_ string, _ time.Duration, outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeTelemetry) WriteHeartbeatStats(_ string, sent, received, failed uint64) {
	f.heartbeats = append(f.heartbeats, heartbeat.Stats{Sent: sent, Received: received, Failed: failed})
}

// newTestController wires a controller with met prerequisites and the
// given scripted transport.
func newTestController(caller *fakeCaller) (*Controller, *Session, *Workflow, *fakeHeartbeat) {
	session := NewSession()
	session.UpdateMQTTStatus(true)
	session.SetBrokerConfig(BrokerConfig{
		Address:  "relay.example.com:1883",
		ClientID: "drc-client",
		Username: "pilot",
		Password: "secret",
	})

	workflow := NewWorkflow(nil)
	auth := NewAuthManager(caller, time.Second)
	hb := &fakeHeartbeat{}

	ctrl := NewController(ControllerConfig{
		GatewaySN:      "SN123",
		UserID:         "u1",
		UserCallsign:   "Pilot",
		Session:        session,
		Workflow:       workflow,
		Auth:           auth,
		Caller:         caller,
		ServiceTimeout: time.Second,
		Heartbeat:      hb,
	})
	return ctrl, session, workflow, hb
}

func TestFullSessionLifecycle(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "cloud_control_auth", reply: correlator.Reply{TID: "tid-auth"}},
		{method: "drc_mode_enter", reply: okReply(0)},
		{method: "drc_mode_exit", reply: okReply(0)},
		{method: "cloud_control_auth_release", reply: okReply(0)},
	}}
	ctrl, session, workflow, hb := newTestController(caller)
	ctx := context.Background()

	if err := ctrl.RequestAuth(ctx); err != nil {
		t.Fatalf("RequestAuth() error = %v", err)
	}
	if workflow.Current() != StepAuthPending {
		t.Fatalf("step = %s after grant, want auth_pending", workflow.Current())
	}

	if err := ctrl.ConfirmAuth(); err != nil {
		t.Fatalf("ConfirmAuth() error = %v", err)
	}

	if err := ctrl.EnterDRC(ctx); err != nil {
		t.Fatalf("EnterDRC() error = %v", err)
	}
	if workflow.Current() != StepDRCActive {
		t.Fatalf("step = %s after enter, want drc_active", workflow.Current())
	}
	if session.Status() != StatusActive {
		t.Fatalf("session status = %s, want active", session.Status())
	}
	if hb.started != 1 {
		t.Errorf("heartbeat started %d times, want 1", hb.started)
	}

	if err := ctrl.ExitDRC(ctx); err != nil {
		t.Fatalf("ExitDRC() error = %v", err)
	}
	if workflow.Current() != StepIdle {
		t.Errorf("step = %s after exit, want idle", workflow.Current())
	}
	if session.Status() != StatusIdle {
		t.Errorf("session status = %s after exit, want idle", session.Status())
	}
	if hb.stopped != 1 {
		t.Errorf("heartbeat stopped %d times, want 1", hb.stopped)
	}

	want := []string{"cloud_control_auth", "drc_mode_enter", "drc_mode_exit", "cloud_control_auth_release"}
	got := caller.methods()
	if len(got) != len(want) {
		t.Fatalf("service calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("service call %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRequestAuthDeniedRoutesToError(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "cloud_control_auth", reply: okReply(-1)},
	}}
	ctrl, session, workflow, _ := newTestController(caller)

	err := ctrl.RequestAuth(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("RequestAuth() error = %v, want ErrAuthFailed", err)
	}
	if workflow.Current() != StepError {
		t.Errorf("step = %s after denial, want error", workflow.Current())
	}
	if session.LastError() == "" {
		t.Error("session LastError empty after denial")
	}
}

func TestEnterDRCRefusedByGateway(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "cloud_control_auth", reply: correlator.Reply{TID: "tid-auth"}},
		{method: "drc_mode_enter", reply: okReply(314)},
	}}
	ctrl, session, workflow, hb := newTestController(caller)
	ctx := context.Background()

	if err := ctrl.RequestAuth(ctx); err != nil {
		t.Fatalf("RequestAuth() error = %v", err)
	}
	if err := ctrl.ConfirmAuth(); err != nil {
		t.Fatalf("ConfirmAuth() error = %v", err)
	}

	err := ctrl.EnterDRC(ctx)
	if err == nil {
		t.Fatal("EnterDRC() error = nil for result 314")
	}
	if workflow.Current() != StepError {
		t.Errorf("step = %s, want error", workflow.Current())
	}
	if session.Status() != StatusError {
		t.Errorf("session status = %s, want error", session.Status())
	}
	if hb.started != 0 {
		t.Error("heartbeat started despite refused entry")
	}
}

func TestEnterDRCRequiresConfirmedStep(t *testing.T) {
	caller := &fakeCaller{}
	ctrl, _, _, _ := newTestController(caller)

	err := ctrl.EnterDRC(context.Background())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("EnterDRC() from idle error = %v, want ErrInvalidTransition", err)
	}
}

func TestEnterDRCUnmetPrerequisitePublishesNothing(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "drc_mode_enter", reply: okReply(0)},
	}}
	ctrl, session, workflow, hb := newTestController(caller)

	// Auth granted, then the broker link drops before entry.
	for _, step := range []Step{StepAuthRequest, StepAuthPending, StepAuthConfirmed} {
		if err := workflow.TransitionTo(step, nil); err != nil {
			t.Fatalf("TransitionTo(%s) error = %v", step, err)
		}
	}
	session.UpdateCloudControlStatus(true)
	session.UpdateMQTTStatus(false)

	err := ctrl.EnterDRC(context.Background())
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("EnterDRC() error = %v, want ErrPrecondition", err)
	}
	if session.Status() != StatusIdle {
		t.Errorf("session status = %s, want idle", session.Status())
	}
	if got := caller.methods(); len(got) != 0 {
		t.Errorf("service calls = %v, want none for refused entry", got)
	}
	if hb.started != 0 {
		t.Error("heartbeat started despite refused entry")
	}
}

func TestExitDRCWithoutActiveSessionPublishesNothing(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "drc_mode_exit", reply: okReply(0)},
	}}
	ctrl, session, workflow, _ := newTestController(caller)

	// Workflow claims drc_active but no session was ever established.
	for _, step := range []Step{StepAuthRequest, StepAuthPending, StepAuthConfirmed, StepEnteringDRC, StepDRCActive} {
		if err := workflow.TransitionTo(step, nil); err != nil {
			t.Fatalf("TransitionTo(%s) error = %v", step, err)
		}
	}

	err := ctrl.ExitDRC(context.Background())
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ExitDRC() error = %v, want ErrInvalidState", err)
	}
	if session.Status() != StatusIdle {
		t.Errorf("session status = %s, want idle", session.Status())
	}
	if got := caller.methods(); len(got) != 0 {
		t.Errorf("service calls = %v, want none for refused exit", got)
	}
}

func TestExitDRCFlushesHeartbeatStats(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "cloud_control_auth", reply: correlator.Reply{TID: "tid-auth"}},
		{method: "drc_mode_enter", reply: okReply(0)},
		{method: "drc_mode_exit", reply: okReply(0)},
		{method: "cloud_control_auth_release", reply: okReply(0)},
	}}

	session := NewSession()
	session.UpdateMQTTStatus(true)
	session.SetBrokerConfig(BrokerConfig{
		Address:  "relay.example.com:1883",
		ClientID: "drc-client",
		Username: "pilot",
		Password: "secret",
	})
	workflow := NewWorkflow(nil)
	hb := &fakeHeartbeat{stats: heartbeat.Stats{Sent: 50, Received: 48, Failed: 2}}
	sink := &fakeTelemetry{}

	ctrl := NewController(ControllerConfig{
		GatewaySN:      "SN123",
		UserID:         "u1",
		UserCallsign:   "Pilot",
		Session:        session,
		Workflow:       workflow,
		Auth:           NewAuthManager(caller, time.Second),
		Caller:         caller,
		ServiceTimeout: time.Second,
		Heartbeat:      hb,
		Telemetry:      sink,
	})
	ctx := context.Background()

	if err := ctrl.RequestAuth(ctx); err != nil {
		t.Fatalf("RequestAuth() error = %v", err)
	}
	if err := ctrl.ConfirmAuth(); err != nil {
		t.Fatalf("ConfirmAuth() error = %v", err)
	}
	if err := ctrl.EnterDRC(ctx); err != nil {
		t.Fatalf("EnterDRC() error = %v", err)
	}
	if err := ctrl.ExitDRC(ctx); err != nil {
		t.Fatalf("ExitDRC() error = %v", err)
	}

	if len(sink.heartbeats) != 1 {
		t.Fatalf("heartbeat stats written %d times, want 1", len(sink.heartbeats))
	}
	want := heartbeat.Stats{Sent: 50, Received: 48, Failed: 2}
	if sink.heartbeats[0] != want {
		t.Errorf("heartbeat stats = %+v, want %+v", sink.heartbeats[0], want)
	}
	if len(sink.outcomes) != 1 || sink.outcomes[0] != "completed" {
		t.Errorf("session outcomes = %v, want [completed]", sink.outcomes)
	}
}

func TestCancelFromAuthPending(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "cloud_control_auth", reply: correlator.Reply{TID: "tid-auth"}},
	}}
	ctrl, session, workflow, _ := newTestController(caller)

	if err := ctrl.RequestAuth(context.Background()); err != nil {
		t.Fatalf("RequestAuth() error = %v", err)
	}
	if err := ctrl.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if workflow.Current() != StepIdle {
		t.Errorf("step = %s after cancel, want idle", workflow.Current())
	}
	if session.Prerequisites().CloudControlAuthorized {
		t.Error("authorization prerequisite kept after cancel")
	}
}

func TestResetFromAnywhere(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "cloud_control_auth", reply: correlator.Reply{TID: "tid-auth"}},
		{method: "drc_mode_enter", reply: okReply(0)},
	}}
	ctrl, session, workflow, hb := newTestController(caller)
	ctx := context.Background()

	_ = ctrl.RequestAuth(ctx)
	_ = ctrl.ConfirmAuth()
	if err := ctrl.EnterDRC(ctx); err != nil {
		t.Fatalf("EnterDRC() error = %v", err)
	}

	ctrl.Reset()

	if workflow.Current() != StepIdle {
		t.Errorf("step = %s after reset, want idle", workflow.Current())
	}
	if session.Status() != StatusIdle {
		t.Errorf("session status = %s after reset, want idle", session.Status())
	}
	if hb.stopped == 0 {
		t.Error("heartbeat not stopped on reset")
	}
}

func TestStatusSnapshot(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{method: "cloud_control_auth", reply: correlator.Reply{TID: "tid-auth"}},
	}}
	ctrl, _, _, _ := newTestController(caller)

	if err := ctrl.RequestAuth(context.Background()); err != nil {
		t.Fatalf("RequestAuth() error = %v", err)
	}

	status := ctrl.Status()
	if status.Step != StepAuthPending {
		t.Errorf("Status().Step = %s, want auth_pending", status.Step)
	}
	if !status.RequiresAction {
		t.Error("Status().RequiresAction = false at auth_pending")
	}
	if status.Progress != 40 {
		t.Errorf("Status().Progress = %d, want 40", status.Progress)
	}
	if status.GatewaySN != "SN123" {
		t.Errorf("Status().GatewaySN = %q, want SN123", status.GatewaySN)
	}
	if len(status.RecentHistory) == 0 {
		t.Error("Status().RecentHistory empty after transitions")
	}
}
