package drc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skybridge/skybridge-core/internal/heartbeat"
	"github.com/skybridge/skybridge-core/internal/infrastructure/mqtt"
)

// HeartbeatRunner keeps the DRC link alive while a session is active.
// Satisfied by *heartbeat.Keeper.
type HeartbeatRunner interface {
	Start(ctx context.Context) error
	Stop()
	Stats() heartbeat.Stats
}

// TelemetrySink receives workflow and session measurements.
// Satisfied by *influxdb.Client. A nil sink disables recording.
type TelemetrySink interface {
	WriteWorkflowTransition(gatewaySN string, fromStep string, toStep string)
	WriteSessionDuration(gatewaySN string, duration time.Duration, outcome string)
	WriteHeartbeatStats(gatewaySN string, sent, received, failed uint64)
}

// SessionRecorder persists session history rows.
// Satisfied by *SessionRepository. A nil recorder disables persistence.
type SessionRecorder interface {
	RecordEntry(ctx context.Context, gatewaySN string) (int64, error)
	RecordExit(ctx context.Context, id int64, outcome string, detail string) error
}

// Controller orchestrates the full DRC workflow for one gateway:
// authorization, confirmation, broker handoff, heartbeat and teardown.
//
// It owns the coupling between the step state machine (Workflow), the
// protocol state (Session) and the auth handshake (AuthManager); UI
// surfaces (HTTP API, CLI) only ever talk to the Controller.
type Controller struct {
	gatewaySN string
	userID    string
	callsign  string

	session  *Session
	workflow *Workflow
	auth     *AuthManager
	caller   ServiceCaller
	timeout  time.Duration

	heartbeat HeartbeatRunner
	telemetry TelemetrySink
	recorder  SessionRecorder
	logger    Logger

	// rowMu guards sessionRowID, the drc_sessions row for the
	// in-flight session.
	rowMu        sync.Mutex
	sessionRowID int64
}

// ControllerConfig wires a Controller's collaborators.
type ControllerConfig struct {
	GatewaySN      string
	UserID         string
	UserCallsign   string
	Session        *Session
	Workflow       *Workflow
	Auth           *AuthManager
	Caller         ServiceCaller
	ServiceTimeout time.Duration

	// Optional collaborators; nil disables the concern.
	Heartbeat HeartbeatRunner
	Telemetry TelemetrySink
	Recorder  SessionRecorder
	Logger    Logger
}

// NewController creates a Controller and registers its telemetry
// listener on the workflow.
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Controller{
		gatewaySN: cfg.GatewaySN,
		userID:    cfg.UserID,
		callsign:  cfg.UserCallsign,
		session:   cfg.Session,
		workflow:  cfg.Workflow,
		auth:      cfg.Auth,
		caller:    cfg.Caller,
		timeout:   cfg.ServiceTimeout,
		heartbeat: cfg.Heartbeat,
		telemetry: cfg.Telemetry,
		recorder:  cfg.Recorder,
		logger:    logger,
	}

	if c.telemetry != nil {
		c.workflow.Subscribe(func(from, to Step, _ map[string]any) {
			c.telemetry.WriteWorkflowTransition(c.gatewaySN, string(from), string(to))
		})
	}

	return c
}

// RequestAuth starts the workflow: idle -> auth_request, issues the
// cloud_control_auth call, then advances to auth_pending on a grant or
// error on rejection.
func (c *Controller) RequestAuth(ctx context.Context) error {
	if err := c.workflow.TransitionTo(StepAuthRequest, nil); err != nil {
		return err
	}

	if err := c.auth.RequestAuthorization(ctx, c.gatewaySN, c.userID, c.callsign); err != nil {
		c.session.SetError(err.Error())
		c.fail("authorization request failed", err)
		return err
	}

	c.session.UpdateCloudControlStatus(true)
	c.logger.Info("cloud control authorization granted", "gateway_sn", c.gatewaySN)
	return c.workflow.TransitionTo(StepAuthPending, nil)
}

// ConfirmAuth records the operator's manual confirmation:
// auth_pending -> auth_confirmed.
func (c *Controller) ConfirmAuth() error {
	if err := c.auth.ConfirmAuthorization(); err != nil {
		return err
	}
	return c.workflow.TransitionTo(StepAuthConfirmed, nil)
}

// Cancel abandons a pending authorization: auth_pending -> idle.
func (c *Controller) Cancel() error {
	if err := c.workflow.TransitionTo(StepIdle, map[string]any{"cancelled": true}); err != nil {
		return err
	}
	c.auth.Reset()
	c.session.UpdateCloudControlStatus(false)
	return nil
}

// EnterDRC performs the broker handoff: auth_confirmed -> entering_drc
// -> drc_active. On success the heartbeat keeper starts and a session
// row is recorded.
func (c *Controller) EnterDRC(ctx context.Context) error {
	handoff, err := c.session.BuildBrokerHandoff()
	if err != nil {
		return err
	}

	if err := c.workflow.TransitionTo(StepEnteringDRC, nil); err != nil {
		return err
	}

	// Guarded before publish: a refused entry must never reach the
	// gateway, which acts on drc_mode_enter regardless of our state.
	if !c.session.CanEnterDRCMode() {
		err := fmt.Errorf("%w: prerequisites=%+v status=%s",
			ErrPrecondition, c.session.Prerequisites(), c.session.Status())
		c.fail("drc entry precondition failed", err)
		return err
	}

	topic := mqtt.Topics{}.Services(c.gatewaySN)
	pending, err := c.caller.Send(topic, "drc_mode_enter", handoff, c.timeout)
	if err != nil {
		c.session.SetError(err.Error())
		c.fail("drc_mode_enter publish failed", err)
		return err
	}

	if err := c.session.StartEntering(pending.TID); err != nil {
		c.fail("drc entry precondition failed", err)
		return err
	}

	reply, err := c.caller.Await(ctx, pending)
	if err != nil {
		c.session.SetError(err.Error())
		c.fail("drc_mode_enter reply failed", err)
		return err
	}
	if !reply.OK() {
		err := fmt.Errorf("%w: drc_mode_enter result %d", ErrInvalidState, reply.Data.Result)
		c.session.SetError(err.Error())
		c.fail("gateway refused drc entry", err)
		return err
	}

	c.session.SetActive()
	if err := c.workflow.TransitionTo(StepDRCActive, map[string]any{"tid": pending.TID}); err != nil {
		return err
	}

	if c.recorder != nil {
		id, err := c.recorder.RecordEntry(ctx, c.gatewaySN)
		if err != nil {
			c.logger.Warn("recording session entry failed", "error", err)
		} else {
			c.rowMu.Lock()
			c.sessionRowID = id
			c.rowMu.Unlock()
		}
	}

	if c.heartbeat != nil {
		if err := c.heartbeat.Start(ctx); err != nil {
			c.logger.Error("heartbeat start failed", "error", err)
		}
	}

	c.logger.Info("drc mode active", "gateway_sn", c.gatewaySN)
	return nil
}

// ExitDRC tears the session down: drc_active -> exiting_drc -> idle.
// The heartbeat stops first so the gateway sees a clean link quiesce,
// then drc_mode_exit and the auth release are issued.
func (c *Controller) ExitDRC(ctx context.Context) error {
	duration := c.session.DRCDuration()

	if err := c.workflow.TransitionTo(StepExitingDRC, nil); err != nil {
		return err
	}

	// Same ordering as entry: refuse before drc_mode_exit is published.
	if status := c.session.Status(); status != StatusActive {
		err := fmt.Errorf("%w: cannot exit from status %s", ErrInvalidState, status)
		c.fail("drc exit refused", err)
		return err
	}

	if c.heartbeat != nil {
		c.heartbeat.Stop()
	}

	topic := mqtt.Topics{}.Services(c.gatewaySN)
	pending, err := c.caller.Send(topic, "drc_mode_exit", map[string]any{}, c.timeout)
	if err != nil {
		c.session.SetError(err.Error())
		c.fail("drc_mode_exit publish failed", err)
		return err
	}

	if err := c.session.StartExiting(pending.TID); err != nil {
		c.fail("drc exit refused", err)
		return err
	}

	reply, err := c.caller.Await(ctx, pending)
	if err != nil {
		c.session.SetError(err.Error())
		c.fail("drc_mode_exit reply failed", err)
		c.finishSession(ctx, duration, "error", err.Error())
		return err
	}
	if !reply.OK() {
		err := fmt.Errorf("%w: drc_mode_exit result %d", ErrInvalidState, reply.Data.Result)
		c.session.SetError(err.Error())
		c.fail("gateway refused drc exit", err)
		c.finishSession(ctx, duration, "error", err.Error())
		return err
	}

	// Best effort: the session is over whether or not the release lands.
	if err := c.auth.ReleaseAuthorization(ctx, c.gatewaySN); err != nil {
		c.logger.Warn("auth release failed", "error", err)
	}

	c.session.ResetState()
	c.session.UpdateCloudControlStatus(false)
	c.finishSession(ctx, duration, "completed", "")

	c.logger.Info("drc mode exited", "gateway_sn", c.gatewaySN, "duration", duration)
	return c.workflow.TransitionTo(StepIdle, nil)
}

// Reset unconditionally aborts whatever is in flight and returns every
// collaborator to idle. In-flight correlated requests are not aborted;
// late replies are dropped by the correlator.
func (c *Controller) Reset() {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
	}

	wasActive := c.session.Status() == StatusActive
	duration := c.session.DRCDuration()

	c.auth.Reset()
	c.session.ResetState()
	c.session.UpdateCloudControlStatus(false)
	c.workflow.Reset()

	if wasActive {
		c.finishSession(context.Background(), duration, "reset", "operator reset")
	}
}

// Status is a point-in-time snapshot for UI surfaces.
type ControllerStatus struct {
	GatewaySN       string        `json:"gateway_sn"`
	Step            Step          `json:"step"`
	StepTitle       string        `json:"step_title"`
	SessionStatus   Status        `json:"session_status"`
	Prerequisites   Prerequisites `json:"prerequisites"`
	Progress        int           `json:"progress"`
	Actions         []string      `json:"actions"`
	RequiresAction  bool          `json:"requires_action"`
	LastError       string        `json:"last_error,omitempty"`
	DurationSeconds float64       `json:"duration_seconds"`
	RecentHistory   []Transition  `json:"recent_history"`
}

// Status returns the current workflow and session snapshot.
func (c *Controller) Status() ControllerStatus {
	step := c.workflow.Current()
	def, _ := Definition(step)
	return ControllerStatus{
		GatewaySN:       c.gatewaySN,
		Step:            step,
		StepTitle:       def.Title,
		SessionStatus:   c.session.Status(),
		Prerequisites:   c.session.Prerequisites(),
		Progress:        c.workflow.ProgressPercentage(),
		Actions:         c.workflow.AvailableActions(),
		RequiresAction:  c.workflow.RequiresUserAction(),
		LastError:       c.session.LastError(),
		DurationSeconds: c.session.DRCDuration().Seconds(),
		RecentHistory:   c.workflow.RecentHistory(),
	}
}

// fail routes the workflow to the error step and logs the cause.
func (c *Controller) fail(msg string, err error) {
	c.logger.Error(msg, "gateway_sn", c.gatewaySN, "error", err)
	if terr := c.workflow.TransitionTo(StepError, map[string]any{"error": err.Error()}); terr != nil {
		c.logger.Warn("error transition refused", "from", string(c.workflow.Current()))
	}
}

// finishSession records the session outcome in telemetry and storage.
// The heartbeat counters are flushed here, after the keeper stopped,
// so the final sent/received/failed tallies land in one point.
func (c *Controller) finishSession(ctx context.Context, duration time.Duration, outcome, detail string) {
	if c.telemetry != nil {
		c.telemetry.WriteSessionDuration(c.gatewaySN, duration, outcome)
		if c.heartbeat != nil {
			stats := c.heartbeat.Stats()
			c.telemetry.WriteHeartbeatStats(c.gatewaySN, stats.Sent, stats.Received, stats.Failed)
		}
	}
	c.rowMu.Lock()
	rowID := c.sessionRowID
	c.sessionRowID = 0
	c.rowMu.Unlock()

	if c.recorder != nil && rowID != 0 {
		if err := c.recorder.RecordExit(ctx, rowID, outcome, detail); err != nil {
			c.logger.Warn("recording session exit failed", "error", err)
		}
	}
}
