package drc

import (
	"fmt"
	"sync"
	"time"
)

// Step is one state of the DRC workflow state machine.
type Step string

// Workflow steps, in canonical forward order. Error and exit are off
// the forward path and report 0% progress.
const (
	StepIdle          Step = "idle"
	StepAuthRequest   Step = "auth_request"
	StepAuthPending   Step = "auth_pending"
	StepAuthConfirmed Step = "auth_confirmed"
	StepEnteringDRC   Step = "entering_drc"
	StepDRCActive     Step = "drc_active"
	StepExitingDRC    Step = "exiting_drc"
	StepError         Step = "error"
)

// recentHistorySize bounds the transition summary surfaced to callers.
// The full history is retained.
const recentHistorySize = 5

// StepDefinition is the static description of one workflow step.
type StepDefinition struct {
	Title              string
	AllowedNext        []Step
	Actions            []string
	IsLoading          bool
	RequiresUserAction bool
	IsActive           bool
	IsError            bool
	AutoAdvance        bool
}

// stepDefinitions is the transition table plus per-step UI metadata.
var stepDefinitions = map[Step]StepDefinition{
	StepIdle: {
		Title:       "Ready",
		AllowedNext: []Step{StepAuthRequest},
		Actions:     []string{"request_auth"},
	},
	StepAuthRequest: {
		Title:       "Requesting authorization",
		AllowedNext: []Step{StepAuthPending, StepError},
		IsLoading:   true,
		AutoAdvance: true,
	},
	StepAuthPending: {
		Title:              "Awaiting confirmation",
		AllowedNext:        []Step{StepAuthConfirmed, StepIdle},
		Actions:            []string{"confirm", "cancel"},
		RequiresUserAction: true,
	},
	StepAuthConfirmed: {
		Title:       "Authorization confirmed",
		AllowedNext: []Step{StepEnteringDRC},
		Actions:     []string{"enter_drc"},
		AutoAdvance: true,
	},
	StepEnteringDRC: {
		Title:       "Entering DRC mode",
		AllowedNext: []Step{StepDRCActive, StepError},
		IsLoading:   true,
	},
	StepDRCActive: {
		Title:       "Remote control active",
		AllowedNext: []Step{StepExitingDRC},
		Actions:     []string{"exit_drc"},
		IsActive:    true,
	},
	StepExitingDRC: {
		Title:       "Exiting DRC mode",
		AllowedNext: []Step{StepIdle, StepError},
		IsLoading:   true,
	},
	StepError: {
		Title:       "Error",
		AllowedNext: []Step{StepIdle},
		Actions:     []string{"reset"},
		IsError:     true,
	},
}

// forwardSequence is the canonical happy path used for progress
// reporting. Steps outside it (exiting_drc, error) report 0%.
var forwardSequence = []Step{
	StepIdle,
	StepAuthRequest,
	StepAuthPending,
	StepAuthConfirmed,
	StepEnteringDRC,
	StepDRCActive,
}

// Transition is one entry in the workflow history.
type Transition struct {
	From      Step           `json:"from"`
	To        Step           `json:"to"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// Listener is notified synchronously after every transition.
type Listener func(from, to Step, context map[string]any)

// Logger is the minimal logging interface this package needs.
// Satisfied by *logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Workflow drives the explicit DRC step state machine and fans
// transitions out to registered listeners.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Listeners are invoked
//     synchronously within the transitioning call, outside the lock.
type Workflow struct {
	mu       sync.Mutex
	current  Step
	history  []Transition
	listener map[int]Listener
	nextID   int
	logger   Logger
}

// NewWorkflow creates a workflow at the idle step.
func NewWorkflow(logger Logger) *Workflow {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Workflow{
		current:  StepIdle,
		listener: make(map[int]Listener),
		logger:   logger,
	}
}

// Current returns the current workflow step.
func (w *Workflow) Current() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Definition returns the static definition for a step. The second
// return is false for unknown steps.
func Definition(step Step) (StepDefinition, bool) {
	def, ok := stepDefinitions[step]
	return def, ok
}

// TransitionTo moves the workflow to target if the transition table
// allows it, records the transition in history, and notifies listeners
// synchronously with (from, to, context).
//
// Returns:
//   - error: ErrInvalidTransition if target is not allowed from the
//     current step; the step is left unchanged.
func (w *Workflow) TransitionTo(target Step, context map[string]any) error {
	w.mu.Lock()
	from := w.current

	def, ok := stepDefinitions[from]
	if !ok || !contains(def.AllowedNext, target) {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}

	w.current = target
	w.history = append(w.history, Transition{
		From:      from,
		To:        target,
		Timestamp: time.Now(),
		Context:   context,
	})
	listeners := w.snapshotListenersLocked()
	w.mu.Unlock()

	w.notify(listeners, from, target, context)
	return nil
}

// Reset unconditionally returns the workflow to idle regardless of the
// current step, bypassing the transition table. Listeners are notified
// with a {reset: true} context. This is the explicit escape hatch for
// cancel and error recovery.
func (w *Workflow) Reset() {
	context := map[string]any{"reset": true}

	w.mu.Lock()
	from := w.current
	w.current = StepIdle
	w.history = append(w.history, Transition{
		From:      from,
		To:        StepIdle,
		Timestamp: time.Now(),
		Context:   context,
	})
	listeners := w.snapshotListenersLocked()
	w.mu.Unlock()

	w.notify(listeners, from, StepIdle, context)
}

// Subscribe registers a listener and returns its unsubscribe function.
func (w *Workflow) Subscribe(l Listener) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listener[id] = l
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listener, id)
		w.mu.Unlock()
	}
}

// notify invokes listeners in registration order. A panicking listener
// must not prevent the others from being notified or corrupt the new
// state, so each invocation is individually recovered and logged.
func (w *Workflow) notify(listeners []Listener, from, to Step, context map[string]any) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Warn("workflow listener panicked",
						"from", string(from), "to", string(to), "panic", fmt.Sprint(r))
				}
			}()
			l(from, to, context)
		}()
	}
}

// snapshotListenersLocked copies listeners in registration order.
// Caller must hold w.mu.
func (w *Workflow) snapshotListenersLocked() []Listener {
	out := make([]Listener, 0, len(w.listener))
	for id := 0; id < w.nextID; id++ {
		if l, ok := w.listener[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// History returns a copy of the full transition history.
func (w *Workflow) History() []Transition {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Transition, len(w.history))
	copy(out, w.history)
	return out
}

// RecentHistory returns the most recent transitions (up to 5), oldest
// first. Used for status summaries.
func (w *Workflow) RecentHistory() []Transition {
	w.mu.Lock()
	defer w.mu.Unlock()
	start := len(w.history) - recentHistorySize
	if start < 0 {
		start = 0
	}
	out := make([]Transition, len(w.history)-start)
	copy(out, w.history[start:])
	return out
}

// AvailableActions returns the user actions offered at the current step.
func (w *Workflow) AvailableActions() []string {
	def, _ := Definition(w.Current())
	out := make([]string, len(def.Actions))
	copy(out, def.Actions)
	return out
}

// RequiresUserAction reports whether the current step waits on the operator.
func (w *Workflow) RequiresUserAction() bool {
	def, _ := Definition(w.Current())
	return def.RequiresUserAction
}

// IsLoading reports whether the current step is a transient exchange.
func (w *Workflow) IsLoading() bool {
	def, _ := Definition(w.Current())
	return def.IsLoading
}

// IsError reports whether the workflow is at the error step.
func (w *Workflow) IsError() bool {
	def, _ := Definition(w.Current())
	return def.IsError
}

// IsActive reports whether remote control is currently active.
func (w *Workflow) IsActive() bool {
	def, _ := Definition(w.Current())
	return def.IsActive
}

// ProgressPercentage reports the current step's position along the
// canonical forward sequence as 0-100. Steps off the forward path
// (exiting_drc, error) report 0.
func (w *Workflow) ProgressPercentage() int {
	current := w.Current()
	for i, step := range forwardSequence {
		if step == current {
			return i * 100 / (len(forwardSequence) - 1)
		}
	}
	return 0
}

func contains(steps []Step, target Step) bool {
	for _, s := range steps {
		if s == target {
			return true
		}
	}
	return false
}
