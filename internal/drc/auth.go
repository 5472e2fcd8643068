package drc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skybridge/skybridge-core/internal/correlator"
	"github.com/skybridge/skybridge-core/internal/infrastructure/mqtt"
)

// confirmTimeout is how long a granted authorization waits for manual
// confirmation before it is considered stale.
const confirmTimeout = 60 * time.Second

// ServiceCaller is the request/reply transport for service calls.
// Satisfied by *correlator.Correlator; tests substitute a fake.
type ServiceCaller interface {
	Send(topic string, method string, data interface{}, timeout time.Duration) (*correlator.Pending, error)
	Await(ctx context.Context, p *correlator.Pending) (correlator.Reply, error)
	Call(ctx context.Context, topic string, method string, data interface{}, timeout time.Duration) (correlator.Reply, error)
}

// AuthManager drives the cloud-control authorization handshake that
// must complete before DRC mode may be entered.
//
// The handshake has two halves: the service call to the gateway
// (RequestAuthorization) and the operator's manual confirmation
// (ConfirmAuthorization), bounded by a 60 second timeout.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type AuthManager struct {
	caller  ServiceCaller
	timeout time.Duration

	mu          sync.Mutex
	authorized  bool
	confirmed   bool
	token       string
	requestedAt time.Time

	// confirmAfter overrides confirmTimeout, for tests.
	confirmAfter time.Duration
}

// NewAuthManager creates an AuthManager calling through the given
// transport with the given per-call reply timeout.
func NewAuthManager(caller ServiceCaller, serviceTimeout time.Duration) *AuthManager {
	return &AuthManager{
		caller:       caller,
		timeout:      serviceTimeout,
		confirmAfter: confirmTimeout,
	}
}

// SetConfirmWindow overrides the default 60 second manual-confirm
// window. Zero or negative durations are ignored.
func (a *AuthManager) SetConfirmWindow(d time.Duration) {
	if d <= 0 {
		return
	}
	a.mu.Lock()
	a.confirmAfter = d
	a.mu.Unlock()
}

// RequestAuthorization issues the cloud_control_auth service call for
// the given gateway. On a result == 0 reply the authorization is
// granted and a token recorded pending confirmation; any other result
// marks unauthorized.
//
// Parameters:
//   - ctx: Context for cancellation
//   - gatewaySN: Gateway serial number
//   - userID: Operator id sent to the gateway
//   - callsign: Operator callsign shown on the remote controller
//
// Returns:
//   - error: ErrAuthFailed with the result code on rejection, or the
//     transport error (including correlator.ErrTimeout)
func (a *AuthManager) RequestAuthorization(ctx context.Context, gatewaySN, userID, callsign string) error {
	topic := mqtt.Topics{}.Services(gatewaySN)
	payload := AuthRequest{UserID: userID, UserCallsign: callsign}

	reply, err := a.caller.Call(ctx, topic, "cloud_control_auth", payload, a.timeout)
	if err != nil {
		a.mu.Lock()
		a.authorized = false
		a.mu.Unlock()
		return fmt.Errorf("requesting cloud control auth: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !reply.OK() {
		a.authorized = false
		a.token = ""
		return fmt.Errorf("%w: result %d", ErrAuthFailed, reply.Data.Result)
	}

	a.authorized = true
	a.confirmed = false
	a.token = reply.TID
	a.requestedAt = time.Now()
	return nil
}

// ConfirmAuthorization transitions a pending authorization to
// confirmed.
//
// Returns:
//   - error: ErrNoPendingAuth if no authorization is awaiting
//     confirmation, or if the confirmation window has lapsed
func (a *AuthManager) ConfirmAuthorization() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == "" || !a.authorized {
		return ErrNoPendingAuth
	}
	if a.timedOutLocked() {
		return fmt.Errorf("%w: confirmation window lapsed", ErrNoPendingAuth)
	}

	a.confirmed = true
	return nil
}

// IsTimedOut reports whether the manual-confirm window (60s) has
// lapsed since the authorization was granted without confirmation.
func (a *AuthManager) IsTimedOut() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timedOutLocked()
}

// timedOutLocked implements IsTimedOut. Caller must hold a.mu.
func (a *AuthManager) timedOutLocked() bool {
	if a.requestedAt.IsZero() || a.confirmed {
		return false
	}
	return time.Since(a.requestedAt) > a.confirmAfter
}

// ReleaseAuthorization issues the cloud_control_auth_release service
// call and clears local authorization state regardless of the outcome.
//
// Returns:
//   - error: The transport error or a non-zero result, for logging;
//     local state is reset either way
func (a *AuthManager) ReleaseAuthorization(ctx context.Context, gatewaySN string) error {
	topic := mqtt.Topics{}.Services(gatewaySN)
	reply, err := a.caller.Call(ctx, topic, "cloud_control_auth_release", map[string]any{}, a.timeout)

	a.Reset()

	if err != nil {
		return fmt.Errorf("releasing cloud control auth: %w", err)
	}
	if !reply.OK() {
		return fmt.Errorf("%w: release result %d", ErrAuthFailed, reply.Data.Result)
	}
	return nil
}

// Reset clears the token, timestamps and flags. Used on logout, device
// switch, or explicit cancel.
func (a *AuthManager) Reset() {
	a.mu.Lock()
	a.authorized = false
	a.confirmed = false
	a.token = ""
	a.requestedAt = time.Time{}
	a.mu.Unlock()
}

// IsAuthorized reports whether the gateway granted authorization.
func (a *AuthManager) IsAuthorized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authorized
}

// IsConfirmed reports whether the operator confirmed the authorization.
func (a *AuthManager) IsConfirmed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.confirmed
}
