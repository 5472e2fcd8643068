package drc

import (
	"fmt"
	"sync"
	"time"
)

// Frequency and expiry bounds for the DRC data plane.
const (
	// minFrequencyHz and maxFrequencyHz bound osd/hsi push rates.
	// Out-of-range values are silently rejected, keeping the prior value.
	minFrequencyHz = 1
	maxFrequencyHz = 30

	// defaultOSDFrequency and defaultHSIFrequency match the dashboard defaults.
	defaultOSDFrequency = 10
	defaultHSIFrequency = 1

	// relayExpirySeconds is the auto-filled relay credential lifetime
	// when the config leaves expire_time unset.
	relayExpirySeconds = 3600
)

// Session is the single source of truth for DRC session fields and the
// gating logic for entering/exiting DRC mode.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Session struct {
	mu sync.RWMutex

	status    Status
	lastError string
	enteredAt time.Time

	// currentTID is non-empty only while status is entering or exiting.
	currentTID string

	broker    BrokerConfig
	configErr string

	osdFrequency int
	hsiFrequency int

	prereqs Prerequisites
}

// NewSession creates an idle session with default frequencies.
func NewSession() *Session {
	return &Session{
		status:       StatusIdle,
		osdFrequency: defaultOSDFrequency,
		hsiFrequency: defaultHSIFrequency,
	}
}

// CanEnterDRCMode reports whether DRC entry is currently permitted:
// all three prerequisites hold and the session is idle.
func (s *Session) CanEnterDRCMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prereqs.AllMet() && s.status == StatusIdle
}

// UpdateCloudControlStatus records the authorization prerequisite.
//
// Safety: if authorization is lost while a DRC session is active, the
// session is immediately reset to idle - remote control must not
// continue without authorization.
func (s *Session) UpdateCloudControlStatus(authorized bool) {
	s.mu.Lock()
	wasActive := s.status == StatusActive
	lost := s.prereqs.CloudControlAuthorized && !authorized
	s.prereqs.CloudControlAuthorized = authorized
	if lost && wasActive {
		s.resetLocked()
	}
	s.mu.Unlock()
}

// UpdateMQTTStatus records the broker-connectivity prerequisite.
func (s *Session) UpdateMQTTStatus(connected bool) {
	s.mu.Lock()
	s.prereqs.MQTTConnected = connected
	s.mu.Unlock()
}

// SetBrokerConfig merges the given config into the current one and
// revalidates. Empty string fields and a zero ExpireTime leave the
// existing values untouched; EnableTLS is always taken from cfg.
func (s *Session) SetBrokerConfig(cfg BrokerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Address != "" {
		s.broker.Address = cfg.Address
	}
	if cfg.ClientID != "" {
		s.broker.ClientID = cfg.ClientID
	}
	if cfg.Username != "" {
		s.broker.Username = cfg.Username
	}
	if cfg.Password != "" {
		s.broker.Password = cfg.Password
	}
	if cfg.ExpireTime != 0 {
		s.broker.ExpireTime = cfg.ExpireTime
	}
	s.broker.EnableTLS = cfg.EnableTLS

	s.validateBrokerLocked()
}

// validateBrokerLocked checks required relay fields and updates the
// configValid prerequisite. Caller must hold s.mu.
func (s *Session) validateBrokerLocked() {
	switch {
	case s.broker.Address == "":
		s.configErr = "broker address is required"
	case s.broker.ClientID == "":
		s.configErr = "broker client_id is required"
	case s.broker.Username == "":
		s.configErr = "broker username is required"
	case s.broker.Password == "":
		s.configErr = "broker password is required"
	default:
		s.configErr = ""
	}
	s.prereqs.ConfigValid = s.configErr == ""
}

// ConfigError returns the human-readable reason the broker config is
// invalid, or empty when valid.
func (s *Session) ConfigError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configErr
}

// SetFrequencies updates the osd/hsi push rates. Each value is
// validated independently against [1,30] Hz; an out-of-range value is
// silently rejected and the prior value kept.
func (s *Session) SetFrequencies(osdHz, hsiHz int) {
	s.mu.Lock()
	if osdHz >= minFrequencyHz && osdHz <= maxFrequencyHz {
		s.osdFrequency = osdHz
	}
	if hsiHz >= minFrequencyHz && hsiHz <= maxFrequencyHz {
		s.hsiFrequency = hsiHz
	}
	s.mu.Unlock()
}

// Frequencies returns the current osd and hsi push rates in Hz.
func (s *Session) Frequencies() (osdHz, hsiHz int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.osdFrequency, s.hsiFrequency
}

// StartEntering marks the session as entering DRC mode under the given
// transaction id.
//
// Returns:
//   - error: ErrPrecondition if prerequisites are unmet or status is not idle
func (s *Session) StartEntering(tid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prereqs.AllMet() || s.status != StatusIdle {
		return fmt.Errorf("%w: prerequisites=%+v status=%s", ErrPrecondition, s.prereqs, s.status)
	}

	s.status = StatusEntering
	s.currentTID = tid
	s.lastError = ""
	return nil
}

// SetActive marks the session as active: enteredAt is stamped and the
// transaction id cleared.
func (s *Session) SetActive() {
	s.mu.Lock()
	s.status = StatusActive
	s.enteredAt = time.Now()
	s.currentTID = ""
	s.mu.Unlock()
}

// StartExiting marks the session as exiting under the given
// transaction id.
//
// Returns:
//   - error: ErrInvalidState unless the session is active
func (s *Session) StartExiting(tid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return fmt.Errorf("%w: cannot exit from status %s", ErrInvalidState, s.status)
	}

	s.status = StatusExiting
	s.currentTID = tid
	return nil
}

// SetError moves the session to the error status. Terminal until an
// explicit ResetState.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	s.status = StatusError
	s.lastError = msg
	s.currentTID = ""
	s.mu.Unlock()
}

// ResetState returns the session to idle, clearing the error, entry
// timestamp and transaction id. Prerequisites are NOT cleared - they
// reflect external reality (connectivity, authorization, config) and
// are refreshed independently.
func (s *Session) ResetState() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// resetLocked is ResetState without locking. Caller must hold s.mu.
func (s *Session) resetLocked() {
	s.status = StatusIdle
	s.lastError = ""
	s.enteredAt = time.Time{}
	s.currentTID = ""
}

// BuildBrokerHandoff assembles the drc_mode_enter payload from the
// current config and frequencies, auto-filling expire_time to one hour
// from now when unset.
//
// Returns:
//   - EnterRequest: The wire payload
//   - error: ErrConfigInvalid if required relay fields are missing
func (s *Session) BuildBrokerHandoff() (EnterRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.prereqs.ConfigValid {
		return EnterRequest{}, fmt.Errorf("%w: %s", ErrConfigInvalid, s.configErr)
	}

	broker := s.broker
	if broker.ExpireTime == 0 {
		broker.ExpireTime = time.Now().Unix() + relayExpirySeconds
	}

	return EnterRequest{
		OSDFrequency: s.osdFrequency,
		HSIFrequency: s.hsiFrequency,
		MQTTBroker:   broker,
	}, nil
}

// DRCDuration returns how long the session has been active, or 0 when
// not active (and immediately after ResetState).
func (s *Session) DRCDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.enteredAt.IsZero() {
		return 0
	}
	return time.Since(s.enteredAt)
}

// Status returns the current session status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastError returns the most recent error message, or empty.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// CurrentTID returns the outstanding correlation id, or empty when no
// enter/exit exchange is in flight.
func (s *Session) CurrentTID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTID
}

// EnteredAt returns when the session became active, zero when not active.
func (s *Session) EnteredAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enteredAt
}

// Prerequisites returns a snapshot of the prerequisite flags.
func (s *Session) Prerequisites() Prerequisites {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prereqs
}

// Broker returns a copy of the current relay config.
func (s *Session) Broker() BrokerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.broker
}
