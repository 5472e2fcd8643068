package drc

import (
	"errors"
	"testing"
	"time"
)

// readySession returns a session with all prerequisites met.
func readySession() *Session {
	s := NewSession()
	s.UpdateCloudControlStatus(true)
	s.UpdateMQTTStatus(true)
	s.SetBrokerConfig(BrokerConfig{
		Address:  "relay.example.com:1883",
		ClientID: "drc-client",
		Username: "pilot",
		Password: "secret",
	})
	return s
}

func TestCanEnterDRCModeRequiresAllPrerequisites(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Session)
		want  bool
	}{
		{"all met", func(*Session) {}, true},
		{"no auth", func(s *Session) { s.UpdateCloudControlStatus(false) }, false},
		{"no mqtt", func(s *Session) { s.UpdateMQTTStatus(false) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := readySession()
			tt.setup(s)
			if got := s.CanEnterDRCMode(); got != tt.want {
				t.Errorf("CanEnterDRCMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanEnterDRCModeFalseWithInvalidConfig(t *testing.T) {
	s := NewSession()
	s.UpdateCloudControlStatus(true)
	s.UpdateMQTTStatus(true)
	s.SetBrokerConfig(BrokerConfig{Address: "relay:1883"}) // incomplete

	if s.CanEnterDRCMode() {
		t.Error("CanEnterDRCMode() = true with invalid broker config")
	}
}

func TestCanEnterDRCModeFalseWhenNotIdle(t *testing.T) {
	s := readySession()
	if err := s.StartEntering("tid-1"); err != nil {
		t.Fatalf("StartEntering() error = %v", err)
	}

	if s.CanEnterDRCMode() {
		t.Error("CanEnterDRCMode() = true while entering")
	}
}

func TestStartEnteringBlockedWithoutMQTT(t *testing.T) {
	s := readySession()
	s.UpdateMQTTStatus(false)

	err := s.StartEntering("tid-1")
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("StartEntering() error = %v, want ErrPrecondition", err)
	}
	if s.Status() != StatusIdle {
		t.Errorf("Status() = %s after refused entry, want idle", s.Status())
	}
}

func TestTIDLifecycle(t *testing.T) {
	s := readySession()

	if s.CurrentTID() != "" {
		t.Error("CurrentTID() non-empty while idle")
	}

	if err := s.StartEntering("tid-enter"); err != nil {
		t.Fatalf("StartEntering() error = %v", err)
	}
	if s.CurrentTID() != "tid-enter" {
		t.Errorf("CurrentTID() = %q while entering, want tid-enter", s.CurrentTID())
	}

	s.SetActive()
	if s.CurrentTID() != "" {
		t.Error("CurrentTID() non-empty while active")
	}

	if err := s.StartExiting("tid-exit"); err != nil {
		t.Fatalf("StartExiting() error = %v", err)
	}
	if s.CurrentTID() != "tid-exit" {
		t.Errorf("CurrentTID() = %q while exiting, want tid-exit", s.CurrentTID())
	}
}

func TestStartExitingRequiresActive(t *testing.T) {
	s := readySession()

	err := s.StartExiting("tid-1")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("StartExiting() while idle error = %v, want ErrInvalidState", err)
	}
}

func TestAuthLossWhileActiveForcesReset(t *testing.T) {
	s := readySession()
	if err := s.StartEntering("tid-1"); err != nil {
		t.Fatalf("StartEntering() error = %v", err)
	}
	s.SetActive()

	s.UpdateCloudControlStatus(false)

	if s.Status() != StatusIdle {
		t.Errorf("Status() = %s after auth loss, want idle", s.Status())
	}
	if !s.EnteredAt().IsZero() {
		t.Error("EnteredAt() not cleared after forced reset")
	}
	if s.DRCDuration() != 0 {
		t.Errorf("DRCDuration() = %v after forced reset, want 0", s.DRCDuration())
	}
}

func TestAuthLossWhileIdleDoesNotReset(t *testing.T) {
	s := readySession()
	s.SetError("previous failure")

	s.UpdateCloudControlStatus(false)

	if s.Status() != StatusError {
		t.Errorf("Status() = %s, want error (reset only applies while active)", s.Status())
	}
}

func TestDRCDurationNonDecreasing(t *testing.T) {
	s := readySession()
	if err := s.StartEntering("tid-1"); err != nil {
		t.Fatalf("StartEntering() error = %v", err)
	}
	s.SetActive()

	d1 := s.DRCDuration()
	time.Sleep(5 * time.Millisecond)
	d2 := s.DRCDuration()
	if d2 < d1 {
		t.Errorf("DRCDuration() decreased: %v then %v", d1, d2)
	}

	s.ResetState()
	if s.DRCDuration() != 0 {
		t.Errorf("DRCDuration() = %v after ResetState, want 0", s.DRCDuration())
	}
}

func TestSetFrequenciesRejectsOutOfRange(t *testing.T) {
	s := NewSession()
	osdBefore, hsiBefore := s.Frequencies()

	s.SetFrequencies(0, 31) // both out of [1,30]

	osd, hsi := s.Frequencies()
	if osd != osdBefore || hsi != hsiBefore {
		t.Errorf("Frequencies() = (%d, %d) after out-of-range set, want (%d, %d)",
			osd, hsi, osdBefore, hsiBefore)
	}
}

func TestSetFrequenciesAcceptsBounds(t *testing.T) {
	s := NewSession()

	s.SetFrequencies(30, 1)

	osd, hsi := s.Frequencies()
	if osd != 30 || hsi != 1 {
		t.Errorf("Frequencies() = (%d, %d), want (30, 1)", osd, hsi)
	}
}

func TestSetFrequenciesIndependentValidation(t *testing.T) {
	s := NewSession()
	s.SetFrequencies(20, 5)

	// osd out of range, hsi valid: only hsi changes.
	s.SetFrequencies(0, 7)

	osd, hsi := s.Frequencies()
	if osd != 20 || hsi != 7 {
		t.Errorf("Frequencies() = (%d, %d), want (20, 7)", osd, hsi)
	}
}

func TestBrokerConfigValidation(t *testing.T) {
	s := NewSession()

	s.SetBrokerConfig(BrokerConfig{Address: "relay:1883"})
	if s.Prerequisites().ConfigValid {
		t.Error("ConfigValid = true with missing client_id")
	}
	if s.ConfigError() == "" {
		t.Error("ConfigError() empty for invalid config")
	}

	// Merge in the rest; address from before is retained.
	s.SetBrokerConfig(BrokerConfig{ClientID: "c1", Username: "u", Password: "p"})
	if !s.Prerequisites().ConfigValid {
		t.Errorf("ConfigValid = false after completing config: %s", s.ConfigError())
	}
	if s.Broker().Address != "relay:1883" {
		t.Errorf("Address = %q, merge dropped prior value", s.Broker().Address)
	}
}

func TestBuildBrokerHandoffInvalidConfig(t *testing.T) {
	s := NewSession()

	_, err := s.BuildBrokerHandoff()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("BuildBrokerHandoff() error = %v, want ErrConfigInvalid", err)
	}
}

func TestBuildBrokerHandoffAutoFillsExpiry(t *testing.T) {
	s := readySession()
	s.SetFrequencies(15, 2)

	before := time.Now().Unix()
	req, err := s.BuildBrokerHandoff()
	if err != nil {
		t.Fatalf("BuildBrokerHandoff() error = %v", err)
	}

	if req.OSDFrequency != 15 || req.HSIFrequency != 2 {
		t.Errorf("frequencies = (%d, %d), want (15, 2)", req.OSDFrequency, req.HSIFrequency)
	}

	wantMin := before + relayExpirySeconds
	if req.MQTTBroker.ExpireTime < wantMin {
		t.Errorf("ExpireTime = %d, want >= %d (now+3600)", req.MQTTBroker.ExpireTime, wantMin)
	}
}

func TestBuildBrokerHandoffKeepsExplicitExpiry(t *testing.T) {
	s := readySession()
	s.SetBrokerConfig(BrokerConfig{ExpireTime: 1234567890})

	req, err := s.BuildBrokerHandoff()
	if err != nil {
		t.Fatalf("BuildBrokerHandoff() error = %v", err)
	}
	if req.MQTTBroker.ExpireTime != 1234567890 {
		t.Errorf("ExpireTime = %d, want 1234567890", req.MQTTBroker.ExpireTime)
	}
}

func TestResetStateKeepsPrerequisites(t *testing.T) {
	s := readySession()
	s.SetError("failure")

	s.ResetState()

	if s.Status() != StatusIdle {
		t.Errorf("Status() = %s, want idle", s.Status())
	}
	if s.LastError() != "" {
		t.Errorf("LastError() = %q, want empty", s.LastError())
	}
	if !s.Prerequisites().AllMet() {
		t.Error("ResetState cleared prerequisites; they reflect external reality")
	}
}
