package main

import (
	"context"
	"strings"
	"testing"
)

func TestRunNoArgs(t *testing.T) {
	out := run(context.Background(), nil)

	if out.Success {
		t.Error("run() with no args should fail")
	}
	if !strings.Contains(out.Error, "usage") {
		t.Errorf("Error = %q, want usage message", out.Error)
	}
}

func TestRunMissingSN(t *testing.T) {
	out := run(context.Background(), []string{"enter"})

	if out.Success {
		t.Error("run() without --sn should fail")
	}
	if !strings.Contains(out.Error, "--sn") {
		t.Errorf("Error = %q, want --sn requirement", out.Error)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	out := run(context.Background(), []string{"self_destruct", "--sn", "SN1"})

	if out.Success {
		t.Error("run() with unknown command should fail")
	}
	if !strings.Contains(out.Error, "unknown command") {
		t.Errorf("Error = %q, want unknown command", out.Error)
	}
}

func TestRunEnterRequiresCredentials(t *testing.T) {
	out := run(context.Background(), []string{"enter", "--sn", "SN1"})

	if out.Success {
		t.Error("run(enter) without credentials should fail")
	}
	if !strings.Contains(out.Error, "required for enter") {
		t.Errorf("Error = %q, want credential requirement", out.Error)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags([]string{"--sn", "SN1"})
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}

	if opts.sn != "SN1" {
		t.Errorf("sn = %q, want SN1", opts.sn)
	}
	if opts.mqttHost != "localhost" || opts.mqttPort != 1883 {
		t.Errorf("broker defaults = %s:%d, want localhost:1883", opts.mqttHost, opts.mqttPort)
	}
	if opts.osdFreq != 10 || opts.hsiFreq != 1 {
		t.Errorf("frequency defaults = %d/%d, want 10/1", opts.osdFreq, opts.hsiFreq)
	}
	if opts.enableTLS {
		t.Error("enableTLS default = true, want false")
	}
}

func TestParseFlagsInvalid(t *testing.T) {
	if _, err := parseFlags([]string{"--mqtt-port", "not-a-number"}); err == nil {
		t.Error("parseFlags() should reject a non-numeric port")
	}
}

func TestHandoffPayload(t *testing.T) {
	opts := options{
		sn:       "SN1",
		mqttHost: "broker.local",
		mqttPort: 1883,
		username: "sky",
		password: "bridge",
		osdFreq:  20,
		hsiFreq:  5,
	}

	payload, err := handoffPayload(opts)
	if err != nil {
		t.Fatalf("handoffPayload() error: %v", err)
	}

	if payload.MQTTBroker.Address != "tcp://broker.local:1883" {
		t.Errorf("Address = %q, want tcp://broker.local:1883", payload.MQTTBroker.Address)
	}
	if payload.MQTTBroker.ClientID != "SN1-drc" {
		t.Errorf("ClientID = %q, want SN1-drc", payload.MQTTBroker.ClientID)
	}
	if payload.OSDFrequency != 20 || payload.HSIFrequency != 5 {
		t.Errorf("frequencies = %d/%d, want 20/5", payload.OSDFrequency, payload.HSIFrequency)
	}
	if payload.MQTTBroker.ExpireTime == 0 {
		t.Error("ExpireTime = 0, want auto-filled expiry")
	}
}

func TestHandoffPayloadTLSScheme(t *testing.T) {
	opts := options{
		sn:        "SN1",
		mqttHost:  "broker.local",
		mqttPort:  8883,
		username:  "sky",
		password:  "bridge",
		enableTLS: true,
	}

	payload, err := handoffPayload(opts)
	if err != nil {
		t.Fatalf("handoffPayload() error: %v", err)
	}

	if payload.MQTTBroker.Address != "ssl://broker.local:8883" {
		t.Errorf("Address = %q, want ssl scheme", payload.MQTTBroker.Address)
	}
	if !payload.MQTTBroker.EnableTLS {
		t.Error("EnableTLS = false, want true")
	}
}

func TestHandoffPayloadMissingCredentials(t *testing.T) {
	opts := options{
		sn:       "SN1",
		mqttHost: "broker.local",
		mqttPort: 1883,
	}

	if _, err := handoffPayload(opts); err == nil {
		t.Error("handoffPayload() should fail without broker credentials")
	}
}
