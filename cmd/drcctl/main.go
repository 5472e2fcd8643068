// drcctl - one-shot DRC control CLI
//
// drcctl performs a single DRC operation against a DJI gateway and
// prints one JSON result line to stdout, making it scriptable from
// shells and CI pipelines:
//
//	drcctl enter --sn 9N9CN180011TJN --mqtt-host broker.local
//	drcctl exit --sn 9N9CN180011TJN
//	drcctl heartbeat --sn 9N9CN180011TJN
//
// Exit code 0 on success, 1 on failure or an unknown command.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/skybridge/skybridge-core/internal/correlator"
	"github.com/skybridge/skybridge-core/internal/drc"
	"github.com/skybridge/skybridge-core/internal/heartbeat"
	"github.com/skybridge/skybridge-core/internal/infrastructure/config"
	"github.com/skybridge/skybridge-core/internal/infrastructure/mqtt"
)

const (
	// serviceTimeout bounds each request/reply exchange.
	serviceTimeout = 10 * time.Second

	// heartbeatWindow is how long the heartbeat command keeps the link
	// alive before reporting its counters.
	heartbeatWindow = 10 * time.Second

	// heartbeatInterval matches the dashboard's DRC keep-alive period.
	heartbeatInterval = 200 * time.Millisecond
)

// options holds the parsed command-line flags.
type options struct {
	sn        string
	mqttHost  string
	mqttPort  int
	username  string
	password  string
	osdFreq   int
	hsiFreq   int
	enableTLS bool
}

// outcome is the single JSON line printed to stdout.
type outcome struct {
	Success   bool           `json:"success"`
	Result    int            `json:"result"`
	Data      map[string]any `json:"data,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := run(ctx, os.Args[1:])

	line, err := json.Marshal(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: encoding result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(line))

	if !out.Success {
		os.Exit(1)
	}
}

// run executes one subcommand and returns the printable outcome.
func run(ctx context.Context, args []string) outcome {
	if len(args) == 0 {
		return failure(0, "usage: drcctl <enter|exit|heartbeat> --sn <serial> [flags]")
	}

	command := args[0]
	opts, err := parseFlags(args[1:])
	if err != nil {
		return failure(0, err.Error())
	}
	if opts.sn == "" {
		return failure(0, "--sn is required")
	}

	// The enter handoff passes these credentials to the gateway, so an
	// empty pair can only ever fail. Refuse before touching the broker.
	if command == "enter" && (opts.username == "" || opts.password == "") {
		return failure(0, "--username and --password are required for enter")
	}

	switch command {
	case "enter":
		return enter(ctx, opts)
	case "exit":
		return exit(ctx, opts)
	case "heartbeat":
		return runHeartbeat(ctx, opts)
	default:
		return failure(0, fmt.Sprintf("unknown command %q", command))
	}
}

// parseFlags parses the shared flag set used by every subcommand.
func parseFlags(args []string) (options, error) {
	opts := options{}

	fs := flag.NewFlagSet("drcctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&opts.sn, "sn", "", "gateway serial number (required)")
	fs.StringVar(&opts.mqttHost, "mqtt-host", "localhost", "MQTT broker host")
	fs.IntVar(&opts.mqttPort, "mqtt-port", 1883, "MQTT broker port")
	fs.StringVar(&opts.username, "username", "", "MQTT username")
	fs.StringVar(&opts.password, "password", "", "MQTT password")
	fs.IntVar(&opts.osdFreq, "osd-freq", 10, "OSD push frequency in Hz (1-30)")
	fs.IntVar(&opts.hsiFreq, "hsi-freq", 1, "HSI push frequency in Hz (1-30)")
	fs.BoolVar(&opts.enableTLS, "enable-tls", false, "connect to the broker over TLS")

	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("parsing flags: %w", err)
	}
	return opts, nil
}

// connect dials the broker and wires a correlator on the gateway's
// reply topic. The returned cleanup closes both.
func connect(opts options) (*mqtt.Client, *correlator.Correlator, func(), error) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     opts.mqttHost,
			Port:     opts.mqttPort,
			TLS:      opts.enableTLS,
			ClientID: "drcctl-" + uuid.NewString()[:8],
		},
		Auth: config.MQTTAuthConfig{
			Username: opts.username,
			Password: opts.password,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     10,
		},
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}

	corr := correlator.New(client, nil)
	if err := client.Subscribe(mqtt.Topics{}.ServicesReply(opts.sn), 1, corr.HandleReply); err != nil {
		corr.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("subscribing to services_reply: %w", err)
	}

	cleanup := func() {
		corr.Close()
		_ = client.Close()
	}
	return client, corr, cleanup, nil
}

// enter performs the full DRC entry sequence: cloud_control_auth then
// drc_mode_enter with the broker handoff payload.
func enter(ctx context.Context, opts options) outcome {
	_, corr, cleanup, err := connect(opts)
	if err != nil {
		return failure(0, err.Error())
	}
	defer cleanup()

	services := mqtt.Topics{}.Services(opts.sn)

	authReply, err := corr.Call(ctx, services, "cloud_control_auth",
		drc.AuthRequest{UserID: "drcctl", UserCallsign: "drcctl"}, serviceTimeout)
	if err != nil {
		return failure(0, fmt.Sprintf("cloud_control_auth: %v", err))
	}
	if !authReply.OK() {
		return failure(authReply.Data.Result,
			fmt.Sprintf("cloud_control_auth rejected with result %d", authReply.Data.Result))
	}

	payload, err := handoffPayload(opts)
	if err != nil {
		return failure(0, err.Error())
	}

	reply, err := corr.Call(ctx, services, "drc_mode_enter", payload, serviceTimeout)
	if err != nil {
		return failure(0, fmt.Sprintf("drc_mode_enter: %v", err))
	}
	if !reply.OK() {
		return failure(reply.Data.Result,
			fmt.Sprintf("drc_mode_enter rejected with result %d", reply.Data.Result))
	}

	return success("DRC mode entered", map[string]any{
		"tid":           reply.TID,
		"osd_frequency": payload.OSDFrequency,
		"hsi_frequency": payload.HSIFrequency,
	})
}

// exit performs the drc_mode_exit service call.
func exit(ctx context.Context, opts options) outcome {
	_, corr, cleanup, err := connect(opts)
	if err != nil {
		return failure(0, err.Error())
	}
	defer cleanup()

	reply, err := corr.Call(ctx, mqtt.Topics{}.Services(opts.sn), "drc_mode_exit",
		map[string]any{}, serviceTimeout)
	if err != nil {
		return failure(0, fmt.Sprintf("drc_mode_exit: %v", err))
	}
	if !reply.OK() {
		return failure(reply.Data.Result,
			fmt.Sprintf("drc_mode_exit rejected with result %d", reply.Data.Result))
	}

	return success("DRC mode exited", map[string]any{"tid": reply.TID})
}

// runHeartbeat keeps the DRC link alive for a fixed window and reports
// the sent/received/failed counters.
func runHeartbeat(ctx context.Context, opts options) outcome {
	client, _, cleanup, err := connect(opts)
	if err != nil {
		return failure(0, err.Error())
	}
	defer cleanup()

	keeper := heartbeat.New(client, opts.sn, heartbeatInterval, nil)
	if err := client.Subscribe(mqtt.Topics{}.DRCUp(opts.sn), 0, keeper.HandleUplink); err != nil {
		return failure(0, fmt.Sprintf("subscribing to drc/up: %v", err))
	}

	if err := keeper.Start(ctx); err != nil {
		return failure(0, fmt.Sprintf("starting heartbeat: %v", err))
	}

	select {
	case <-time.After(heartbeatWindow):
	case <-ctx.Done():
	}
	keeper.Stop()

	stats := keeper.Stats()
	return success("heartbeat window complete", map[string]any{
		"sent":     stats.Sent,
		"received": stats.Received,
		"failed":   stats.Failed,
	})
}

// handoffPayload assembles the drc_mode_enter payload from the flags.
// The gateway is handed the same broker drcctl connected to.
func handoffPayload(opts options) (drc.EnterRequest, error) {
	scheme := "tcp"
	if opts.enableTLS {
		scheme = "ssl"
	}

	session := drc.NewSession()
	session.SetFrequencies(opts.osdFreq, opts.hsiFreq)
	session.SetBrokerConfig(drc.BrokerConfig{
		Address:   fmt.Sprintf("%s://%s:%d", scheme, opts.mqttHost, opts.mqttPort),
		ClientID:  opts.sn + "-drc",
		Username:  opts.username,
		Password:  opts.password,
		EnableTLS: opts.enableTLS,
	})

	payload, err := session.BuildBrokerHandoff()
	if err != nil {
		return drc.EnterRequest{}, fmt.Errorf("building broker handoff: %w", err)
	}
	return payload, nil
}

func success(message string, data map[string]any) outcome {
	return outcome{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

func failure(result int, errMsg string) outcome {
	return outcome{
		Success:   false,
		Result:    result,
		Error:     errMsg,
		Timestamp: time.Now().UnixMilli(),
	}
}
