package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skybridge/skybridge-core/internal/infrastructure/mqtt"
)

// heartbeatMethod is the DRC data-plane keepalive method name.
const heartbeatMethod = "heart_beat"

// ErrAlreadyRunning indicates Start was called on a running keeper.
var ErrAlreadyRunning = errors.New("heartbeat: already running")

// Publisher is the outbound transport for heartbeat frames.
// Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the minimal logging interface the keeper needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// frame is the heartbeat wire format on drc/down.
type frame struct {
	Method string    `json:"method"`
	Seq    uint64    `json:"seq"`
	Data   frameData `json:"data"`
}

type frameData struct {
	Timestamp int64 `json:"timestamp"` // epoch milliseconds
}

// Stats are the keeper's link-quality counters since the last Start.
type Stats struct {
	Sent     uint64 `json:"sent"`
	Received uint64 `json:"received"`
	Failed   uint64 `json:"failed"`
}

// Keeper publishes heart_beat frames on the DRC downlink at a fixed
// interval while a session is active, and counts the echoes the
// gateway sends back on the uplink.
//
// Frames go out at QoS 0: a lost heartbeat is cheaper than a blocked
// one, and the gateway only cares about recency.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Keeper struct {
	publisher Publisher
	gatewaySN string
	interval  time.Duration
	logger    Logger

	// seq is monotonically increasing across sessions, seeded from the
	// wall clock so restarts never reuse recent values.
	seq atomic.Uint64

	sent     atomic.Uint64
	received atomic.Uint64
	failed   atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Keeper for one gateway's DRC downlink.
//
// Parameters:
//   - publisher: Outbound transport (typically *mqtt.Client)
//   - gatewaySN: Gateway serial number
//   - interval: Time between frames (e.g. 200ms)
//   - logger: Logger for publish failures (nil for silent)
func New(publisher Publisher, gatewaySN string, interval time.Duration, logger Logger) *Keeper {
	if logger == nil {
		logger = noopLogger{}
	}
	k := &Keeper{
		publisher: publisher,
		gatewaySN: gatewaySN,
		interval:  interval,
		logger:    logger,
	}
	k.seq.Store(uint64(time.Now().UnixMilli()))
	return k
}

// Start begins publishing frames until Stop or ctx cancellation.
// Counters reset on every Start so Stats covers one session.
//
// Returns:
//   - error: ErrAlreadyRunning if the keeper is active
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		return ErrAlreadyRunning
	}

	k.sent.Store(0)
	k.received.Store(0)
	k.failed.Store(0)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	k.cancel = cancel
	k.done = done

	go k.run(runCtx, done)
	return nil
}

// Stop halts publishing and waits for the loop to drain. Safe to call
// when not running.
func (k *Keeper) Stop() {
	k.mu.Lock()
	cancel := k.cancel
	done := k.done
	k.cancel = nil
	k.done = nil
	k.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run is the publish loop.
func (k *Keeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	topic := mqtt.Topics{}.DRCDown(k.gatewaySN)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.publishOne(topic)
		}
	}
}

// publishOne sends a single frame.
func (k *Keeper) publishOne(topic string) {
	f := frame{
		Method: heartbeatMethod,
		Seq:    k.seq.Add(1),
		Data:   frameData{Timestamp: time.Now().UnixMilli()},
	}

	payload, err := json.Marshal(f)
	if err != nil {
		k.failed.Add(1)
		return
	}

	if err := k.publisher.Publish(topic, payload, 0, false); err != nil {
		k.failed.Add(1)
		k.logger.Warn("heartbeat publish failed", "gateway_sn", k.gatewaySN, "error", err)
		return
	}
	k.sent.Add(1)
}

// HandleUplink counts heart_beat echoes on the DRC uplink. It
// satisfies mqtt.MessageHandler; other uplink methods pass through
// uncounted.
func (k *Keeper) HandleUplink(topic string, payload []byte) error {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		k.logger.Debug("dropping unparseable uplink frame", "topic", topic, "error", err)
		return nil
	}
	if f.Method == heartbeatMethod {
		k.received.Add(1)
	}
	return nil
}

// Stats returns the counters for the current (or last) session.
func (k *Keeper) Stats() Stats {
	return Stats{
		Sent:     k.sent.Load(),
		Received: k.received.Load(),
		Failed:   k.failed.Load(),
	}
}

// IsRunning reports whether the publish loop is active.
func (k *Keeper) IsRunning() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cancel != nil
}
