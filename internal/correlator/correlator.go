package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultTimeout bounds a Call when the caller passes zero.
const defaultTimeout = 10 * time.Second

// Publisher is the outbound transport for service calls.
// Satisfied by *mqtt.Client; tests substitute a recording fake.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the minimal logging interface the correlator needs.
// Satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Envelope is the outbound service-call wire format.
//
// bid always equals tid: the dashboard issues single-call transactions,
// so the business id carries no extra information.
type Envelope struct {
	TID       string      `json:"tid"`
	BID       string      `json:"bid"`
	Timestamp int64       `json:"timestamp"` // epoch milliseconds
	Method    string      `json:"method"`
	Data      interface{} `json:"data"`
}

// Reply is the inbound wire format on the shared services_reply topic.
type Reply struct {
	TID       string    `json:"tid"`
	BID       string    `json:"bid"`
	Timestamp int64     `json:"timestamp"`
	Method    string    `json:"method"`
	Data      ReplyData `json:"data"`
}

// ReplyData is the payload section of a reply.
// Result 0 signals success; Output carries method-specific fields.
type ReplyData struct {
	Result int             `json:"result"`
	Output json.RawMessage `json:"output,omitempty"`
}

// OK reports whether the reply signals success.
func (r Reply) OK() bool {
	return r.Data.Result == 0
}

// OutputStatus returns data.output.status, or "" when the output
// section is absent or carries no status field.
func (r Reply) OutputStatus() string {
	if len(r.Data.Output) == 0 {
		return ""
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(r.Data.Output, &out); err != nil {
		return ""
	}
	return out.Status
}

// Pending is a single in-flight request awaiting its correlated reply.
// Exactly one of Await's outcomes occurs per request: the reply, a
// timeout, or context cancellation.
type Pending struct {
	// TID is the transaction id stamped on the outbound envelope.
	TID string

	// IssuedAt is when the request was published.
	IssuedAt time.Time

	ch      chan Reply
	timeout time.Duration
}

// Correlator tracks pending service calls and routes replies to them.
//
// Thread Safety:
//   - All methods are safe for concurrent use. HandleReply is called
//     from the MQTT client's handler goroutine while callers block in
//     Await on their own goroutines.
type Correlator struct {
	publisher Publisher
	logger    Logger

	mu      sync.Mutex
	pending map[string]*Pending
	closed  bool
}

// New creates a Correlator publishing through the given transport.
//
// Parameters:
//   - publisher: Outbound transport (typically *mqtt.Client)
//   - logger: Logger for dropped-message diagnostics (nil for silent)
func New(publisher Publisher, logger Logger) *Correlator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Correlator{
		publisher: publisher,
		logger:    logger,
		pending:   make(map[string]*Pending),
	}
}

// Send publishes a service call and registers a pending request.
//
// The envelope is stamped with a fresh uuid tid (bid == tid) and the
// current time in epoch milliseconds. The returned Pending must be
// resolved exactly once via Await; abandoning it leaks the map entry
// until a matching reply or Await's timeout removes it, so always call
// Await (Call does this for you).
//
// Parameters:
//   - topic: Service topic (thing/product/{sn}/services)
//   - method: Service method name (e.g., "drc_mode_enter")
//   - data: Method payload, marshalled as the envelope's data field
//   - timeout: Reply deadline for the subsequent Await (0 = default 10s)
//
// Returns:
//   - *Pending: Handle to await the correlated reply
//   - error: If marshalling or publishing fails (no pending registered)
func (c *Correlator) Send(topic string, method string, data interface{}, timeout time.Duration) (*Pending, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tid := uuid.NewString()
	env := Envelope{
		TID:       tid,
		BID:       tid,
		Timestamp: time.Now().UnixMilli(),
		Method:    method,
		Data:      data,
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshalling envelope for %s: %w", method, err)
	}

	p := &Pending{
		TID:      tid,
		IssuedAt: time.Now(),
		ch:       make(chan Reply, 1), // buffered: HandleReply never blocks
		timeout:  timeout,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[tid] = p
	c.mu.Unlock()

	if err := c.publisher.Publish(topic, payload, 1, false); err != nil {
		c.remove(tid)
		return nil, fmt.Errorf("%w: %s: %w", ErrPublishFailed, method, err)
	}

	return p, nil
}

// Await blocks until the correlated reply arrives, the request times
// out, or ctx is cancelled. The pending entry is removed on all paths,
// so a reply arriving afterwards is dropped as a late reply.
//
// Returns:
//   - Reply: The correlated reply (check reply.OK() for result == 0)
//   - error: ErrTimeout, or ctx.Err() on cancellation
func (c *Correlator) Await(ctx context.Context, p *Pending) (Reply, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case reply := <-p.ch:
		c.remove(p.TID)
		return reply, nil
	case <-timer.C:
		c.remove(p.TID)
		return Reply{}, fmt.Errorf("%w: tid %s after %s", ErrTimeout, p.TID, p.timeout)
	case <-ctx.Done():
		c.remove(p.TID)
		return Reply{}, ctx.Err()
	}
}

// Call is the common request/reply round trip: Send then Await.
//
// Parameters:
//   - ctx: Context for cancellation
//   - topic: Service topic
//   - method: Service method name
//   - data: Method payload
//   - timeout: Reply deadline (0 = default 10s)
func (c *Correlator) Call(ctx context.Context, topic string, method string, data interface{}, timeout time.Duration) (Reply, error) {
	p, err := c.Send(topic, method, data, timeout)
	if err != nil {
		return Reply{}, err
	}
	return c.Await(ctx, p)
}

// HandleReply processes one message from the shared reply topic.
// It satisfies mqtt.MessageHandler, so it can be passed straight to
// Subscribe.
//
// Malformed JSON and unmatched tids are dropped without error: the
// shared topic carries replies for every client of the gateway, and
// late replies after a timeout are expected traffic.
func (c *Correlator) HandleReply(topic string, payload []byte) error {
	var reply Reply
	if err := json.Unmarshal(payload, &reply); err != nil {
		c.logger.Debug("dropping unparseable reply", "topic", topic, "error", err)
		return nil
	}

	if reply.TID == "" {
		c.logger.Debug("dropping reply without tid", "topic", topic)
		return nil
	}

	c.mu.Lock()
	p, ok := c.pending[reply.TID]
	if ok {
		delete(c.pending, reply.TID)
	}
	c.mu.Unlock()

	if !ok {
		// Late reply or another client's transaction.
		c.logger.Debug("ignoring unmatched reply", "tid", reply.TID, "topic", topic)
		return nil
	}

	p.ch <- reply
	return nil
}

// PendingCount returns the number of in-flight requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close rejects future Sends. In-flight Awaits still run to their
// timeout; replies arriving for them are delivered as usual.
func (c *Correlator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// remove deletes a pending entry if still present.
func (c *Correlator) remove(tid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, tid)
}
