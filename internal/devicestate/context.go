package devicestate

import (
	"context"
	"sync"
)

// DeviceChange describes a device switch delivered to listeners.
type DeviceChange struct {
	CurrentSN  string `json:"current_sn"`
	PreviousSN string `json:"previous_sn"`
}

// ChangeListener is notified synchronously on every device switch.
type ChangeListener func(change DeviceChange)

// Context tracks the currently selected device and fans switch
// notifications out to listeners. A device switch is the sole trigger
// for state restoration across the whole system.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Listeners run
//     synchronously within the switching call, outside the lock.
type Context struct {
	store  Store
	logger Logger

	mu        sync.Mutex
	currentSN string
	listener  map[int]ChangeListener
	nextID    int
}

// NewContext creates a Context over the given store.
func NewContext(store Store, logger Logger) *Context {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Context{
		store:    store,
		logger:   logger,
		listener: make(map[int]ChangeListener),
	}
}

// LoadCurrent restores the last active device from storage. Call once
// at startup, before registering cards.
func (c *Context) LoadCurrent(ctx context.Context) error {
	sn, ok, err := c.store.Get(ctx, currentDeviceKey)
	if err != nil {
		return err
	}
	if ok {
		c.mu.Lock()
		c.currentSN = sn
		c.mu.Unlock()
	}
	return nil
}

// SetCurrentDevice switches the active device. A no-op when the serial
// is unchanged; otherwise the new serial is persisted and listeners
// are notified with the previous and current serials.
func (c *Context) SetCurrentDevice(ctx context.Context, sn string) error {
	c.mu.Lock()
	if sn == c.currentSN {
		c.mu.Unlock()
		return nil
	}
	previous := c.currentSN
	c.currentSN = sn
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	if err := c.store.Set(ctx, currentDeviceKey, sn); err != nil {
		c.logger.Warn("persisting current device failed", "device_sn", sn, "error", err)
	}

	change := DeviceChange{CurrentSN: sn, PreviousSN: previous}
	for _, l := range listeners {
		l(change)
	}
	return nil
}

// CurrentSN returns the active device serial, empty when none selected.
func (c *Context) CurrentSN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSN
}

// Subscribe registers a switch listener and returns its unsubscribe
// function.
func (c *Context) Subscribe(l ChangeListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listener[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listener, id)
		c.mu.Unlock()
	}
}

// snapshotListenersLocked copies listeners in registration order.
// Caller must hold c.mu.
func (c *Context) snapshotListenersLocked() []ChangeListener {
	out := make([]ChangeListener, 0, len(c.listener))
	for id := 0; id < c.nextID; id++ {
		if l, ok := c.listener[id]; ok {
			out = append(out, l)
		}
	}
	return out
}
