package devicestate

import (
	"context"
	"encoding/json"
	"sync"
)

// CardState is a per-card state container with explicit Get/Set.
// Every Set is mirrored into the Manager under the currently active
// device; on device switch all fields are bulk-restored from the new
// device's stored state and the restore callback fires so the owning
// UI component can refresh.
type CardState struct {
	cardID  string
	manager *Manager
	devices *Context

	mu     sync.RWMutex
	fields map[string]interface{}

	onRestore   func(fields map[string]interface{})
	unsubscribe func()
}

// NewCardState creates a card container and registers it for device
// switches. If a device is already selected its state is loaded
// immediately. Call Close when the card is discarded.
func NewCardState(ctx context.Context, cardID string, manager *Manager, devices *Context) *CardState {
	c := &CardState{
		cardID:  cardID,
		manager: manager,
		devices: devices,
		fields:  make(map[string]interface{}),
	}

	c.unsubscribe = devices.Subscribe(func(change DeviceChange) {
		c.restore(context.Background(), change.CurrentSN)
	})

	if sn := devices.CurrentSN(); sn != "" {
		c.restore(ctx, sn)
	}

	return c
}

// OnRestore sets the callback fired after every bulk restore.
func (c *CardState) OnRestore(fn func(fields map[string]interface{})) {
	c.mu.Lock()
	c.onRestore = fn
	c.mu.Unlock()
}

// Set writes one field, mirroring it into persistent storage under the
// active device. With no device selected the value is held in memory
// only.
func (c *CardState) Set(ctx context.Context, field string, value interface{}) error {
	c.mu.Lock()
	c.fields[field] = value
	c.mu.Unlock()

	sn := c.devices.CurrentSN()
	if sn == "" {
		return nil
	}
	return c.manager.SetState(ctx, sn, c.cardID, field, value)
}

// Get returns one field's current value. The bool is false when the
// field has never been set or restored.
func (c *CardState) Get(field string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.fields[field]
	return v, ok
}

// Fields returns a copy of all current fields.
func (c *CardState) Fields() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

// restore replaces the in-memory fields with the stored state for the
// given device and fires the restore callback.
func (c *CardState) restore(ctx context.Context, deviceSN string) {
	stored, err := c.manager.GetState(ctx, deviceSN, c.cardID)
	if err != nil {
		c.manager.logger.Warn("card state restore failed",
			"card_id", c.cardID, "device_sn", deviceSN, "error", err)
		return
	}

	fields := make(map[string]interface{}, len(stored))
	for k, raw := range stored {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		fields[k] = v
	}

	c.mu.Lock()
	c.fields = fields
	callback := c.onRestore
	c.mu.Unlock()

	if callback != nil {
		callback(fields)
	}
}

// Close unregisters the card from device-switch notifications.
func (c *CardState) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}
