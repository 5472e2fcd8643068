package devicestate

import (
	"context"
	"encoding/json"
	"fmt"
)

// Key format constants. These are a storage contract: other tooling
// reads the same keys, so the shapes must not change.
const (
	deviceStatePrefix = "device_state_"
	currentDeviceKey  = "current_device_sn"
)

// stateKey builds the storage key for one card on one device.
func stateKey(deviceSN, cardID string) string {
	return fmt.Sprintf("%s%s_%s", deviceStatePrefix, deviceSN, cardID)
}

// Logger is the minimal logging interface this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Manager owns persisted device state: field-level reads and writes
// within each card's JSON object.
//
// Thread Safety:
//   - Safe for concurrent use when the underlying Store is; both
//     provided stores are.
type Manager struct {
	store  Store
	logger Logger
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{store: store, logger: logger}
}

// SetState upserts one field in a card's state object.
//
// A value that cannot be represented as JSON (channels, funcs, cyclic
// structures) is skipped silently: the write is dropped and logged at
// debug level, and the card object is left untouched.
func (m *Manager) SetState(ctx context.Context, deviceSN, cardID, field string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		m.logger.Debug("skipping non-serialisable state value",
			"device_sn", deviceSN, "card_id", cardID, "field", field, "error", err)
		return nil
	}

	fields, err := m.GetState(ctx, deviceSN, cardID)
	if err != nil {
		return err
	}
	fields[field] = raw

	obj, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshalling card state: %w", err)
	}
	return m.store.Set(ctx, stateKey(deviceSN, cardID), string(obj))
}

// GetState returns the full field map for a card. Missing state yields
// an empty map, never an error; storage failures are returned.
func (m *Manager) GetState(ctx context.Context, deviceSN, cardID string) (map[string]json.RawMessage, error) {
	value, ok, err := m.store.Get(ctx, stateKey(deviceSN, cardID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]json.RawMessage{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		// A corrupt blob is treated as missing; the next write replaces it.
		m.logger.Warn("discarding corrupt card state",
			"device_sn", deviceSN, "card_id", cardID, "error", err)
		return map[string]json.RawMessage{}, nil
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return fields, nil
}

// GetField returns one field of a card's state. The bool is false when
// the field (or the whole card) has no stored value.
func (m *Manager) GetField(ctx context.Context, deviceSN, cardID, field string) (json.RawMessage, bool, error) {
	fields, err := m.GetState(ctx, deviceSN, cardID)
	if err != nil {
		return nil, false, err
	}
	raw, ok := fields[field]
	return raw, ok, nil
}

// ClearCard removes all stored state for one card on one device.
func (m *Manager) ClearCard(ctx context.Context, deviceSN, cardID string) error {
	return m.store.Delete(ctx, stateKey(deviceSN, cardID))
}

// ClearDevice removes all stored state for every card on a device.
func (m *Manager) ClearDevice(ctx context.Context, deviceSN string) error {
	keys, err := m.store.Keys(ctx, deviceStatePrefix+deviceSN+"_")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
