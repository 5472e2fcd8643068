// Package devicestate isolates dashboard card state per physical
// device, so switching gateways restores each card exactly as the
// operator left it.
//
// # Storage Contract
//
// State lives in a durable key/value store under two kinds of keys:
//
//	device_state_{sn}_{cardId} -> JSON object of field values
//	current_device_sn          -> last active gateway serial
//
// Values must be JSON-serialisable; a value that cannot be marshalled
// is skipped silently rather than corrupting the card object.
//
// # Layering
//
//   - Store: the key/value contract (SQLite in production, memory in tests)
//   - Manager: field-level reads and writes within a card's JSON object
//   - Context: tracks the current device and fans out switch notifications
//   - CardState: per-card container with explicit Get/Set, auto-restored
//     on every device switch
//
// Device switching is the sole trigger for restoration: Context notifies
// its listeners, each CardState reloads its fields for the new serial
// and fires its restore callback so the owning UI component re-renders.
package devicestate
