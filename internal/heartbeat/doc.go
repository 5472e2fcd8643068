// Package heartbeat keeps the DRC data-plane link alive.
//
// While a DRC session is active the gateway expects a steady stream of
// heart_beat frames on thing/product/{sn}/drc/down; if they stop, the
// gateway drops out of remote-control mode. The Keeper publishes one
// frame per interval at QoS 0 and counts the echoes the gateway sends
// back on drc/up, giving a cheap link-quality signal (sent vs received
// vs failed) without touching the control plane.
//
// Sequence numbers are seeded from the wall clock and increase
// monotonically, so a restarted keeper never reuses recent values.
package heartbeat
