// Package drc implements the Direct Remote Control workflow for DJI
// gateways: the authorization handshake, the broker relay handoff and
// the explicit step state machine that sequences them.
//
// # Workflow
//
// The operator journey is an eight-step state machine:
//
//	idle -> auth_request -> auth_pending -> auth_confirmed
//	     -> entering_drc -> drc_active -> exiting_drc -> idle
//
// with error reachable from the exchange steps and routed back to idle
// by an explicit reset. Transitions outside the table are refused and
// leave the step unchanged. Listeners are notified synchronously on
// every transition; a panicking listener never blocks the others.
//
// # Layering
//
//   - Workflow: the step machine and listener fan-out
//   - Session: protocol state, prerequisites and entry/exit guards
//   - AuthManager: the cloud_control_auth handshake and 60s manual
//     confirmation window
//   - Controller: ties the three together and drives the service calls
//     through the correlator
//
// UI surfaces (HTTP API, CLI) only talk to the Controller.
//
// # Safety Invariants
//
//   - DRC entry requires all three prerequisites (authorized, broker
//     connected, relay config valid) and an idle session.
//   - Losing cloud-control authorization while active resets the
//     session immediately; remote control never continues without it.
//   - A correlation id is outstanding only while entering or exiting.
package drc
