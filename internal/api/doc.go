// Package api provides the HTTP interface to SkyBridge Core.
//
// The dashboard front end drives the DRC workflow and reads device
// state through this API; it never talks MQTT directly.
//
// # Endpoints
//
//	GET  /api/v1/health                                  - liveness
//	GET  /api/v1/workflow                                - workflow snapshot
//	POST /api/v1/workflow/actions/{action}               - drive the workflow
//	GET  /api/v1/heartbeat                               - link-quality counters
//	GET  /api/v1/devices/current                         - active device
//	PUT  /api/v1/devices/current                         - switch device
//	GET  /api/v1/devices/{sn}/cards/{cardId}/state       - card state
//	PUT  /api/v1/devices/{sn}/cards/{cardId}/state       - write one field
//	GET  /api/v1/sessions?sn={sn}                        - recent DRC sessions
//
// Workflow actions are request_auth, confirm, cancel, enter, exit and
// reset, mirroring the actions each workflow step offers.
//
// # Responses
//
// All responses are JSON. Errors use a consistent envelope:
//
//	{"error": "precondition failed", "detail": "..."}
//
// with conventional status codes (400 bad input, 404 unknown resource,
// 409 for refused transitions, 500 otherwise).
package api
