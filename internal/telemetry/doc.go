// Package telemetry records gateway telemetry into InfluxDB.
//
// Gateways publish OSD frames (position, attitude, battery, wind) at
// up to 10 Hz and online/offline announcements on their status topic.
// The Recorder subscribes to the wildcard forms of both, normalises
// each frame and hands it to the time-series sink. Frames it cannot
// parse are dropped: telemetry is lossy by design.
package telemetry
