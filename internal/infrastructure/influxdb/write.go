package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// OSDFields holds the normalised telemetry extracted from a gateway OSD frame.
//
// Field names mirror what the dashboard displays: position, speeds, attitude,
// battery, wind and flight mode. Zero values are written as-is; the OSD frame
// is authoritative.
type OSDFields struct {
	Latitude        float64
	Longitude       float64
	Height          float64
	HorizontalSpeed float64
	VerticalSpeed   float64
	AttitudeHead    float64
	AttitudePitch   float64
	AttitudeRoll    float64
	BatteryPercent  float64
	WindSpeed       float64
	ModeCode        int
}

// WriteOSD writes a normalised OSD telemetry frame for a gateway.
//
// The write is non-blocking; data is batched and sent asynchronously.
// At 10 Hz per gateway this is the highest-volume measurement in the
// bucket, so tags are kept to the gateway serial only.
//
// Parameters:
//   - gatewaySN: Gateway serial number (tag)
//   - fields: Normalised telemetry values
//   - timestamp: Frame timestamp (use time.Now() if the frame has none)
func (c *Client) WriteOSD(gatewaySN string, fields OSDFields, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"osd",
		map[string]string{
			"gateway_sn": gatewaySN,
		},
		map[string]interface{}{
			"latitude":         fields.Latitude,
			"longitude":        fields.Longitude,
			"height":           fields.Height,
			"horizontal_speed": fields.HorizontalSpeed,
			"vertical_speed":   fields.VerticalSpeed,
			"attitude_head":    fields.AttitudeHead,
			"attitude_pitch":   fields.AttitudePitch,
			"attitude_roll":    fields.AttitudeRoll,
			"battery_percent":  fields.BatteryPercent,
			"wind_speed":       fields.WindSpeed,
			"mode_code":        fields.ModeCode,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteWorkflowTransition records a DRC workflow step change.
//
// Used to reconstruct session timelines: every transition writes one point
// tagged by gateway and step, with the previous step as a field.
//
// Parameters:
//   - gatewaySN: Gateway serial number
//   - fromStep: Step the workflow left
//   - toStep: Step the workflow entered
func (c *Client) WriteWorkflowTransition(gatewaySN string, fromStep string, toStep string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"workflow_transition",
		map[string]string{
			"gateway_sn": gatewaySN,
			"step":       toStep,
		},
		map[string]interface{}{
			"from_step": fromStep,
			"count":     1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteHeartbeatStats records heartbeat keeper counters for a gateway.
//
// Written periodically while a DRC session is active so link quality
// (sent vs received vs failed) can be graphed over the session.
//
// Parameters:
//   - gatewaySN: Gateway serial number
//   - sent: Heartbeats published since the session started
//   - received: Heartbeat echoes seen on the uplink
//   - failed: Publish failures
func (c *Client) WriteHeartbeatStats(gatewaySN string, sent, received, failed uint64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"heartbeat",
		map[string]string{
			"gateway_sn": gatewaySN,
		},
		map[string]interface{}{
			"sent":     sent,
			"received": received,
			"failed":   failed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSessionDuration records the duration of a completed DRC session.
//
// Parameters:
//   - gatewaySN: Gateway serial number
//   - duration: How long the session was active
//   - outcome: "completed" for a clean exit, "error" or "reset" otherwise
func (c *Client) WriteSessionDuration(gatewaySN string, duration time.Duration, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"drc_session",
		map[string]string{
			"gateway_sn": gatewaySN,
			"outcome":    outcome,
		},
		map[string]interface{}{
			"duration_seconds": duration.Seconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "ground-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
