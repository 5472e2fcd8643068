// Package influxdb provides InfluxDB connectivity for SkyBridge Core.
//
// It wraps the official influxdb-client-go v2 library with SkyBridge-specific
// patterns for connection management, telemetry writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Aircraft OSD telemetry (position, attitude, battery, wind)
//   - DRC workflow transitions and session durations
//   - Heartbeat link-quality counters
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "skybridge",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write an OSD frame
//	client.WriteOSD(sn, influxdb.OSDFields{Height: 120.5, BatteryPercent: 87}, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// OSD frames arrive at up to 10 Hz per gateway; batching keeps the MQTT
// handlers from blocking on network I/O.
package influxdb
