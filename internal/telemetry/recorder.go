package telemetry

import (
	"encoding/json"
	"time"

	"github.com/skybridge/skybridge-core/internal/infrastructure/influxdb"
	"github.com/skybridge/skybridge-core/internal/infrastructure/mqtt"
)

// Sink receives normalised telemetry points.
// Satisfied by *influxdb.Client; tests substitute a recording fake.
type Sink interface {
	WriteOSD(gatewaySN string, fields influxdb.OSDFields, timestamp time.Time)
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// Logger is the minimal logging interface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// osdPayload is the gateway OSD frame. Only the fields the dashboard
// charts are extracted; everything else passes through unrecorded.
type osdPayload struct {
	Timestamp int64 `json:"timestamp"` // epoch milliseconds
	Data      struct {
		Latitude        float64 `json:"latitude"`
		Longitude       float64 `json:"longitude"`
		Height          float64 `json:"height"`
		HorizontalSpeed float64 `json:"horizontal_speed"`
		VerticalSpeed   float64 `json:"vertical_speed"`
		AttitudeHead    float64 `json:"attitude_head"`
		AttitudePitch   float64 `json:"attitude_pitch"`
		AttitudeRoll    float64 `json:"attitude_roll"`
		WindSpeed       float64 `json:"wind_speed"`
		ModeCode        int     `json:"mode_code"`
		Battery         struct {
			CapacityPercent float64 `json:"capacity_percent"`
		} `json:"battery"`
	} `json:"data"`
}

// statePayload is the gateway state push. Unlike OSD it arrives on
// change rather than at a fixed rate; only the mode and live-capable
// flag are charted.
type statePayload struct {
	Timestamp int64 `json:"timestamp"`
	Data      struct {
		ModeCode      int  `json:"mode_code"`
		LiveCapacity  int  `json:"live_capacity"`
		FlightControl bool `json:"flight_control"`
	} `json:"data"`
}

// statusPayload is the gateway online/offline announcement.
type statusPayload struct {
	Timestamp int64 `json:"timestamp"`
	Data      struct {
		OnlineStatus bool   `json:"online_status"`
		Version      string `json:"version"`
	} `json:"data"`
}

// Recorder turns raw gateway telemetry topics into time-series points.
//
// Subscribe its handlers on the wildcard topics:
//
//	client.Subscribe(mqtt.Topics{}.AllOSD(), 0, recorder.HandleOSD)
//	client.Subscribe(mqtt.Topics{}.AllState(), 0, recorder.HandleState)
//	client.Subscribe(mqtt.Topics{}.AllStatus(), 1, recorder.HandleStatus)
//
// Malformed frames are dropped at debug level; telemetry is lossy by
// design and a bad frame must never disturb the subscription.
type Recorder struct {
	sink   Sink
	logger Logger
}

// NewRecorder creates a Recorder writing to the given sink.
func NewRecorder(sink Sink, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{sink: sink, logger: logger}
}

// HandleOSD normalises one OSD frame and writes it. Satisfies
// mqtt.MessageHandler.
func (r *Recorder) HandleOSD(topic string, payload []byte) error {
	sn := mqtt.GatewayFromTopic(topic)
	if sn == "" {
		r.logger.Debug("dropping osd frame without gateway serial", "topic", topic)
		return nil
	}

	var frame osdPayload
	if err := json.Unmarshal(payload, &frame); err != nil {
		r.logger.Debug("dropping unparseable osd frame", "topic", topic, "error", err)
		return nil
	}

	ts := time.Now()
	if frame.Timestamp > 0 {
		ts = time.UnixMilli(frame.Timestamp)
	}

	r.sink.WriteOSD(sn, influxdb.OSDFields{
		Latitude:        frame.Data.Latitude,
		Longitude:       frame.Data.Longitude,
		Height:          frame.Data.Height,
		HorizontalSpeed: frame.Data.HorizontalSpeed,
		VerticalSpeed:   frame.Data.VerticalSpeed,
		AttitudeHead:    frame.Data.AttitudeHead,
		AttitudePitch:   frame.Data.AttitudePitch,
		AttitudeRoll:    frame.Data.AttitudeRoll,
		BatteryPercent:  frame.Data.Battery.CapacityPercent,
		WindSpeed:       frame.Data.WindSpeed,
		ModeCode:        frame.Data.ModeCode,
	}, ts)
	return nil
}

// HandleState records gateway state pushes. Satisfies
// mqtt.MessageHandler.
func (r *Recorder) HandleState(topic string, payload []byte) error {
	sn := mqtt.GatewayFromTopic(topic)
	if sn == "" {
		return nil
	}

	var frame statePayload
	if err := json.Unmarshal(payload, &frame); err != nil {
		r.logger.Debug("dropping unparseable state frame", "topic", topic, "error", err)
		return nil
	}

	ts := time.Now()
	if frame.Timestamp > 0 {
		ts = time.UnixMilli(frame.Timestamp)
	}

	flightControl := 0
	if frame.Data.FlightControl {
		flightControl = 1
	}

	r.sink.WritePointWithTime("device_state",
		map[string]string{"gateway_sn": sn},
		map[string]interface{}{
			"mode_code":      frame.Data.ModeCode,
			"live_capacity":  frame.Data.LiveCapacity,
			"flight_control": flightControl,
		},
		ts,
	)
	return nil
}

// HandleStatus records gateway online/offline flips. Satisfies
// mqtt.MessageHandler.
func (r *Recorder) HandleStatus(topic string, payload []byte) error {
	sn := mqtt.GatewayFromTopic(topic)
	if sn == "" {
		return nil
	}

	var frame statusPayload
	if err := json.Unmarshal(payload, &frame); err != nil {
		r.logger.Debug("dropping unparseable status frame", "topic", topic, "error", err)
		return nil
	}

	ts := time.Now()
	if frame.Timestamp > 0 {
		ts = time.UnixMilli(frame.Timestamp)
	}

	online := 0
	if frame.Data.OnlineStatus {
		online = 1
	}

	r.sink.WritePointWithTime("gateway_status",
		map[string]string{"gateway_sn": sn},
		map[string]interface{}{"online": online},
		ts,
	)
	return nil
}
