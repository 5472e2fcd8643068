package drc

// Status is the DRC session lifecycle state.
type Status string

// Session statuses. The session is coarser-grained than the workflow
// steps: it tracks the protocol exchange, not the operator journey.
const (
	StatusIdle        Status = "idle"
	StatusChecking    Status = "checking"
	StatusConfiguring Status = "configuring"
	StatusEntering    Status = "entering"
	StatusActive      Status = "active"
	StatusExiting     Status = "exiting"
	StatusError       Status = "error"
)

// BrokerConfig is the MQTT relay handed to the gateway for the DRC
// data plane. Address is "host:port". ExpireTime is epoch seconds;
// zero means auto-fill to one hour from handoff.
type BrokerConfig struct {
	Address    string `json:"address"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	EnableTLS  bool   `json:"enable_tls"`
	ExpireTime int64  `json:"expire_time"`
}

// Prerequisites are the three independently-tracked conditions that
// must all hold before DRC entry is permitted.
type Prerequisites struct {
	CloudControlAuthorized bool `json:"cloud_control_authorized"`
	MQTTConnected          bool `json:"mqtt_connected"`
	ConfigValid            bool `json:"config_valid"`
}

// AllMet reports whether every prerequisite holds.
func (p Prerequisites) AllMet() bool {
	return p.CloudControlAuthorized && p.MQTTConnected && p.ConfigValid
}

// EnterRequest is the drc_mode_enter service-call payload.
type EnterRequest struct {
	OSDFrequency int          `json:"osd_frequency"`
	HSIFrequency int          `json:"hsi_frequency"`
	MQTTBroker   BrokerConfig `json:"mqtt_broker"`
}

// AuthRequest is the cloud_control_auth service-call payload.
type AuthRequest struct {
	UserID       string `json:"user_id"`
	UserCallsign string `json:"user_callsign"`
}
