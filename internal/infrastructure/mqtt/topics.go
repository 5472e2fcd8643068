package mqtt

import "fmt"

// Topic prefixes for the DJI cloud API and SkyBridge's own topics.
//
// Device topics follow the DJI thing-model scheme:
// thing/product/{gateway_sn}/{channel}. The gateway serial number templates
// every device topic; SkyBridge's own status lives under the skybridge prefix.
const (
	// TopicPrefixThing is the base for all DJI thing-model topics.
	TopicPrefixThing = "thing/product"

	// TopicPrefixGround is the base for SkyBridge ground-station topics.
	TopicPrefixGround = "skybridge"
)

// Topics provides builders for cloud-API and ground-station MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	out := topics.Services("9N9CN180011TJN")
//	// Returns: "thing/product/9N9CN180011TJN/services"
type Topics struct{}

// =============================================================================
// Service Call Topics (request/reply)
// =============================================================================

// Services returns the outbound service-call topic for a gateway.
//
// Example: thing/product/9N9CN180011TJN/services
func (Topics) Services(sn string) string {
	return fmt.Sprintf("%s/%s/services", TopicPrefixThing, sn)
}

// ServicesReply returns the shared reply topic for a gateway. All replies to
// service calls arrive here carrying the echoed transaction id.
//
// Example: thing/product/9N9CN180011TJN/services_reply
func (Topics) ServicesReply(sn string) string {
	return fmt.Sprintf("%s/%s/services_reply", TopicPrefixThing, sn)
}

// =============================================================================
// DRC Data-Plane Topics
// =============================================================================

// DRCUp returns the aircraft-to-ground DRC topic (heartbeat replies,
// drone state pushes, OSD at the configured frequency).
//
// Example: thing/product/9N9CN180011TJN/drc/up
func (Topics) DRCUp(sn string) string {
	return fmt.Sprintf("%s/%s/drc/up", TopicPrefixThing, sn)
}

// DRCDown returns the ground-to-aircraft DRC topic (heartbeats, stick inputs).
//
// Example: thing/product/9N9CN180011TJN/drc/down
func (Topics) DRCDown(sn string) string {
	return fmt.Sprintf("%s/%s/drc/down", TopicPrefixThing, sn)
}

// =============================================================================
// Telemetry Topics
// =============================================================================

// OSD returns the on-screen-display telemetry topic for a gateway.
//
// Example: thing/product/9N9CN180011TJN/osd
func (Topics) OSD(sn string) string {
	return fmt.Sprintf("%s/%s/osd", TopicPrefixThing, sn)
}

// State returns the device state topic for a gateway.
//
// Example: thing/product/9N9CN180011TJN/state
func (Topics) State(sn string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixThing, sn)
}

// Events returns the device events topic for a gateway.
//
// Example: thing/product/9N9CN180011TJN/events
func (Topics) Events(sn string) string {
	return fmt.Sprintf("%s/%s/events", TopicPrefixThing, sn)
}

// Status returns the device online/offline status topic for a gateway.
//
// Example: thing/product/9N9CN180011TJN/status
func (Topics) Status(sn string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixThing, sn)
}

// =============================================================================
// Ground-Station Topics
// =============================================================================

// GroundStatus returns SkyBridge's own online/offline status topic,
// used for the Last Will and Testament and graceful-shutdown messages.
//
// Example: skybridge/system/status
func (Topics) GroundStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefixGround)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllOSD returns a pattern matching OSD telemetry from every gateway.
//
// Pattern: thing/product/+/osd
func (Topics) AllOSD() string {
	return fmt.Sprintf("%s/+/osd", TopicPrefixThing)
}

// AllState returns a pattern matching state updates from every gateway.
//
// Pattern: thing/product/+/state
func (Topics) AllState() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixThing)
}

// AllStatus returns a pattern matching online/offline status from every gateway.
//
// Pattern: thing/product/+/status
func (Topics) AllStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixThing)
}

// GatewayFromTopic extracts the gateway serial number from a thing-model
// topic, or "" if the topic does not follow the scheme.
//
// Example: thing/product/9N9CN180011TJN/osd -> "9N9CN180011TJN"
func GatewayFromTopic(topic string) string {
	// thing/product/{sn}/...
	const prefixLen = len(TopicPrefixThing) + 1
	if len(topic) <= prefixLen || topic[:prefixLen] != TopicPrefixThing+"/" {
		return ""
	}
	rest := topic[prefixLen:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i]
		}
	}
	return ""
}
