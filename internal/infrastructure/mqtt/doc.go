// Package mqtt provides MQTT client connectivity for SkyBridge Core.
//
// This package manages:
//   - Connection to the cloud-API broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// SkyBridge talks to DJI gateways (docks and remote controllers) over the
// thing-model topic scheme on a shared MQTT broker. Service calls go out on
// thing/product/{sn}/services and all replies arrive on the shared
// thing/product/{sn}/services_reply topic, correlated by transaction id.
// The DRC data plane runs on thing/product/{sn}/drc/up and drc/down.
//
//	SkyBridge Core ↔ MQTT Broker ↔ DJI Gateway ↔ Aircraft
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to the shared reply topic
//	err = client.Subscribe(mqtt.Topics{}.ServicesReply(sn), 1,
//	    func(topic string, payload []byte) error {
//	        return correlator.HandleReply(topic, payload)
//	    })
//
//	// Publish a service call
//	topic := mqtt.Topics{}.Services(sn)
//	client.Publish(topic, envelope, 1, false)
package mqtt
