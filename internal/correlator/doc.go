// Package correlator matches outbound MQTT service calls to their replies.
//
// DJI gateways answer every service call on a single shared reply topic
// (thing/product/{sn}/services_reply), echoing the transaction id (tid)
// of the request. This package owns that correlation: it stamps outgoing
// envelopes with a fresh tid/bid pair, tracks one pending request per
// tid, and delivers the matching reply to whoever is awaiting it.
//
// # Envelope Format
//
// Requests carry {tid, bid, timestamp, method, data} where bid == tid
// and timestamp is epoch milliseconds. Replies carry {tid, data:{result,
// output}}; result == 0 means success.
//
// # Late Replies
//
// A reply arriving after its request timed out is dropped without error.
// Replies for tids we never issued (other dashboards sharing the broker)
// are ignored the same way. Malformed JSON on the reply topic is logged
// at debug level and dropped - it may belong to unrelated traffic.
//
// # Usage
//
//	corr := correlator.New(mqttClient, logger)
//	client.Subscribe(topics.ServicesReply(sn), 1, corr.HandleReply)
//
//	reply, err := corr.Call(ctx, topics.Services(sn), "cloud_control_auth",
//	    map[string]any{"user_id": "u1", "user_callsign": "Pilot"},
//	    10*time.Second)
//	if errors.Is(err, correlator.ErrTimeout) {
//	    // retry with a fresh tid, or surface to the operator
//	}
package correlator
