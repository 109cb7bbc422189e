// Package bridge connects the control loop's collaborators to MQTT.
//
// Outbound collaborators (Display, AlarmPanel) serialise their requests to
// JSON and publish them from the shared worker pool, so the control loop
// never waits on the broker. Inbound subscribers (TaskSubscriber,
// RFIDSubscriber) decode messages and hand them to the loop's non-blocking
// queues.
package bridge
