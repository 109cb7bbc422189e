// Package influxdb writes device state history to InfluxDB v2.
//
// Writes are non-blocking and batched by the client library; failures are
// reported asynchronously through the callback set with SetOnError.
//
// Measurements:
//
//	relay_state   tags: id        fields: on (bool)
//	sensor_state  tags: id        fields: on (bool)
//	cesspool      (no tags)       fields: level (int, percent)
//	toggles       tags: kind, id  fields: count (int)
package influxdb
