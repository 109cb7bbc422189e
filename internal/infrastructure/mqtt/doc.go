// Package mqtt connects the controller to an MQTT broker.
//
// The broker carries the controller's outer surface:
//
//	hard/status           retained online/offline status (LWT)
//	hard/onewire/task     inbound relay tasks
//	hard/rfid/seen        inbound RFID tag ids
//	hard/lcd/command      outbound display commands
//	hard/alarm/beep       outbound alarm panel beeps
//
// Connections reconnect automatically with backoff and subscriptions are
// restored after every reconnect. Handlers run on paho goroutines and are
// wrapped with panic recovery.
package mqtt
