// Package device models the 1-Wire boards and the peripherals attached to them.
//
// A SensorBoard carries up to two binary inputs, a RelayBoard up to eight
// outputs, and a Yeelight is a network lamp driven by the same timing rules
// as a relay. Boards hold fixed-size slot arrays indexed by bit position; an
// empty slot is nil.
//
// Hardware polarity lives here. Relay boards are active-low (a cleared bit
// switches the relay on) while sensor inputs report a set bit when active.
// Callers only deal in on/off booleans.
//
// All mutable device state is owned by a Devices arena guarded by a Registry.
// The control loop takes the write lock once per pass; readers such as the
// HTTP API take a snapshot under the read lock.
package device
