// Package onewire runs the control loop that drives relays and lamps from
// 1-Wire sensor boards.
//
// A single Worker goroutine owns the loop. Each pass it:
//
//  1. takes at most one externally submitted task
//  2. locks the device registry for the rest of the pass
//  3. reads every sensor board and feeds changed bits through the rule engine
//  4. recomputes day/night every minute and forces all_night relays
//  5. processes scanned RFID tags
//  6. applies queued tasks
//  7. switches off actuators whose hold timer expired
//
// Relay writes are staged on their board during a step and flushed as one
// byte per board. Lamp commands and shell scripts are handed to a worker
// pool, so nothing in a pass waits on the network.
package onewire
