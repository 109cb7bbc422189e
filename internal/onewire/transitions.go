package onewire

import (
	"time"

	"github.com/nerrad567/hard/internal/device"
)

// PIRProlong is the minimum extension granted to an overridden actuator
// once its switch hold is nearly used up.
const PIRProlong = 900 * time.Second

// output is the switchable side of an actuator.
type output interface {
	IsOn() bool
	Set(on bool)
}

// relayOutput stages changes on the relay's board.
type relayOutput struct {
	board *device.RelayBoard
	bit   int
}

func (o relayOutput) IsOn() bool  { return o.board.IsOn(o.bit) }
func (o relayOutput) Set(on bool) { o.board.SetOn(o.bit, on) }

// lightOutput updates the lamp optimistically and queues the network command.
type lightOutput struct {
	light  *device.Yeelight
	lights LightController
	now    time.Time
}

func (o lightOutput) IsOn() bool { return o.light.PoweredOn }

func (o lightOutput) Set(on bool) {
	o.light.PoweredOn = on
	o.light.LastToggled = o.now
	o.lights.SetPower(o.light.Name, o.light.Address, on)
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeBlocked
	outcomeOn
	outcomeProlonged
	outcomeToggled
	outcomeOff
	outcomeExpired
)

func (o outcome) String() string {
	switch o {
	case outcomeBlocked:
		return "blocked"
	case outcomeOn:
		return "on"
	case outcomeProlonged:
		return "prolonged"
	case outcomeToggled:
		return "toggled"
	case outcomeOff:
		return "off"
	case outcomeExpired:
		return "expired"
	default:
		return "none"
	}
}

// switched reports whether the output changed state.
func (o outcome) switched() bool {
	return o == outcomeOn || o == outcomeToggled || o == outcomeOff
}

// turnOnProlong handles a PIR-on event or a TurnOnProlong task. An idle
// actuator is switched on with a hold timer; a running one has its timer
// extended. window bounds the extension of an overridden actuator.
func turnOnProlong(a *device.Actuator, out output, now time.Time, blocked bool, hold, window time.Duration) outcome {
	if blocked {
		return outcomeBlocked
	}
	if !a.OverrideMode && !out.IsOn() {
		a.StopAfter = hold
		out.Set(true)
		return outcomeOn
	}
	prolong(a, now, hold, window)
	return outcomeProlonged
}

// prolong extends the hold timer. Overridden actuators keep their switch hold
// until fewer than window of it remain, then get window more.
func prolong(a *device.Actuator, now time.Time, hold, window time.Duration) {
	elapsed := a.Elapsed(now)
	if !a.OverrideMode {
		a.StopAfter = elapsed + hold
		return
	}
	if a.SwitchHold > window && elapsed > a.SwitchHold-window {
		a.StopAfter = elapsed + window
	}
}

// pirWindow is the override extension granted on motion: PIRProlong, or the
// actuator's PIR hold when that is longer. Tasks always use PIRProlong.
func pirWindow(a *device.Actuator) time.Duration {
	if a.PIRHold > PIRProlong {
		return a.PIRHold
	}
	return PIRProlong
}

// toggle handles a switch edge: the output always flips and the actuator
// enters override mode.
func toggle(a *device.Actuator, out output, blocked bool) outcome {
	if blocked {
		return outcomeBlocked
	}
	a.OverrideMode = true
	a.StopAfter = a.SwitchHold
	out.Set(!out.IsOn())
	return outcomeToggled
}

// turnOff handles a TurnOff task.
func turnOff(a *device.Actuator, out output, blocked bool) outcome {
	if !out.IsOn() {
		return outcomeNone
	}
	if blocked {
		return outcomeBlocked
	}
	out.Set(false)
	a.StopAfter = 0
	a.OverrideMode = false
	return outcomeOff
}

// expire switches the actuator off once its hold timer ran out. An actuator
// that is already off just has its override state cleared.
func expire(a *device.Actuator, out output, now time.Time) outcome {
	if a.LastToggled.IsZero() || a.StopAfter == 0 {
		return outcomeNone
	}
	elapsed := now.Sub(a.LastToggled)
	if elapsed <= device.MinToggleDelay || elapsed <= a.StopAfter {
		return outcomeNone
	}

	res := outcomeExpired
	if out.IsOn() {
		out.Set(false)
		res = outcomeOff
	} else {
		a.LastToggled = time.Time{}
	}
	a.StopAfter = 0
	a.OverrideMode = false
	return res
}

// taskHold is the hold used by a TurnOnProlong task without a duration.
func taskHold(a *device.Actuator) time.Duration {
	if a.SwitchHold != device.DefaultSwitchHoldSecs*time.Second {
		return a.SwitchHold
	}
	return a.PIRHold
}

// pirActivates reports whether a PIR-on event may drive the actuator.
func pirActivates(a *device.Actuator, on, night bool) bool {
	return on && (a.OverrideMode || (!a.PIRExclude && (night || a.PIRAllDay)))
}
