package onewire

import (
	"testing"
	"time"

	"github.com/nerrad567/hard/internal/device"
)

type fakeOutput struct {
	on   bool
	sets int
}

func (o *fakeOutput) IsOn() bool   { return o.on }
func (o *fakeOutput) Set(on bool) { o.on = on; o.sets++ }

var t0 = time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)

func newActuator() device.Actuator {
	return device.NewActuator(1, "test", nil, 0, 0)
}

func TestTurnOnProlong(t *testing.T) {
	tests := []struct {
		name       string
		override   bool
		on         bool
		toggledAgo time.Duration
		stopAfter  time.Duration
		hold       time.Duration
		window     time.Duration
		blocked    bool
		want       outcome
		wantStop   time.Duration
		wantOn     bool
	}{
		{name: "idle switches on", hold: 2 * time.Minute, want: outcomeOn, wantStop: 2 * time.Minute, wantOn: true},
		{name: "blocked", hold: time.Minute, blocked: true, want: outcomeBlocked},
		{name: "timed on extends", on: true, toggledAgo: time.Minute, stopAfter: 2 * time.Minute, hold: 2 * time.Minute, want: outcomeProlonged, wantStop: 3 * time.Minute, wantOn: true},
		{name: "override early keeps switch hold", override: true, on: true, toggledAgo: 10 * time.Minute, stopAfter: time.Hour, hold: 2 * time.Minute, window: PIRProlong, want: outcomeProlonged, wantStop: time.Hour, wantOn: true},
		{name: "override late extends by fifteen minutes", override: true, on: true, toggledAgo: 50 * time.Minute, stopAfter: time.Hour, hold: 2 * time.Minute, window: PIRProlong, want: outcomeProlonged, wantStop: 65 * time.Minute, wantOn: true},
		{name: "override off is not switched on", override: true, toggledAgo: 5 * time.Minute, stopAfter: time.Hour, hold: 2 * time.Minute, window: PIRProlong, want: outcomeProlonged, wantStop: time.Hour},
		{name: "long task duration does not widen override window", override: true, on: true, toggledAgo: 2500 * time.Second, stopAfter: time.Hour, hold: 1200 * time.Second, window: PIRProlong, want: outcomeProlonged, wantStop: time.Hour, wantOn: true},
		{name: "long pir hold widens override window", override: true, on: true, toggledAgo: 2500 * time.Second, stopAfter: time.Hour, hold: 1200 * time.Second, window: 1200 * time.Second, want: outcomeProlonged, wantStop: 3700 * time.Second, wantOn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newActuator()
			a.OverrideMode = tt.override
			a.StopAfter = tt.stopAfter
			if tt.toggledAgo > 0 {
				a.LastToggled = t0.Add(-tt.toggledAgo)
			}
			out := &fakeOutput{on: tt.on}

			got := turnOnProlong(&a, out, t0, tt.blocked, tt.hold, tt.window)
			if got != tt.want {
				t.Errorf("outcome = %v, want %v", got, tt.want)
			}
			if a.StopAfter != tt.wantStop {
				t.Errorf("StopAfter = %v, want %v", a.StopAfter, tt.wantStop)
			}
			if out.on != tt.wantOn {
				t.Errorf("on = %v, want %v", out.on, tt.wantOn)
			}
		})
	}
}

func TestProlongIsIdempotentWithinWindow(t *testing.T) {
	a := newActuator()
	a.LastToggled = t0.Add(-30 * time.Second)
	a.StopAfter = 2 * time.Minute
	out := &fakeOutput{on: true}

	turnOnProlong(&a, out, t0, false, 2*time.Minute, PIRProlong)
	first := a.StopAfter
	turnOnProlong(&a, out, t0, false, 2*time.Minute, PIRProlong)
	if a.StopAfter != first {
		t.Errorf("StopAfter changed on repeat: %v then %v", first, a.StopAfter)
	}
	if out.sets != 0 {
		t.Errorf("output set %d times, want 0", out.sets)
	}
}

func TestPIRWindow(t *testing.T) {
	tests := []struct {
		name    string
		pirHold time.Duration
		want    time.Duration
	}{
		{name: "short hold", pirHold: 2 * time.Minute, want: PIRProlong},
		{name: "long hold", pirHold: 20 * time.Minute, want: 20 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newActuator()
			a.PIRHold = tt.pirHold
			if got := pirWindow(&a); got != tt.want {
				t.Errorf("pirWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToggle(t *testing.T) {
	a := newActuator()
	out := &fakeOutput{}

	if got := toggle(&a, out, true); got != outcomeBlocked || out.sets != 0 {
		t.Fatalf("blocked toggle = %v, sets %d", got, out.sets)
	}
	if got := toggle(&a, out, false); got != outcomeToggled || !out.on {
		t.Fatalf("toggle = %v, on %v", got, out.on)
	}
	if !a.OverrideMode || a.StopAfter != a.SwitchHold {
		t.Errorf("Override=%v StopAfter=%v, want true %v", a.OverrideMode, a.StopAfter, a.SwitchHold)
	}
	toggle(&a, out, false)
	if out.on {
		t.Error("second toggle should switch off")
	}
}

func TestTurnOff(t *testing.T) {
	a := newActuator()
	a.OverrideMode = true
	a.StopAfter = time.Hour

	if got := turnOff(&a, &fakeOutput{}, false); got != outcomeNone {
		t.Errorf("off output = %v, want none", got)
	}
	if got := turnOff(&a, &fakeOutput{on: true}, true); got != outcomeBlocked {
		t.Errorf("blocked = %v, want blocked", got)
	}

	out := &fakeOutput{on: true}
	if got := turnOff(&a, out, false); got != outcomeOff {
		t.Fatalf("turnOff = %v, want off", got)
	}
	if out.on || a.OverrideMode || a.StopAfter != 0 {
		t.Errorf("after off: on=%v override=%v stop=%v", out.on, a.OverrideMode, a.StopAfter)
	}
}

func TestExpire(t *testing.T) {
	tests := []struct {
		name       string
		on         bool
		toggledAgo time.Duration
		stopAfter  time.Duration
		want       outcome
	}{
		{name: "never toggled", on: true, stopAfter: time.Second, want: outcomeNone},
		{name: "no timer", on: true, toggledAgo: time.Hour, want: outcomeNone},
		{name: "not yet", on: true, toggledAgo: time.Minute, stopAfter: 2 * time.Minute, want: outcomeNone},
		{name: "due", on: true, toggledAgo: 3 * time.Minute, stopAfter: 2 * time.Minute, want: outcomeOff},
		{name: "already off", toggledAgo: 3 * time.Minute, stopAfter: 2 * time.Minute, want: outcomeExpired},
		{name: "within toggle delay", on: true, toggledAgo: 500 * time.Millisecond, stopAfter: 100 * time.Millisecond, want: outcomeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newActuator()
			a.OverrideMode = true
			a.StopAfter = tt.stopAfter
			if tt.toggledAgo > 0 {
				a.LastToggled = t0.Add(-tt.toggledAgo)
			}
			out := &fakeOutput{on: tt.on}

			got := expire(&a, out, t0)
			if got != tt.want {
				t.Fatalf("expire = %v, want %v", got, tt.want)
			}
			if got == outcomeNone {
				return
			}
			if out.on || a.StopAfter != 0 || a.OverrideMode {
				t.Errorf("after expire: on=%v stop=%v override=%v", out.on, a.StopAfter, a.OverrideMode)
			}
			if got == outcomeExpired && !a.LastToggled.IsZero() {
				t.Error("LastToggled should be cleared when already off")
			}
		})
	}
}

func TestTaskHold(t *testing.T) {
	a := device.NewActuator(1, "a", nil, 30, 0)
	if got := taskHold(&a); got != 30*time.Second {
		t.Errorf("default switch hold: taskHold = %v, want pir hold", got)
	}
	b := device.NewActuator(2, "b", nil, 30, 600)
	if got := taskHold(&b); got != 10*time.Minute {
		t.Errorf("custom switch hold: taskHold = %v, want 10m0s", got)
	}
}

func TestPIRActivates(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(a *device.Actuator)
		on       bool
		night    bool
		expected bool
	}{
		{name: "off event", night: true, expected: false},
		{name: "night", on: true, night: true, expected: true},
		{name: "day", on: true, expected: false},
		{name: "all day", on: true, mutate: func(a *device.Actuator) { a.PIRAllDay = true }, expected: true},
		{name: "excluded", on: true, night: true, mutate: func(a *device.Actuator) { a.PIRExclude = true }, expected: false},
		{name: "override by day", on: true, mutate: func(a *device.Actuator) { a.OverrideMode = true }, expected: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newActuator()
			if tt.mutate != nil {
				tt.mutate(&a)
			}
			if got := pirActivates(&a, tt.on, tt.night); got != tt.expected {
				t.Errorf("pirActivates() = %v, want %v", got, tt.expected)
			}
		})
	}
}
