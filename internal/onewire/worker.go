package onewire

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hard/internal/astro"
	"github.com/nerrad567/hard/internal/automation"
	"github.com/nerrad567/hard/internal/device"
	"github.com/nerrad567/hard/internal/infrastructure/config"
)

// Day/night detection.
const (
	DaylightSunDegree = 3.0
	SunCheckInterval  = 60 * time.Second
)

// TagAllNight marks relays forced on at dusk and off at dawn.
const TagAllNight = "all_night"

// Logger defines the logging interface used by the Worker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// LightController switches lamps without blocking.
type LightController interface {
	SetPower(name, host string, on bool)
}

type noopLights struct{}

func (noopLights) SetPower(string, string, bool) {}

type noopMetrics struct{}

func (noopMetrics) Submit(automation.MetricsIntent) {}

// Config tunes the loop.
type Config struct {
	Location     config.LocationConfig
	ReadDelay    time.Duration
	PassInterval time.Duration
}

// Deps are the collaborators of a Worker. Metrics and Lights may be nil.
type Deps struct {
	Registry *device.Registry
	Bus      device.Bus
	Machine  *automation.StateMachine
	Tasks    *automation.TaskQueue
	Metrics  automation.MetricsSink
	Lights   LightController
}

// Status is a point-in-time view of the loop.
type Status struct {
	Night  bool   `json:"night"`
	Passes uint64 `json:"passes"`
}

// Worker is the control loop.
//
// Thread Safety:
//   - Run must be called from a single goroutine.
//   - Night and Status are safe to call concurrently.
type Worker struct {
	registry *device.Registry
	bus      device.Bus
	machine  *automation.StateMachine
	tasks    *automation.TaskQueue
	metrics  automation.MetricsSink
	lights   LightController
	cfg      Config
	logger   Logger

	now      func() time.Time
	sleep    func(time.Duration)
	altitude func(t time.Time, lat, lon float64) float64

	night        atomic.Bool
	passes       atomic.Uint64
	nightChecked time.Time
	pending      automation.TaskList
	failing      map[string]bool
}

// NewWorker creates a Worker.
func NewWorker(deps Deps, cfg Config, logger Logger) *Worker {
	if logger == nil {
		logger = noopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Lights == nil {
		deps.Lights = noopLights{}
	}
	if deps.Tasks == nil {
		deps.Tasks = automation.NewTaskQueue(1)
	}
	return &Worker{
		registry: deps.Registry,
		bus:      deps.Bus,
		machine:  deps.Machine,
		tasks:    deps.Tasks,
		metrics:  deps.Metrics,
		lights:   deps.Lights,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sleep:    time.Sleep,
		altitude: astro.Altitude,
		failing:  make(map[string]bool),
	}
}

// Night reports whether the loop currently considers it night.
func (w *Worker) Night() bool {
	return w.night.Load()
}

// Status returns loop counters.
func (w *Worker) Status() Status {
	return Status{Night: w.night.Load(), Passes: w.passes.Load()}
}

// Run executes passes until ctx is cancelled. Cancellation is checked at the
// top of each pass.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("onewire worker started",
		"location_enabled", w.cfg.Location.Enabled(),
		"pass_interval", w.cfg.PassInterval,
	)
	defer w.registry.Exclusive(func(d *device.Devices) { d.Close() })

	var timer *time.Timer
	if w.cfg.PassInterval > 0 {
		timer = time.NewTimer(w.cfg.PassInterval)
		defer timer.Stop()
	}

	for {
		if ctx.Err() != nil {
			w.logger.Info("onewire worker stopped", "passes", w.passes.Load())
			return nil
		}

		w.pass()

		if timer == nil {
			continue
		}
		timer.Reset(w.cfg.PassInterval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

func (w *Worker) pass() {
	w.passes.Add(1)

	if t, ok := w.tasks.TryReceive(); ok {
		if t, keep := t.ForNight(w.night.Load()); keep {
			w.logger.Debug("task received", "task_id", t.ID, "command", t.Command.String())
			w.pending.Push(t)
		} else {
			w.logger.Debug("night task dropped by day", "task_id", t.ID)
		}
	}

	w.registry.Exclusive(func(d *device.Devices) {
		w.machine.Cesspool().Resize(d.MaxCesspoolLevel)
		w.readSensors(d)
		w.checkNight(d)
		w.machine.ProcessPendingRFID(w.night.Load(), &w.pending)
		w.applyTasks(d)
		w.sweep(d)
	})
}

func (w *Worker) readSensors(d *device.Devices) {
	for _, sb := range d.SensorBoards {
		v, err := sb.ReadState(w.bus)
		if w.cfg.ReadDelay > 0 {
			w.sleep(w.cfg.ReadDelay)
		}
		if err != nil {
			w.boardFailed(sb.Name(), err)
			continue
		}
		w.boardRecovered(sb.Name())

		changed, initial := sb.Observe(v)
		if initial {
			w.initialRead(d, sb, v)
			continue
		}
		if changed == 0 {
			continue
		}

		w.logger.Debug("sensor board changed", "board", sb.Name(), "value", v, "changed", changed)
		for i, bit := range device.SensorBits {
			if changed&(1<<uint(bit)) == 0 {
				continue
			}
			if s := sb.Slots[i]; s != nil {
				w.sensorChanged(d, s, device.SensorOn(v, bit))
			}
		}
		w.flushRelays(d, true)
	}
}

func (w *Worker) initialRead(d *device.Devices, sb *device.SensorBoard, v byte) {
	w.logger.Info("sensor board initial state", "board", sb.Name(), "value", v)
	night := w.night.Load()
	for i, s := range sb.Slots {
		if s == nil {
			continue
		}
		kind, _, ok := d.Kind(s)
		if !ok {
			w.logger.Error("sensor has unknown kind", "sensor", s.Name, "kind_id", s.KindID)
			continue
		}
		w.machine.SensorHook(automation.SensorEvent{
			ID:      s.ID,
			Kind:    kind,
			Name:    s.Name,
			On:      device.SensorOn(v, device.SensorBits[i]),
			Tags:    s.Tags,
			Night:   night,
			Initial: true,
		}, &w.pending)
	}
}

func (w *Worker) sensorChanged(d *device.Devices, s *device.Sensor, on bool) {
	kind, code, ok := d.Kind(s)
	if !ok {
		w.logger.Error("sensor has unknown kind, event dropped", "sensor", s.Name, "kind_id", s.KindID)
		return
	}
	w.metrics.Submit(automation.MetricsIntent{Command: automation.IncrementSensorCounter, Value: s.ID})

	night := w.night.Load()
	w.logger.Info("sensor changed", "sensor", s.Name, "kind", code, "on", on, "night", night)

	ev := automation.SensorEvent{ID: s.ID, Kind: kind, Name: s.Name, On: on, Tags: s.Tags, Night: night}
	if !w.machine.SensorHook(ev, &w.pending) {
		return
	}

	now := w.now()
	for _, rb := range d.RelayBoards {
		for bit, r := range rb.Slots {
			if r == nil || !containsID(s.Relays, r.ID) {
				continue
			}
			blocked := r.FlipFlopBlocked(now)
			if !w.machine.RelayHook(automation.ActuatorEvent{
				ID: r.ID, Kind: kind, On: on, Tags: r.Tags, Night: night, FlipFlopBlocked: blocked,
			}) {
				continue
			}
			res := w.transition(kind, on, night, &r.Actuator, relayOutput{board: rb, bit: bit}, now, blocked)
			w.logTransition("relay", r.Name, rb.Name(), res)
		}
	}

	for _, id := range s.Yeelights {
		y := d.Yeelight(id)
		if y == nil {
			w.logger.Error("sensor references unknown yeelight", "sensor", s.Name, "yeelight_id", id)
			continue
		}
		blocked := y.FlipFlopBlocked(now)
		if !w.machine.YeelightHook(automation.ActuatorEvent{
			ID: y.ID, Kind: kind, On: on, Tags: y.Tags, Night: night, FlipFlopBlocked: blocked,
		}) {
			continue
		}
		res := w.transition(kind, on, night, &y.Actuator, lightOutput{light: y, lights: w.lights, now: now}, now, blocked)
		w.logTransition("yeelight", y.Name, y.Address, res)
		if res.switched() {
			w.metrics.Submit(automation.MetricsIntent{Command: automation.IncrementYeelightCounter, Value: y.ID})
		}
	}
}

func (w *Worker) transition(kind device.Kind, on, night bool, a *device.Actuator, out output, now time.Time, blocked bool) outcome {
	switch kind {
	case device.KindPIRTrigger:
		if !pirActivates(a, on, night) {
			return outcomeNone
		}
		return turnOnProlong(a, out, now, blocked, a.PIRHold, pirWindow(a))
	case device.KindSwitch:
		return toggle(a, out, blocked)
	default:
		w.logger.Warn("no transition for sensor kind", "actuator", a.Name, "kind", kind.String())
		return outcomeNone
	}
}

func (w *Worker) logTransition(what, name, where string, res outcome) {
	switch res {
	case outcomeNone:
	case outcomeBlocked:
		w.logger.Warn("flip-flop protection: request ignored", what, name, "at", where)
	default:
		w.logger.Info(what+" "+res.String(), what, name, "at", where)
	}
}

// flushRelays writes every board with staged changes. With stamp set, each
// changed relay gets its toggle time and a counter increment.
func (w *Worker) flushRelays(d *device.Devices, stamp bool) {
	for _, rb := range d.RelayBoards {
		changed, err := rb.Flush(w.bus)
		if err != nil {
			w.boardFailed(rb.Name(), err)
			continue
		}
		w.boardRecovered(rb.Name())
		if changed == 0 {
			continue
		}
		w.logger.Info("relay board written", "board", rb.Name(), "value", rb.LastValue())
		if !stamp {
			continue
		}
		now := w.now()
		for bit, r := range rb.Slots {
			if r == nil || changed&(1<<uint(bit)) == 0 {
				continue
			}
			r.LastToggled = now
			w.metrics.Submit(automation.MetricsIntent{Command: automation.IncrementRelayCounter, Value: r.ID})
		}
	}
}

func (w *Worker) checkNight(d *device.Devices) {
	loc := w.cfg.Location
	if !loc.Enabled() {
		return
	}
	now := w.now()
	if !w.nightChecked.IsZero() && now.Sub(w.nightChecked) < SunCheckInterval {
		return
	}
	w.nightChecked = now

	alt := w.altitude(now, loc.Latitude, loc.Longitude)
	night := alt < DaylightSunDegree
	if w.night.Swap(night) == night {
		return
	}

	if night {
		w.logger.Info("night mode", "sun_altitude", alt)
	} else {
		w.logger.Info("day mode", "sun_altitude", alt)
	}

	for _, rb := range d.RelayBoards {
		for bit, r := range rb.Slots {
			if r == nil || !r.HasTag(TagAllNight) {
				continue
			}
			rb.SetOn(bit, night)
			r.StopAfter = 0
			r.LastToggled = now
			w.metrics.Submit(automation.MetricsIntent{Command: automation.IncrementRelayCounter, Value: r.ID})
			w.logger.Info("all-night relay switched", "relay", r.Name, "on", night)
		}
	}
	w.flushRelays(d, false)
}

func (w *Worker) applyTasks(d *device.Devices) {
	if len(w.pending) == 0 {
		return
	}
	night := w.night.Load()
	now := w.now()

	for _, rb := range d.RelayBoards {
		for bit, r := range rb.Slots {
			if r == nil {
				continue
			}
			for _, t := range w.pending {
				if !t.Matches(r.ID, r.Tags) {
					continue
				}
				t, keep := t.ForNight(night)
				if !keep {
					w.logger.Debug("night task dropped by day", "task_id", t.ID, "relay", r.Name)
					continue
				}

				out := relayOutput{board: rb, bit: bit}
				blocked := r.FlipFlopBlocked(now)
				var res outcome
				switch t.Command {
				case automation.TurnOnProlong:
					hold := t.Duration
					if hold == 0 {
						hold = taskHold(&r.Actuator)
					}
					res = turnOnProlong(&r.Actuator, out, now, blocked, hold, PIRProlong)
				case automation.TurnOff:
					res = turnOff(&r.Actuator, out, blocked)
				}
				w.logger.Debug("task applied", "task_id", t.ID, "command", t.Command.String(), "relay", r.Name, "result", res.String())
				w.logTransition("relay", r.Name, rb.Name(), res)
			}
		}
	}

	w.flushRelays(d, true)
	w.pending.Clear()
}

func (w *Worker) sweep(d *device.Devices) {
	now := w.now()
	for _, rb := range d.RelayBoards {
		for bit, r := range rb.Slots {
			if r == nil {
				continue
			}
			switch expire(&r.Actuator, relayOutput{board: rb, bit: bit}, now) {
			case outcomeOff:
				w.logger.Info("relay auto off", "relay", r.Name, "at", rb.Name())
			case outcomeExpired:
				w.logger.Info("relay override ended", "relay", r.Name)
			}
		}
	}
	w.flushRelays(d, true)

	for _, y := range d.Yeelights {
		switch expire(&y.Actuator, lightOutput{light: y, lights: w.lights, now: now}, now) {
		case outcomeOff:
			w.logger.Info("yeelight auto off", "yeelight", y.Name)
			w.metrics.Submit(automation.MetricsIntent{Command: automation.IncrementYeelightCounter, Value: y.ID})
		case outcomeExpired:
			w.logger.Info("yeelight override ended", "yeelight", y.Name)
		}
	}
}

// boardFailed logs the first failure of a board at error level and repeats
// at debug level until it recovers.
func (w *Worker) boardFailed(name string, err error) {
	if errors.Is(err, device.ErrInvalidValue) {
		w.logger.Warn("sensor board value discarded", "board", name, "error", err)
		return
	}
	if w.failing[name] {
		w.logger.Debug("board still failing", "board", name, "error", err)
		return
	}
	w.failing[name] = true
	w.logger.Error("board i/o failed", "board", name, "error", err)
}

func (w *Worker) boardRecovered(name string) {
	if w.failing[name] {
		delete(w.failing, name)
		w.logger.Info("board recovered", "board", name)
	}
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
