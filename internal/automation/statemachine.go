package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/hard/internal/cesspool"
	"github.com/nerrad567/hard/internal/device"
)

// Tag names and prefixes understood by the rule engine.
const (
	TagBedroomEnable  = "bedroom_enable"
	TagBedroomDisable = "bedroom_disable"
	TagWicketGate     = "wicket_gate"
	TagInvertState    = "invert_state"
	TagAllChanges     = "all_changes"
	TagMonitor        = "monitor_in_influxdb"
	TagCommand        = "cmd:"
	TagDoorbell       = "doorbell"
	TagNightExclude   = "night_exclude"
	TagEntryLight     = "entry_light"
)

// EntryLightProlong is how long entry lights stay on after a gate event.
const EntryLightProlong = 600 * time.Second

// SensorEvent is one detected sensor transition, or the first reading of a
// sensor when Initial is set.
type SensorEvent struct {
	ID      int
	Kind    device.Kind
	Name    string
	On      bool
	Tags    []string
	Night   bool
	Initial bool
}

// ActuatorEvent is a sensor transition routed to one relay or yeelight.
type ActuatorEvent struct {
	ID              int
	Kind            device.Kind
	On              bool
	Tags            []string
	Night           bool
	FlipFlopBlocked bool
}

type wicketGate struct {
	armed   bool
	started time.Time
	delay   time.Duration
	relays  []int
}

// StateMachine is the process-wide automation context.
//
// Thread Safety:
//   - Not safe for concurrent use. The control loop is the only caller and
//     invokes it while holding the device registry lock.
type StateMachine struct {
	bedroomMode bool
	gate        wicketGate
	cesspool    *cesspool.Level

	tags    *TagTable
	pending *PendingTags
	out     Collaborators
	logger  Logger
	now     func() time.Time
}

// NewStateMachine creates a StateMachine.
//
// Parameters:
//   - out: outbound collaborators; nil members become no-ops
//   - tags: known RFID tags (may be nil)
//   - pending: queue of scanned RFID ids (may be nil)
//   - logger: Logger instance (may be nil)
func NewStateMachine(out Collaborators, tags *TagTable, pending *PendingTags, logger Logger) *StateMachine {
	if logger == nil {
		logger = noopLogger{}
	}
	if tags == nil {
		tags = NewTagTable(nil)
	}
	if pending == nil {
		pending = &PendingTags{}
	}
	return &StateMachine{
		cesspool: cesspool.New(0),
		tags:     tags,
		pending:  pending,
		out:      out.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (m *StateMachine) SetClock(now func() time.Time) {
	m.now = now
}

// BedroomMode reports whether bedroom mode is active.
func (m *StateMachine) BedroomMode() bool {
	return m.bedroomMode
}

// WicketGateArmed reports whether the gate is waiting for confirmation.
func (m *StateMachine) WicketGateArmed() bool {
	return m.gate.armed
}

// Cesspool returns the level aggregator.
func (m *StateMachine) Cesspool() *cesspool.Level {
	return m.cesspool
}

// SensorHook evaluates the rules for a sensor event and returns whether the
// event should go on to drive the sensor's relays and yeelights. Tasks
// produced by the rules are pushed onto tasks.
func (m *StateMachine) SensorHook(ev SensorEvent, tasks *TaskList) bool {
	if !ev.Initial && ev.Kind == device.KindPIRTrigger && ev.On && ev.Night {
		for _, tag := range ev.Tags {
			switch tag {
			case TagBedroomEnable:
				if m.bedroomMode {
					return false
				}
				m.logger.Info("bedroom mode enabled", "sensor", ev.Name)
				m.bedroomMode = true
				return true
			case TagBedroomDisable:
				if m.bedroomMode {
					m.logger.Info("bedroom mode disabled", "sensor", ev.Name)
					m.bedroomMode = false
				}
			}
		}
	}

	if !ev.Initial {
		if tag, ok := firstWithPrefix(ev.Tags, TagWicketGate); ok {
			on := ev.On
			if strings.Contains(tag, TagInvertState) {
				on = !on
			}
			if on && m.gate.armed {
				m.confirmWicketGate(ev, tasks)
				return false
			}
		}
	}

	for _, tag := range ev.Tags {
		m.processSensorTag(ev, tag)
	}

	return true
}

// confirmWicketGate consumes the armed gate. Targets are only unlocked when
// the confirmation arrives inside the armed window.
func (m *StateMachine) confirmWicketGate(ev SensorEvent, tasks *TaskList) {
	gate := m.gate
	m.gate = wicketGate{}

	elapsed := m.now().Sub(gate.started)
	if elapsed >= gate.delay {
		m.logger.Debug("wicket gate confirmation too late", "sensor", ev.Name, "elapsed", elapsed, "delay", gate.delay)
		return
	}

	m.logger.Info("opening wicket gate", "sensor", ev.Name, "relays", gate.relays)
	for _, id := range gate.relays {
		tasks.Push(ForRelay(TurnOnProlong, id))
	}
	m.out.Alarm.Beep(BeepConfirmation)
	if ev.Night {
		m.queueEntryLight(tasks)
	}
}

func (m *StateMachine) processSensorTag(ev SensorEvent, tag string) {
	on := ev.On
	if strings.Contains(tag, TagInvertState) {
		on = !on
	}

	if strings.HasPrefix(tag, TagMonitor) {
		cmd := UpdateSensorStateOff
		if on {
			cmd = UpdateSensorStateOn
		}
		m.out.Metrics.Submit(MetricsIntent{Command: cmd, Value: ev.ID})
	}

	if !ev.Initial && !on && !strings.Contains(tag, TagAllChanges) {
		return
	}

	if !ev.Initial {
		switch {
		case strings.HasPrefix(tag, TagCommand):
			if cmd := expandCommand(tag, ev.Name, on); cmd != "" {
				m.out.Shell.Run(cmd)
			} else {
				m.logger.Error("empty cmd tag", "sensor", ev.Name)
			}
		case strings.HasPrefix(tag, TagDoorbell):
			m.out.Alarm.Beep(BeepDoorBell)
		}
	}

	if strings.HasPrefix(tag, device.CesspoolTagPrefix) {
		m.updateCesspool(tag, on)
	}
}

func (m *StateMachine) updateCesspool(tag string, on bool) {
	field := strings.SplitN(strings.TrimPrefix(tag, device.CesspoolTagPrefix), ":", 2)[0]
	n, err := strconv.Atoi(field)
	if err != nil {
		m.logger.Error("invalid cesspool tag", "tag", tag, "error", err)
		return
	}
	if err := m.cesspool.Set(n-1, on); err != nil {
		m.logger.Error("cesspool update dropped", "tag", tag, "error", err)
		return
	}
	if !m.cesspool.Complete() {
		return
	}

	pct := m.cesspool.Percentage()
	m.logger.Info("cesspool level", "probes", m.cesspool.String(), "percent", pct)
	m.out.Display.Submit(DisplayTask{Command: SetCesspoolLevel, IntArg: m.cesspool.OccupiedCount()})
	m.out.Metrics.Submit(MetricsIntent{Command: UpdateCesspoolLevel, Value: pct})
}

// RelayHook decides whether a sensor event may drive a relay. Relays tagged
// night_exclude ignore PIR activity at night.
func (m *StateMachine) RelayHook(ev ActuatorEvent) bool {
	if ev.Kind == device.KindPIRTrigger && ev.On && ev.Night && device.HasTag(ev.Tags, TagNightExclude) {
		return false
	}
	for _, tag := range ev.Tags {
		if strings.HasPrefix(tag, TagMonitor) {
			cmd := UpdateRelayStateOff
			if ev.On {
				cmd = UpdateRelayStateOn
			}
			m.out.Metrics.Submit(MetricsIntent{Command: cmd, Value: ev.ID})
		}
	}
	return true
}

// YeelightHook decides whether a sensor event may drive a yeelight.
func (m *StateMachine) YeelightHook(ev ActuatorEvent) bool {
	return true
}

// ProcessPendingRFID handles tag ids queued by the scanner since the last pass.
func (m *StateMachine) ProcessPendingRFID(night bool, tasks *TaskList) {
	for _, id := range m.pending.Drain() {
		tag, ok := m.tags.Lookup(id)
		if !ok {
			m.logger.Warn("unknown rfid tag", "id_tag", id)
			continue
		}
		m.logger.Info("matched rfid tag", "id_tag", id, "name", tag.Name)

		if len(tag.Tags) == 0 {
			for _, rid := range tag.Relays {
				tasks.Push(ForRelay(TurnOnProlong, rid))
			}
			continue
		}

		for _, t := range tag.Tags {
			if !strings.HasPrefix(t, TagWicketGate) {
				continue
			}
			delay, err := parseWicketDelay(t)
			if err != nil {
				m.logger.Error("wicket gate directive ignored", "id_tag", id, "tag", t, "error", err)
				continue
			}
			m.gate = wicketGate{
				armed:   true,
				started: m.now(),
				delay:   delay,
				relays:  append([]int(nil), tag.Relays...),
			}
			m.logger.Info("wicket gate armed", "id_tag", id, "delay", delay)
			m.out.Alarm.Beep(BeepConfirmation)
			if night {
				m.queueEntryLight(tasks)
			}
		}
	}
}

func (m *StateMachine) queueEntryLight(tasks *TaskList) {
	m.logger.Info("turning on entry lights")
	tasks.Push(NewTask(TurnOnProlongNight, nil, TagEntryLight, EntryLightProlong))
}

func parseWicketDelay(tag string) (time.Duration, error) {
	parts := strings.Split(tag, ":")
	if len(parts) < 2 || parts[1] == "" {
		return 0, fmt.Errorf("%w: missing delay", ErrBadDelay)
	}
	secs, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadDelay, parts[1])
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// expandCommand turns a "cmd:<script>" tag into a command line.
func expandCommand(tag, name string, on bool) string {
	script := strings.TrimSpace(strings.SplitN(tag, ":", 3)[1])
	if script == "" {
		return ""
	}
	state := "off"
	if on {
		state = "on"
	}
	return strings.NewReplacer("%name%", name, "%colon%", ":", "%state%", state).Replace(script)
}

func firstWithPrefix(tags []string, prefix string) (string, bool) {
	for _, t := range tags {
		if strings.HasPrefix(t, prefix) {
			return t, true
		}
	}
	return "", false
}
