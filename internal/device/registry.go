package device

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/hard/internal/infrastructure/config"
)

// CesspoolTagPrefix marks a level probe; the suffix is its 1-based index.
const CesspoolTagPrefix = "cesspool:"

// Devices is the arena of every board and peripheral. It is only touched
// through a Registry.
type Devices struct {
	Kinds        map[int]string
	SensorBoards []*SensorBoard
	RelayBoards  []*RelayBoard
	Yeelights    []*Yeelight

	// MaxCesspoolLevel is the highest probe index found in sensor tags.
	MaxCesspoolLevel int
}

// Kind resolves the sensor's kind id to its code and Kind.
func (d *Devices) Kind(s *Sensor) (Kind, string, bool) {
	code, ok := d.Kinds[s.KindID]
	if !ok {
		return KindOther, "", false
	}
	return ParseKind(code), code, true
}

// Yeelight returns the yeelight with the given id, or nil.
func (d *Devices) Yeelight(id int) *Yeelight {
	for _, y := range d.Yeelights {
		if y.ID == id {
			return y
		}
	}
	return nil
}

// Close releases every open board resource.
func (d *Devices) Close() {
	for _, b := range d.SensorBoards {
		_ = b.Close()
	}
	for _, b := range d.RelayBoards {
		_ = b.Close()
	}
}

// Build creates the device arena from the static configuration. Relays with
// an initial state are staged on and put in override mode.
func Build(cfg config.OneWireConfig) (*Devices, error) {
	d := &Devices{Kinds: make(map[int]string, len(cfg.SensorKinds))}
	for id, code := range cfg.SensorKinds {
		d.Kinds[id] = code
	}

	relayBoards := make(map[string]*RelayBoard)
	for _, rc := range cfg.Relays {
		family := familyOr(rc.Family, config.DefaultRelayFamily)
		addr, err := config.ParseAddress(rc.Address)
		if err != nil {
			return nil, fmt.Errorf("relay %d: %w", rc.ID, err)
		}
		key := SlaveName(family, addr)
		board, ok := relayBoards[key]
		if !ok {
			board = NewRelayBoard(family, addr)
			relayBoards[key] = board
			d.RelayBoards = append(d.RelayBoards, board)
		}

		r := &Relay{Actuator: NewActuator(rc.ID, rc.Name, rc.Tags, rc.PIRHoldSecs, rc.SwitchHoldSecs), Bit: rc.Bit}
		r.PIRExclude = rc.PIRExclude
		r.PIRAllDay = rc.PIRAllDay
		if err := board.Attach(r); err != nil {
			return nil, fmt.Errorf("relay %d: %w", rc.ID, err)
		}
		if rc.InitialState {
			board.SetOn(r.Bit, true)
			r.OverrideMode = true
		}
	}

	for _, yc := range cfg.Yeelights {
		y := &Yeelight{Actuator: NewActuator(yc.ID, yc.Name, yc.Tags, yc.PIRHoldSecs, yc.SwitchHoldSecs), Address: yc.IPAddress}
		y.PIRExclude = yc.PIRExclude
		y.PIRAllDay = yc.PIRAllDay
		d.Yeelights = append(d.Yeelights, y)
	}

	sensorBoards := make(map[string]*SensorBoard)
	for _, sc := range cfg.Sensors {
		family := familyOr(sc.Family, config.DefaultSensorFamily)
		addr, err := config.ParseAddress(sc.Address)
		if err != nil {
			return nil, fmt.Errorf("sensor %d: %w", sc.ID, err)
		}
		key := SlaveName(family, addr)
		board, ok := sensorBoards[key]
		if !ok {
			board = NewSensorBoard(family, addr)
			sensorBoards[key] = board
			d.SensorBoards = append(d.SensorBoards, board)
		}

		s := &Sensor{
			ID:        sc.ID,
			KindID:    sc.Kind,
			Name:      sc.Name,
			Tags:      sc.Tags,
			Relays:    sc.Relays,
			Yeelights: sc.Yeelights,
		}
		if err := board.Attach(sc.Bit, s); err != nil {
			return nil, fmt.Errorf("sensor %d: %w", sc.ID, err)
		}
		if n := CesspoolIndex(s.Tags); n > d.MaxCesspoolLevel {
			d.MaxCesspoolLevel = n
		}
	}

	return d, nil
}

// CesspoolIndex returns the highest cesspool probe index in tags, or 0.
func CesspoolIndex(tags []string) int {
	highest := 0
	for _, t := range tags {
		if !strings.HasPrefix(t, CesspoolTagPrefix) {
			continue
		}
		field := strings.SplitN(strings.TrimPrefix(t, CesspoolTagPrefix), ":", 2)[0]
		if n, err := strconv.Atoi(field); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func familyOr(v, def int) byte {
	if v == 0 {
		return byte(def)
	}
	return byte(v)
}

// Registry guards the device arena with a single reader-writer lock.
//
// Thread Safety:
//   - Exclusive holds the write lock for the whole callback.
//   - Snapshot holds the read lock and copies out plain values.
type Registry struct {
	mu      sync.RWMutex
	devices *Devices
}

// NewRegistry wraps d.
func NewRegistry(d *Devices) *Registry {
	return &Registry{devices: d}
}

// Exclusive runs fn with sole access to the arena.
func (r *Registry) Exclusive(fn func(d *Devices)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.devices)
}

// ActuatorState is the snapshot view of a relay or yeelight.
type ActuatorState struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	On           bool       `json:"on"`
	OverrideMode bool       `json:"override_mode"`
	LastToggled  *time.Time `json:"last_toggled,omitempty"`
	StopAfter    float64    `json:"stop_after_secs,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
}

// SensorState is the snapshot view of a sensor.
type SensorState struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Board string   `json:"board"`
	Bit   int      `json:"bit"`
	On    *bool    `json:"on,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Snapshot is a consistent copy of the arena's state.
type Snapshot struct {
	Sensors   []SensorState   `json:"sensors"`
	Relays    []ActuatorState `json:"relays"`
	Yeelights []ActuatorState `json:"yeelights"`
}

// Snapshot copies the current device state under the read lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Sensors:   []SensorState{},
		Relays:    []ActuatorState{},
		Yeelights: []ActuatorState{},
	}

	for _, b := range r.devices.SensorBoards {
		last, seen := b.LastValue()
		for i, s := range b.Slots {
			if s == nil {
				continue
			}
			st := SensorState{ID: s.ID, Name: s.Name, Board: b.Name(), Bit: SensorBits[i], Tags: s.Tags}
			if seen {
				on := SensorOn(last, SensorBits[i])
				st.On = &on
			}
			snap.Sensors = append(snap.Sensors, st)
		}
	}

	for _, b := range r.devices.RelayBoards {
		for bit, rl := range b.Slots {
			if rl == nil {
				continue
			}
			snap.Relays = append(snap.Relays, actuatorState(&rl.Actuator, b.IsOn(bit)))
		}
	}

	for _, y := range r.devices.Yeelights {
		snap.Yeelights = append(snap.Yeelights, actuatorState(&y.Actuator, y.PoweredOn))
	}

	sort.Slice(snap.Sensors, func(i, j int) bool { return snap.Sensors[i].ID < snap.Sensors[j].ID })
	sort.Slice(snap.Relays, func(i, j int) bool { return snap.Relays[i].ID < snap.Relays[j].ID })

	return snap
}

func actuatorState(a *Actuator, on bool) ActuatorState {
	st := ActuatorState{
		ID:           a.ID,
		Name:         a.Name,
		On:           on,
		OverrideMode: a.OverrideMode,
		Tags:         a.Tags,
	}
	if !a.LastToggled.IsZero() {
		t := a.LastToggled
		st.LastToggled = &t
	}
	if a.StopAfter > 0 {
		st.StopAfter = a.StopAfter.Seconds()
	}
	return st
}
