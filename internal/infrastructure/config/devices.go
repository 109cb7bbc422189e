package config

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultW1Root is where the kernel w1 driver exposes slave devices.
const DefaultW1Root = "/sys/bus/w1/devices"

// Default family codes for the boards in use.
const (
	DefaultSensorFamily = 0x3a // DS2413 dual channel addressable switch
	DefaultRelayFamily  = 0x29 // DS2408 8 channel addressable switch
)

// OneWireConfig describes the 1-Wire control loop and its device tables.
type OneWireConfig struct {
	RootPath         string        `yaml:"root_path"`
	ReadDelay        time.Duration `yaml:"read_delay"`
	PassInterval     time.Duration `yaml:"pass_interval"`
	TaskQueueSize    int           `yaml:"task_queue_size"`
	Workers          int           `yaml:"workers"`
	YeelightPort     int           `yaml:"yeelight_port"`
	YeelightTimeout  time.Duration `yaml:"yeelight_timeout"`
	YeelightAttempts int           `yaml:"yeelight_attempts"`
	ShellTimeout     time.Duration `yaml:"shell_timeout"`

	// SensorKinds maps a kind id to its code, e.g. 1: PIR_Trigger.
	SensorKinds map[int]string   `yaml:"sensor_kinds"`
	Sensors     []SensorConfig   `yaml:"sensors"`
	Relays      []RelayConfig    `yaml:"relays"`
	Yeelights   []YeelightConfig `yaml:"yeelights"`
}

// SensorConfig is one input line on a sensor board.
type SensorConfig struct {
	ID        int      `yaml:"id"`
	Kind      int      `yaml:"kind"`
	Name      string   `yaml:"name"`
	Family    int      `yaml:"family"`
	Address   string   `yaml:"address"`
	Bit       int      `yaml:"bit"`
	Tags      []string `yaml:"tags"`
	Relays    []int    `yaml:"relays"`
	Yeelights []int    `yaml:"yeelights"`
}

// RelayConfig is one output line on a relay board.
type RelayConfig struct {
	ID             int      `yaml:"id"`
	Name           string   `yaml:"name"`
	Family         int      `yaml:"family"`
	Address        string   `yaml:"address"`
	Bit            int      `yaml:"bit"`
	Tags           []string `yaml:"tags"`
	PIRExclude     bool     `yaml:"pir_exclude"`
	PIRHoldSecs    int      `yaml:"pir_hold_secs"`
	SwitchHoldSecs int      `yaml:"switch_hold_secs"`
	PIRAllDay      bool     `yaml:"pir_all_day"`
	InitialState   bool     `yaml:"initial_state"`
}

// YeelightConfig is a network-controlled light.
type YeelightConfig struct {
	ID             int      `yaml:"id"`
	Name           string   `yaml:"name"`
	IPAddress      string   `yaml:"ip_address"`
	Tags           []string `yaml:"tags"`
	PIRExclude     bool     `yaml:"pir_exclude"`
	PIRHoldSecs    int      `yaml:"pir_hold_secs"`
	SwitchHoldSecs int      `yaml:"switch_hold_secs"`
	PIRAllDay      bool     `yaml:"pir_all_day"`
}

// RFIDConfig holds the known RFID tags.
type RFIDConfig struct {
	Tags []RFIDTagConfig `yaml:"tags"`
}

// RFIDTagConfig is a single known tag.
type RFIDTagConfig struct {
	ID     uint32   `yaml:"id_tag"`
	Name   string   `yaml:"name"`
	Tags   []string `yaml:"tags"`
	Relays []int    `yaml:"relays"`
}

// ParseAddress converts a 1-Wire slave address as written in sysfs
// (twelve hex digits, optionally 0x-prefixed) into its numeric form.
func ParseAddress(s string) (uint64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if s == "" || len(s) > 12 {
		return 0, fmt.Errorf("invalid 1-wire address %q", s)
	}
	addr, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid 1-wire address %q: %w", s, err)
	}
	return addr, nil
}

func (o *OneWireConfig) relayIDs() map[int]bool {
	ids := make(map[int]bool, len(o.Relays))
	for _, r := range o.Relays {
		ids[r.ID] = true
	}
	return ids
}

func (o *OneWireConfig) validate() []string {
	var errs []string

	if o.RootPath == "" {
		errs = append(errs, "onewire.root_path is required")
	}
	if o.TaskQueueSize < 1 {
		errs = append(errs, "onewire.task_queue_size must be at least 1")
	}
	if o.Workers < 1 {
		errs = append(errs, "onewire.workers must be at least 1")
	}
	if o.YeelightAttempts < 1 {
		errs = append(errs, "onewire.yeelight_attempts must be at least 1")
	}

	relays := make(map[int]bool, len(o.Relays))
	for _, r := range o.Relays {
		if relays[r.ID] {
			errs = append(errs, fmt.Sprintf("relay %d: duplicate id", r.ID))
		}
		relays[r.ID] = true
		if r.Bit < 0 || r.Bit > 7 {
			errs = append(errs, fmt.Sprintf("relay %d: bit must be between 0 and 7", r.ID))
		}
		if _, err := ParseAddress(r.Address); err != nil {
			errs = append(errs, fmt.Sprintf("relay %d: %v", r.ID, err))
		}
		if r.PIRHoldSecs < 0 || r.SwitchHoldSecs < 0 {
			errs = append(errs, fmt.Sprintf("relay %d: hold times must not be negative", r.ID))
		}
	}

	lights := make(map[int]bool, len(o.Yeelights))
	for _, y := range o.Yeelights {
		if lights[y.ID] {
			errs = append(errs, fmt.Sprintf("yeelight %d: duplicate id", y.ID))
		}
		lights[y.ID] = true
		if y.IPAddress == "" {
			errs = append(errs, fmt.Sprintf("yeelight %d: ip_address is required", y.ID))
		}
	}

	sensors := make(map[int]bool, len(o.Sensors))
	for _, s := range o.Sensors {
		if sensors[s.ID] {
			errs = append(errs, fmt.Sprintf("sensor %d: duplicate id", s.ID))
		}
		sensors[s.ID] = true
		if s.Bit != 0 && s.Bit != 2 {
			errs = append(errs, fmt.Sprintf("sensor %d: bit must be 0 or 2", s.ID))
		}
		if _, err := ParseAddress(s.Address); err != nil {
			errs = append(errs, fmt.Sprintf("sensor %d: %v", s.ID, err))
		}
		if _, ok := o.SensorKinds[s.Kind]; !ok {
			errs = append(errs, fmt.Sprintf("sensor %d: unknown kind %d", s.ID, s.Kind))
		}
		for _, id := range s.Relays {
			if !relays[id] {
				errs = append(errs, fmt.Sprintf("sensor %d: unknown relay %d", s.ID, id))
			}
		}
		for _, id := range s.Yeelights {
			if !lights[id] {
				errs = append(errs, fmt.Sprintf("sensor %d: unknown yeelight %d", s.ID, id))
			}
		}
	}

	return errs
}

func (r *RFIDConfig) validate(relays map[int]bool) []string {
	var errs []string
	seen := make(map[uint32]bool, len(r.Tags))
	for _, t := range r.Tags {
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("rfid tag %d: duplicate id", t.ID))
		}
		seen[t.ID] = true
		for _, id := range t.Relays {
			if !relays[id] {
				errs = append(errs, fmt.Sprintf("rfid tag %d: unknown relay %d", t.ID, id))
			}
		}
	}
	return errs
}
