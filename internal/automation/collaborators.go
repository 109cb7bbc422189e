package automation

import "fmt"

// CommandCode identifies a metrics intent.
type CommandCode int

const (
	IncrementRelayCounter CommandCode = iota + 1
	IncrementYeelightCounter
	IncrementSensorCounter
	UpdateRelayStateOn
	UpdateRelayStateOff
	UpdateSensorStateOn
	UpdateSensorStateOff
	UpdateCesspoolLevel
)

var commandCodeNames = map[CommandCode]string{
	IncrementRelayCounter:    "increment_relay_counter",
	IncrementYeelightCounter: "increment_yeelight_counter",
	IncrementSensorCounter:   "increment_sensor_counter",
	UpdateRelayStateOn:       "update_relay_state_on",
	UpdateRelayStateOff:      "update_relay_state_off",
	UpdateSensorStateOn:      "update_sensor_state_on",
	UpdateSensorStateOff:     "update_sensor_state_off",
	UpdateCesspoolLevel:      "update_cesspool_level",
}

func (c CommandCode) String() string {
	if s, ok := commandCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CommandCode(%d)", int(c))
}

// MetricsIntent is a fire-and-forget notification for the metrics
// collaborator. Value is an entity id, or the level for UpdateCesspoolLevel.
type MetricsIntent struct {
	Command CommandCode `json:"command"`
	Value   int         `json:"value"`
}

// MetricsSink receives metrics intents. Submit must not block.
type MetricsSink interface {
	Submit(intent MetricsIntent)
}

// DisplayCommand identifies an LCD update.
type DisplayCommand int

const (
	// SetCesspoolLevel shows the number of occupied probes.
	SetCesspoolLevel DisplayCommand = iota + 1
)

func (c DisplayCommand) String() string {
	if c == SetCesspoolLevel {
		return "set_cesspool_level"
	}
	return fmt.Sprintf("DisplayCommand(%d)", int(c))
}

// DisplayTask is a request for the LCD updater.
type DisplayTask struct {
	Command   DisplayCommand
	IntArg    int
	StringArg *string
}

// Display receives LCD updates. Submit must not block.
type Display interface {
	Submit(task DisplayTask)
}

// BeepMethod selects the alarm panel beep pattern.
type BeepMethod int

const (
	BeepConfirmation BeepMethod = iota + 1
	BeepDoorBell
)

func (m BeepMethod) String() string {
	switch m {
	case BeepConfirmation:
		return "confirmation"
	case BeepDoorBell:
		return "doorbell"
	default:
		return fmt.Sprintf("BeepMethod(%d)", int(m))
	}
}

// AlarmPanel triggers beeps asynchronously.
type AlarmPanel interface {
	Beep(method BeepMethod)
}

// ShellRunner starts a shell command in the background.
type ShellRunner interface {
	Run(command string)
}

// Collaborators bundles the outbound interfaces. Nil members are replaced
// with no-ops.
type Collaborators struct {
	Metrics MetricsSink
	Display Display
	Alarm   AlarmPanel
	Shell   ShellRunner
}

type noopCollaborator struct{}

func (noopCollaborator) Submit(MetricsIntent) {}
func (noopCollaborator) Beep(BeepMethod)      {}
func (noopCollaborator) Run(string)           {}

type noopDisplay struct{}

func (noopDisplay) Submit(DisplayTask) {}

func (c Collaborators) withDefaults() Collaborators {
	if c.Metrics == nil {
		c.Metrics = noopCollaborator{}
	}
	if c.Display == nil {
		c.Display = noopDisplay{}
	}
	if c.Alarm == nil {
		c.Alarm = noopCollaborator{}
	}
	if c.Shell == nil {
		c.Shell = noopCollaborator{}
	}
	return c
}
