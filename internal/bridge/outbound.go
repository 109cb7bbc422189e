package bridge

import (
	"encoding/json"

	"github.com/nerrad567/hard/internal/automation"
	"github.com/nerrad567/hard/internal/process"
)

// displayMessage is published on the LCD command topic.
type displayMessage struct {
	Command   string  `json:"command"`
	IntArg    int     `json:"int_arg"`
	StringArg *string `json:"string_arg"`
}

// Display sends LCD updates. It implements automation.Display.
type Display struct {
	out   outbound
	topic string
}

// NewDisplay creates a Display publishing through pub from pool.
func NewDisplay(pub Publisher, pool process.Dispatcher, cfg Config, logger Logger) *Display {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Display{
		out:   outbound{pub: pub, pool: pool, qos: cfg.QoS, logger: logger},
		topic: cfg.Topics.LCDCommand(),
	}
}

// Submit implements automation.Display.
func (d *Display) Submit(task automation.DisplayTask) {
	payload, err := json.Marshal(displayMessage{
		Command:   task.Command.String(),
		IntArg:    task.IntArg,
		StringArg: task.StringArg,
	})
	if err != nil {
		d.out.logger.Error("encoding display task", "error", err)
		return
	}
	d.out.publish("lcd", d.topic, payload)
}

// beepMessage is published on the alarm beep topic.
type beepMessage struct {
	Method string `json:"method"`
}

// AlarmPanel requests beeps. It implements automation.AlarmPanel.
type AlarmPanel struct {
	out   outbound
	topic string
}

// NewAlarmPanel creates an AlarmPanel publishing through pub from pool.
func NewAlarmPanel(pub Publisher, pool process.Dispatcher, cfg Config, logger Logger) *AlarmPanel {
	if logger == nil {
		logger = noopLogger{}
	}
	return &AlarmPanel{
		out:   outbound{pub: pub, pool: pool, qos: cfg.QoS, logger: logger},
		topic: cfg.Topics.AlarmBeep(),
	}
}

// Beep implements automation.AlarmPanel.
func (a *AlarmPanel) Beep(method automation.BeepMethod) {
	payload, _ := json.Marshal(beepMessage{Method: method.String()}) //nolint:errcheck // plain struct
	a.out.publish("alarm", a.topic, payload)
}
