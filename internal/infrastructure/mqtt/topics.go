package mqtt

import "strings"

// DefaultTopicPrefix is the root of every controller topic.
const DefaultTopicPrefix = "hard"

// Topics builds controller topic names under a common prefix.
//
//	t := mqtt.Topics{}
//	t.Task() // "hard/onewire/task"
type Topics struct {
	// Prefix replaces DefaultTopicPrefix when set.
	Prefix string
}

func (t Topics) join(parts ...string) string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + strings.Join(parts, "/")
}

// Status is the retained online/offline topic.
func (t Topics) Status() string { return t.join("status") }

// Task carries relay tasks from external producers.
func (t Topics) Task() string { return t.join("onewire", "task") }

// RFIDSeen carries tag ids read by the scanner.
func (t Topics) RFIDSeen() string { return t.join("rfid", "seen") }

// RFIDTags carries tag table entries to add or replace.
func (t Topics) RFIDTags() string { return t.join("rfid", "tags") }

// LCDCommand carries commands for the LCD display.
func (t Topics) LCDCommand() string { return t.join("lcd", "command") }

// AlarmBeep carries beep requests for the alarm panel.
func (t Topics) AlarmBeep() string { return t.join("alarm", "beep") }

// All matches every controller topic.
func (t Topics) All() string { return t.join("#") }
