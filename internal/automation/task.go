package automation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskCommand is what a Task asks the control loop to do.
type TaskCommand int

const (
	// TurnOnProlong switches a relay on, or extends its timer if already on.
	TurnOnProlong TaskCommand = iota + 1
	// TurnOnProlongNight behaves like TurnOnProlong at night and is dropped by day.
	TurnOnProlongNight
	// TurnOff switches a relay off.
	TurnOff
)

var taskCommandNames = map[TaskCommand]string{
	TurnOnProlong:      "turn_on_prolong",
	TurnOnProlongNight: "turn_on_prolong_night",
	TurnOff:            "turn_off",
}

func (c TaskCommand) String() string {
	if s, ok := taskCommandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("TaskCommand(%d)", int(c))
}

// ParseTaskCommand converts a wire name into a TaskCommand.
func ParseTaskCommand(s string) (TaskCommand, error) {
	for c, name := range taskCommandNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// MarshalJSON encodes the command by name.
func (c TaskCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a command name.
func (c *TaskCommand) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTaskCommand(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Task targets one relay by id or every relay carrying TagGroup. A zero
// Duration means the relay's own hold time.
type Task struct {
	ID       string
	Command  TaskCommand
	RelayID  *int
	TagGroup string
	Duration time.Duration
}

// NewTask builds a task with a fresh id.
func NewTask(cmd TaskCommand, relayID *int, tagGroup string, d time.Duration) Task {
	return Task{
		ID:       uuid.NewString(),
		Command:  cmd,
		RelayID:  relayID,
		TagGroup: tagGroup,
		Duration: d,
	}
}

// TaskRequest is the JSON form of a Task accepted from MQTT and HTTP.
type TaskRequest struct {
	Command      TaskCommand `json:"command"`
	RelayID      *int        `json:"id_relay,omitempty"`
	TagGroup     string      `json:"tag_group,omitempty"`
	DurationSecs float64     `json:"duration_secs,omitempty"`
}

// Task converts the request into a validated Task with a fresh id.
func (r TaskRequest) Task() (Task, error) {
	if r.DurationSecs < 0 {
		return Task{}, fmt.Errorf("%w: negative duration", ErrInvalidTask)
	}
	t := NewTask(r.Command, r.RelayID, r.TagGroup, time.Duration(r.DurationSecs*float64(time.Second)))
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// DecodeTask parses a JSON task request.
func DecodeTask(data []byte) (Task, error) {
	var req TaskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return Task{}, fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	return req.Task()
}

// ForRelay returns a task addressed to a single relay.
func ForRelay(cmd TaskCommand, id int) Task {
	return NewTask(cmd, &id, "", 0)
}

// Validate checks that the task is addressable.
func (t Task) Validate() error {
	if _, ok := taskCommandNames[t.Command]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCommand, int(t.Command))
	}
	if t.RelayID == nil && t.TagGroup == "" {
		return ErrInvalidTask
	}
	return nil
}

// Matches reports whether the task applies to a relay with the given id and tags.
// An explicit relay id takes precedence over the tag group.
func (t Task) Matches(id int, tags []string) bool {
	if t.RelayID != nil {
		return *t.RelayID == id
	}
	if t.TagGroup == "" {
		return false
	}
	for _, tag := range tags {
		if tag == t.TagGroup {
			return true
		}
	}
	return false
}

// ForNight resolves TurnOnProlongNight against the current mode. It returns
// false if the task should be dropped.
func (t Task) ForNight(night bool) (Task, bool) {
	if t.Command != TurnOnProlongNight {
		return t, true
	}
	if !night {
		return t, false
	}
	t.Command = TurnOnProlong
	return t, true
}

// TaskList is the set of tasks gathered during one control-loop pass.
type TaskList []Task

// Push appends a task.
func (l *TaskList) Push(t Task) {
	*l = append(*l, t)
}

// Clear empties the list, keeping its capacity.
func (l *TaskList) Clear() {
	*l = (*l)[:0]
}

// TaskQueue is the bounded inbound channel for externally submitted tasks.
// Producers never block; the control loop drains at most one per pass.
type TaskQueue struct {
	ch chan Task
}

// NewTaskQueue creates a queue holding up to size tasks.
func NewTaskQueue(size int) *TaskQueue {
	if size < 1 {
		size = 1
	}
	return &TaskQueue{ch: make(chan Task, size)}
}

// Submit validates and enqueues t, returning ErrQueueFull instead of blocking.
func (q *TaskQueue) Submit(t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	select {
	case q.ch <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// TryReceive returns the next task without blocking.
func (q *TaskQueue) TryReceive() (Task, bool) {
	select {
	case t := <-q.ch:
		return t, true
	default:
		return Task{}, false
	}
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	return len(q.ch)
}
