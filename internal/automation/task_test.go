package automation

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTaskQueue_SubmitAndReceive(t *testing.T) {
	q := NewTaskQueue(2)

	if err := q.Submit(ForRelay(TurnOnProlong, 1)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := q.Submit(NewTask(TurnOff, nil, "garden", 0)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := q.Submit(ForRelay(TurnOff, 2)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Submit() on full queue error = %v, want ErrQueueFull", err)
	}

	first, ok := q.TryReceive()
	if !ok || first.Command != TurnOnProlong || first.ID == "" {
		t.Fatalf("TryReceive() = %+v, %v", first, ok)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
	q.TryReceive()
	if _, ok := q.TryReceive(); ok {
		t.Error("TryReceive() on empty queue should return false")
	}
}

func TestTaskQueue_RejectsInvalid(t *testing.T) {
	q := NewTaskQueue(1)
	if err := q.Submit(Task{Command: TurnOff}); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("Submit() untargeted error = %v, want ErrInvalidTask", err)
	}
	if err := q.Submit(Task{Command: 99, TagGroup: "x"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Submit() bad command error = %v, want ErrUnknownCommand", err)
	}
}

func TestTask_Matches(t *testing.T) {
	id := 4
	tests := []struct {
		name string
		task Task
		id   int
		tags []string
		want bool
	}{
		{"by id", Task{RelayID: &id}, 4, nil, true},
		{"other id", Task{RelayID: &id}, 5, []string{"garden"}, false},
		{"id wins over group", Task{RelayID: &id, TagGroup: "garden"}, 5, []string{"garden"}, false},
		{"by group", Task{TagGroup: "garden"}, 9, []string{"porch", "garden"}, true},
		{"group miss", Task{TagGroup: "garden"}, 9, []string{"porch"}, false},
		{"no target", Task{}, 9, []string{""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Matches(tt.id, tt.tags); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTask_ForNight(t *testing.T) {
	night := NewTask(TurnOnProlongNight, nil, TagEntryLight, time.Minute)

	if _, ok := night.ForNight(false); ok {
		t.Error("night task should be dropped by day")
	}
	converted, ok := night.ForNight(true)
	if !ok || converted.Command != TurnOnProlong || converted.Duration != time.Minute {
		t.Errorf("ForNight(true) = %+v, %v", converted, ok)
	}

	off := ForRelay(TurnOff, 1)
	if got, ok := off.ForNight(false); !ok || got.Command != TurnOff {
		t.Error("other commands pass through unchanged")
	}
}

func TestTaskCommand_JSON(t *testing.T) {
	var payload struct {
		Command TaskCommand `json:"command"`
	}
	if err := json.Unmarshal([]byte(`{"command":"turn_on_prolong_night"}`), &payload); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if payload.Command != TurnOnProlongNight {
		t.Errorf("Command = %v", payload.Command)
	}
	if err := json.Unmarshal([]byte(`{"command":"explode"}`), &payload); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Unmarshal() bad command error = %v", err)
	}
	out, _ := json.Marshal(payload)
	if string(out) != `{"command":"turn_on_prolong_night"}` {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestTagTable(t *testing.T) {
	table := NewTagTable(nil)
	table.Put(RFIDTag{ID: 7, Name: "card"})
	if tag, ok := table.Lookup(7); !ok || tag.Name != "card" {
		t.Errorf("Lookup(7) = %+v, %v", tag, ok)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d", table.Len())
	}
}

func TestDecodeTask(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
		check   func(t *testing.T, task Task)
	}{
		{
			name:    "relay with duration",
			payload: `{"command":"turn_on_prolong","id_relay":4,"duration_secs":90}`,
			check: func(t *testing.T, task Task) {
				if task.RelayID == nil || *task.RelayID != 4 || task.Duration != 90*time.Second || task.ID == "" {
					t.Errorf("task = %+v", task)
				}
			},
		},
		{
			name:    "tag group",
			payload: `{"command":"turn_off","tag_group":"garden"}`,
			check: func(t *testing.T, task Task) {
				if task.RelayID != nil || task.TagGroup != "garden" || task.Command != TurnOff {
					t.Errorf("task = %+v", task)
				}
			},
		},
		{name: "no target", payload: `{"command":"turn_off"}`, wantErr: ErrInvalidTask},
		{name: "unknown command", payload: `{"command":"dance","id_relay":1}`, wantErr: ErrInvalidTask},
		{name: "negative duration", payload: `{"command":"turn_off","id_relay":1,"duration_secs":-1}`, wantErr: ErrInvalidTask},
		{name: "missing command", payload: `{"id_relay":1}`, wantErr: ErrUnknownCommand},
		{name: "not json", payload: `nope`, wantErr: ErrInvalidTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := DecodeTask([]byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("DecodeTask() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTask() error = %v", err)
			}
			tt.check(t, task)
		})
	}
}
