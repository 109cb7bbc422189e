package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/hard/internal/automation"
	"github.com/nerrad567/hard/internal/infrastructure/mqtt"
	"github.com/nerrad567/hard/internal/process"
)

type message struct {
	topic   string
	payload string
}

type fakeBroker struct {
	mu       sync.Mutex
	sent     []message
	handlers map[string]mqtt.MessageHandler
	fail     error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.sent = append(b.sent, message{topic, string(payload)})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	if b.fail != nil {
		return b.fail
	}
	b.handlers[topic] = h
	return nil
}

func (b *fakeBroker) deliver(t *testing.T, topic, payload string) error {
	t.Helper()
	h, ok := b.handlers[topic]
	if !ok {
		t.Fatalf("no handler for %s", topic)
	}
	return h(topic, []byte(payload))
}

// inlinePool runs jobs synchronously.
type inlinePool struct {
	busy bool
	errs []error
}

func (p *inlinePool) Go(_ string, job process.Job) bool {
	if p.busy {
		return false
	}
	if err := job(context.Background()); err != nil {
		p.errs = append(p.errs, err)
	}
	return true
}

func TestDisplaySubmit(t *testing.T) {
	broker := newFakeBroker()
	d := NewDisplay(broker, &inlinePool{}, Config{}, nil)
	d.Submit(automation.DisplayTask{Command: automation.SetCesspoolLevel, IntArg: 3})

	want := message{"hard/lcd/command", `{"command":"set_cesspool_level","int_arg":3,"string_arg":null}`}
	if len(broker.sent) != 1 || broker.sent[0] != want {
		t.Errorf("sent = %+v, want %+v", broker.sent, want)
	}
}

func TestAlarmPanelBeep(t *testing.T) {
	broker := newFakeBroker()
	a := NewAlarmPanel(broker, &inlinePool{}, Config{Topics: mqtt.Topics{Prefix: "house"}}, nil)
	a.Beep(automation.BeepDoorBell)
	a.Beep(automation.BeepConfirmation)

	want := []message{
		{"house/alarm/beep", `{"method":"doorbell"}`},
		{"house/alarm/beep", `{"method":"confirmation"}`},
	}
	if len(broker.sent) != 2 || broker.sent[0] != want[0] || broker.sent[1] != want[1] {
		t.Errorf("sent = %+v", broker.sent)
	}
}

func TestPublishFailures(t *testing.T) {
	broker := newFakeBroker()
	busy := &inlinePool{busy: true}
	NewAlarmPanel(broker, busy, Config{}, nil).Beep(automation.BeepDoorBell)
	if len(broker.sent) != 0 {
		t.Error("busy pool must drop the message")
	}

	broker.fail = mqtt.ErrNotConnected
	pool := &inlinePool{}
	NewAlarmPanel(broker, pool, Config{}, nil).Beep(automation.BeepDoorBell)
	if len(pool.errs) != 1 || !errors.Is(pool.errs[0], mqtt.ErrNotConnected) {
		t.Errorf("job errors = %v", pool.errs)
	}
}

func TestTaskSubscriber(t *testing.T) {
	broker := newFakeBroker()
	queue := automation.NewTaskQueue(1)
	s := NewTaskSubscriber(queue, Config{QoS: 1}, nil)
	if err := s.Subscribe(broker); err != nil {
		t.Fatal(err)
	}
	topic := mqtt.Topics{}.Task()

	if err := broker.deliver(t, topic, `{"command":"turn_on_prolong","id_relay":7,"duration_secs":30}`); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	// Queue is full now: dropped without an error.
	if err := broker.deliver(t, topic, `{"command":"turn_off","tag_group":"garden"}`); err != nil {
		t.Errorf("full queue handler error = %v", err)
	}
	if err := broker.deliver(t, topic, `{"command":"turn_off"}`); !errors.Is(err, automation.ErrInvalidTask) {
		t.Errorf("invalid task error = %v", err)
	}

	task, ok := queue.TryReceive()
	if !ok || task.Command != automation.TurnOnProlong || *task.RelayID != 7 {
		t.Fatalf("queued task = %+v, %v", task, ok)
	}
	if queue.Len() != 0 {
		t.Error("dropped task must not be queued")
	}
}

func TestRFIDSubscriber(t *testing.T) {
	broker := newFakeBroker()
	pending := &automation.PendingTags{}
	s := NewRFIDSubscriber(pending, Config{}, nil)
	if err := s.Subscribe(broker); err != nil {
		t.Fatal(err)
	}
	topic := mqtt.Topics{}.RFIDSeen()

	if err := broker.deliver(t, topic, `{"id_tag":123456}`); err != nil {
		t.Fatal(err)
	}
	if err := broker.deliver(t, topic, `{}`); err == nil {
		t.Error("missing id_tag should be an error")
	}
	if err := broker.deliver(t, topic, `{"id_tag":-1}`); err == nil {
		t.Error("negative id_tag should be an error")
	}

	ids := pending.Drain()
	if len(ids) != 1 || ids[0] != 123456 {
		t.Errorf("pending = %v", ids)
	}
}

func TestTagTableSubscriber(t *testing.T) {
	broker := newFakeBroker()
	table := automation.NewTagTable(nil)
	s := NewTagTableSubscriber(table, Config{}, nil)
	if err := s.Subscribe(broker); err != nil {
		t.Fatal(err)
	}
	topic := mqtt.Topics{}.RFIDTags()

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "new tag", payload: `{"id_tag":42,"name":"keyfob","tags":["wicket_gate:10"],"relays":[3]}`},
		{name: "replace tag", payload: `{"id_tag":42,"name":"spare fob","relays":[3,4]}`},
		{name: "second tag", payload: `{"id_tag":7,"name":"card","relays":[1]}`},
		{name: "missing id", payload: `{"name":"x","relays":[1]}`, wantErr: true},
		{name: "no tags or relays", payload: `{"id_tag":9}`, wantErr: true},
		{name: "malformed", payload: `{"id_tag":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := broker.deliver(t, topic, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("deliver() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if got := table.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	tag, ok := table.Lookup(42)
	if !ok {
		t.Fatal("Lookup(42) not found")
	}
	if tag.Name != "spare fob" || len(tag.Tags) != 0 || len(tag.Relays) != 2 {
		t.Errorf("tag 42 = %+v, want replaced entry", tag)
	}
	if _, ok := table.Lookup(9); ok {
		t.Error("rejected tag 9 was stored")
	}
}

func TestSubscribeError(t *testing.T) {
	broker := newFakeBroker()
	broker.fail = mqtt.ErrNotConnected
	err := NewRFIDSubscriber(&automation.PendingTags{}, Config{}, nil).Subscribe(broker)
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Subscribe() error = %v", err)
	}
}
