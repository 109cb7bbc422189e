package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/hard/internal/automation"
)

// TaskSubscriber feeds relay tasks from MQTT into the task queue.
type TaskSubscriber struct {
	queue  *automation.TaskQueue
	cfg    Config
	logger Logger
}

// NewTaskSubscriber creates a TaskSubscriber.
func NewTaskSubscriber(queue *automation.TaskQueue, cfg Config, logger Logger) *TaskSubscriber {
	if logger == nil {
		logger = noopLogger{}
	}
	return &TaskSubscriber{queue: queue, cfg: cfg, logger: logger}
}

// Subscribe registers the handler on the task topic.
func (s *TaskSubscriber) Subscribe(sub Subscriber) error {
	topic := s.cfg.Topics.Task()
	if err := sub.Subscribe(topic, s.cfg.QoS, s.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	s.logger.Info("subscribed to task topic", "topic", topic)
	return nil
}

func (s *TaskSubscriber) handle(topic string, payload []byte) error {
	task, err := automation.DecodeTask(payload)
	if err != nil {
		return fmt.Errorf("decoding task: %w", err)
	}
	if err := s.queue.Submit(task); err != nil {
		if errors.Is(err, automation.ErrQueueFull) {
			s.logger.Warn("task queue full, task dropped", "task_id", task.ID, "command", task.Command.String())
			return nil
		}
		return err
	}
	s.logger.Debug("task queued", "task_id", task.ID, "command", task.Command.String(), "topic", topic)
	return nil
}

// rfidMessage is the payload published by the tag scanner.
type rfidMessage struct {
	IDTag *uint32 `json:"id_tag"`
}

// RFIDSubscriber feeds scanned tag ids into the pending queue.
type RFIDSubscriber struct {
	pending *automation.PendingTags
	cfg     Config
	logger  Logger
}

// NewRFIDSubscriber creates an RFIDSubscriber.
func NewRFIDSubscriber(pending *automation.PendingTags, cfg Config, logger Logger) *RFIDSubscriber {
	if logger == nil {
		logger = noopLogger{}
	}
	return &RFIDSubscriber{pending: pending, cfg: cfg, logger: logger}
}

// Subscribe registers the handler on the RFID topic.
func (s *RFIDSubscriber) Subscribe(sub Subscriber) error {
	topic := s.cfg.Topics.RFIDSeen()
	if err := sub.Subscribe(topic, s.cfg.QoS, s.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	s.logger.Info("subscribed to rfid topic", "topic", topic)
	return nil
}

func (s *RFIDSubscriber) handle(_ string, payload []byte) error {
	var msg rfidMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding rfid message: %w", err)
	}
	if msg.IDTag == nil {
		return errors.New("rfid message without id_tag")
	}
	s.pending.Push(*msg.IDTag)
	s.logger.Debug("rfid tag seen", "id_tag", *msg.IDTag)
	return nil
}

// tagTableMessage adds or replaces one entry of the RFID tag table.
type tagTableMessage struct {
	IDTag  *uint32  `json:"id_tag"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags"`
	Relays []int    `json:"relays"`
}

// TagTableSubscriber applies tag table updates published by the enrolment
// tool, so new keyfobs work without a restart.
type TagTableSubscriber struct {
	table  *automation.TagTable
	cfg    Config
	logger Logger
}

// NewTagTableSubscriber creates a TagTableSubscriber.
func NewTagTableSubscriber(table *automation.TagTable, cfg Config, logger Logger) *TagTableSubscriber {
	if logger == nil {
		logger = noopLogger{}
	}
	return &TagTableSubscriber{table: table, cfg: cfg, logger: logger}
}

// Subscribe registers the handler on the tag table topic.
func (s *TagTableSubscriber) Subscribe(sub Subscriber) error {
	topic := s.cfg.Topics.RFIDTags()
	if err := sub.Subscribe(topic, s.cfg.QoS, s.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	s.logger.Info("subscribed to rfid tag table topic", "topic", topic, "tags", s.table.Len())
	return nil
}

func (s *TagTableSubscriber) handle(_ string, payload []byte) error {
	var msg tagTableMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding rfid tag: %w", err)
	}
	if msg.IDTag == nil {
		return errors.New("rfid tag without id_tag")
	}
	if len(msg.Tags) == 0 && len(msg.Relays) == 0 {
		return fmt.Errorf("rfid tag %d: needs tags or relays", *msg.IDTag)
	}
	s.table.Put(automation.RFIDTag{ID: *msg.IDTag, Name: msg.Name, Tags: msg.Tags, Relays: msg.Relays})
	s.logger.Info("rfid tag stored", "id_tag", *msg.IDTag, "name", msg.Name, "tags", s.table.Len())
	return nil
}
