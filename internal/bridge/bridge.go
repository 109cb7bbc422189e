package bridge

import (
	"context"
	"fmt"

	"github.com/nerrad567/hard/internal/infrastructure/mqtt"
	"github.com/nerrad567/hard/internal/process"
)

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher is the publishing side of *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber is the subscribing side of *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Config holds topic names and QoS for the bridge.
type Config struct {
	Topics mqtt.Topics
	QoS    byte
}

// outbound publishes JSON documents from the pool.
type outbound struct {
	pub    Publisher
	pool   process.Dispatcher
	qos    byte
	logger Logger
}

func (o outbound) publish(job, topic string, payload []byte) {
	ok := o.pool.Go(job, func(_ context.Context) error {
		if err := o.pub.Publish(topic, payload, o.qos, false); err != nil {
			return fmt.Errorf("publishing to %s: %w", topic, err)
		}
		o.logger.Debug("published", "topic", topic, "payload", string(payload))
		return nil
	})
	if !ok {
		o.logger.Warn("publish dropped, pool busy", "topic", topic)
	}
}
