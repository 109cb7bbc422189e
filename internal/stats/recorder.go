package stats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hard/internal/automation"
	"github.com/nerrad567/hard/internal/infrastructure/influxdb"
)

// DefaultQueueSize is the intent buffer used when Config.QueueSize is zero.
const DefaultQueueSize = 256

// ChannelMetrics is the websocket channel carrying intents.
const ChannelMetrics = "metrics"

// persistTimeout bounds each repository call made by the consumer.
const persistTimeout = 5 * time.Second

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PointWriter receives time series points. *influxdb.Client implements it.
type PointWriter interface {
	WriteState(measurement string, id int, on bool, at time.Time)
	WriteCesspool(percent int, at time.Time)
	WriteCounter(kind string, id int, count int64, at time.Time)
}

// Broadcaster pushes events to live clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Event is the payload broadcast for each intent.
type Event struct {
	Command string    `json:"command"`
	Value   int       `json:"value"`
	At      time.Time `json:"at"`
}

// Deps are the Recorder's outputs. Any of them may be nil.
type Deps struct {
	Repository Repository
	Points     PointWriter
	Hub        Broadcaster
}

// Recorder implements automation.MetricsSink.
//
// Thread Safety:
//   - Submit may be called from any goroutine and never blocks.
//   - Run must be called once.
type Recorder struct {
	intents chan stamped
	repo    Repository
	points  PointWriter
	hub     Broadcaster
	logger  Logger
	now     func() time.Time

	dropped   atomic.Uint64
	processed atomic.Uint64
}

type stamped struct {
	intent automation.MetricsIntent
	at     time.Time
}

// NewRecorder creates a Recorder with a buffer of queueSize intents.
func NewRecorder(deps Deps, queueSize int, logger Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		intents: make(chan stamped, queueSize),
		repo:    deps.Repository,
		points:  deps.Points,
		hub:     deps.Hub,
		logger:  logger,
		now:     time.Now,
	}
}

// Submit queues an intent. When the buffer is full the intent is dropped.
func (r *Recorder) Submit(intent automation.MetricsIntent) {
	select {
	case r.intents <- stamped{intent: intent, at: r.now()}:
	default:
		r.dropped.Add(1)
		r.logger.Warn("metrics queue full, intent dropped", "command", intent.Command.String(), "value", intent.Value)
	}
}

// Dropped returns how many intents were discarded.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Processed returns how many intents were consumed.
func (r *Recorder) Processed() uint64 { return r.processed.Load() }

// Run consumes intents until ctx is cancelled, then drains what is left.
// Writes are bounded by their own timeout, not by ctx.
func (r *Recorder) Run(ctx context.Context) error {
	persist := context.WithoutCancel(ctx)
	for {
		select {
		case s := <-r.intents:
			r.handle(persist, s)
		case <-ctx.Done():
			for {
				select {
				case s := <-r.intents:
					r.handle(persist, s)
				default:
					return nil
				}
			}
		}
	}
}

// Counters lists persisted counters. An empty kind returns all of them.
func (r *Recorder) Counters(ctx context.Context, kind string) ([]Counter, error) {
	if r.repo == nil {
		return []Counter{}, nil
	}
	return r.repo.List(ctx, kind)
}

// Cesspool returns the persisted cesspool level, or nil.
func (r *Recorder) Cesspool(ctx context.Context) (*CesspoolLevel, error) {
	if r.repo == nil {
		return nil, nil
	}
	return r.repo.Cesspool(ctx)
}

func (r *Recorder) handle(ctx context.Context, s stamped) {
	defer r.processed.Add(1)
	in := s.intent

	switch in.Command {
	case automation.IncrementRelayCounter:
		r.increment(ctx, KindRelay, in.Value, s.at)
	case automation.IncrementYeelightCounter:
		r.increment(ctx, KindYeelight, in.Value, s.at)
	case automation.IncrementSensorCounter:
		r.increment(ctx, KindSensor, in.Value, s.at)
	case automation.UpdateRelayStateOn, automation.UpdateRelayStateOff:
		r.writeState(influxdb.MeasurementRelay, in.Value, in.Command == automation.UpdateRelayStateOn, s.at)
	case automation.UpdateSensorStateOn, automation.UpdateSensorStateOff:
		r.writeState(influxdb.MeasurementSensor, in.Value, in.Command == automation.UpdateSensorStateOn, s.at)
	case automation.UpdateCesspoolLevel:
		r.cesspool(ctx, in.Value, s.at)
	default:
		r.logger.Warn("unknown metrics intent", "command", int(in.Command))
		return
	}

	if r.hub != nil {
		r.hub.Broadcast(ChannelMetrics, Event{Command: in.Command.String(), Value: in.Value, At: s.at})
	}
}

func (r *Recorder) increment(ctx context.Context, kind string, id int, at time.Time) {
	if r.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	count, err := r.repo.Increment(ctx, kind, id, at)
	if err != nil {
		r.logger.Error("counter update failed", "kind", kind, "id", id, "error", err)
		return
	}
	r.logger.Debug("counter incremented", "kind", kind, "id", id, "count", count)
	if r.points != nil {
		r.points.WriteCounter(kind, id, count, at)
	}
}

func (r *Recorder) writeState(measurement string, id int, on bool, at time.Time) {
	if r.points != nil {
		r.points.WriteState(measurement, id, on, at)
	}
}

func (r *Recorder) cesspool(ctx context.Context, percent int, at time.Time) {
	if r.points != nil {
		r.points.WriteCesspool(percent, at)
	}
	if r.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := r.repo.SetCesspool(ctx, percent, at); err != nil {
		r.logger.Error("cesspool level update failed", "percent", percent, "error", err)
	}
}
