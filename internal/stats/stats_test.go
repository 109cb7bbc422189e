package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/hard/internal/automation"
	"github.com/nerrad567/hard/internal/infrastructure/config"
	"github.com/nerrad567/hard/internal/infrastructure/database"
	"github.com/nerrad567/hard/internal/infrastructure/influxdb"
	"github.com/nerrad567/hard/migrations"
)

func newRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "stats.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

type point struct {
	measurement string
	id          int
	on          bool
	value       int64
}

type fakePoints struct{ points []point }

func (f *fakePoints) WriteState(m string, id int, on bool, _ time.Time) {
	f.points = append(f.points, point{measurement: m, id: id, on: on})
}

func (f *fakePoints) WriteCesspool(pct int, _ time.Time) {
	f.points = append(f.points, point{measurement: influxdb.MeasurementCesspool, value: int64(pct)})
}

func (f *fakePoints) WriteCounter(kind string, id int, count int64, _ time.Time) {
	f.points = append(f.points, point{measurement: influxdb.MeasurementToggles + ":" + kind, id: id, value: count})
}

type fakeHub struct{ events []Event }

func (f *fakeHub) Broadcast(channel string, payload any) {
	if channel == ChannelMetrics {
		f.events = append(f.events, payload.(Event))
	}
}

func TestRepositoryIncrementAndList(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := repo.Increment(ctx, KindRelay, 10, at); err != nil {
			t.Fatal(err)
		}
	}
	n, err := repo.Increment(ctx, KindSensor, 1, at.Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("Increment() = %d, %v", n, err)
	}

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("List() = %+v", all)
	}
	if all[0].Kind != KindRelay || all[0].Count != 3 || !all[0].UpdatedAt.Equal(at) {
		t.Errorf("relay counter = %+v", all[0])
	}

	sensors, _ := repo.List(ctx, KindSensor)
	if len(sensors) != 1 || sensors[0].ID != 1 {
		t.Errorf("List(sensor) = %+v", sensors)
	}
	none, _ := repo.List(ctx, KindYeelight)
	if none == nil || len(none) != 0 {
		t.Errorf("List(yeelight) = %#v, want empty slice", none)
	}
}

func TestRepositoryCesspool(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	lvl, err := repo.Cesspool(ctx)
	if err != nil || lvl != nil {
		t.Fatalf("Cesspool() before set = %v, %v", lvl, err)
	}
	_ = repo.SetCesspool(ctx, 50, time.Now())
	_ = repo.SetCesspool(ctx, 75, time.Now())
	lvl, err = repo.Cesspool(ctx)
	if err != nil || lvl == nil || lvl.Percent != 75 {
		t.Errorf("Cesspool() = %+v, %v", lvl, err)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	r := NewRecorder(Deps{}, 1, nil)
	r.Submit(automation.MetricsIntent{Command: automation.IncrementRelayCounter, Value: 1})
	r.Submit(automation.MetricsIntent{Command: automation.IncrementRelayCounter, Value: 2})
	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}
}

func TestRecorderRun(t *testing.T) {
	repo := newRepository(t)
	points := &fakePoints{}
	hub := &fakeHub{}
	r := NewRecorder(Deps{Repository: repo, Points: points, Hub: hub}, 16, nil)

	intents := []automation.MetricsIntent{
		{Command: automation.IncrementRelayCounter, Value: 10},
		{Command: automation.IncrementRelayCounter, Value: 10},
		{Command: automation.IncrementYeelightCounter, Value: 30},
		{Command: automation.UpdateRelayStateOn, Value: 10},
		{Command: automation.UpdateSensorStateOff, Value: 2},
		{Command: automation.UpdateCesspoolLevel, Value: 75},
		{Command: automation.CommandCode(99), Value: 1},
	}
	for _, in := range intents {
		r.Submit(in)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.Processed() != uint64(len(intents)) {
		t.Errorf("Processed() = %d, want %d", r.Processed(), len(intents))
	}

	counters, err := r.Counters(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(counters) != 2 || counters[0].Kind != KindRelay || counters[0].Count != 2 || counters[1].Kind != KindYeelight {
		t.Errorf("Counters() = %+v", counters)
	}
	lvl, _ := r.Cesspool(context.Background())
	if lvl == nil || lvl.Percent != 75 {
		t.Errorf("Cesspool() = %+v", lvl)
	}

	want := []point{
		{measurement: "toggles:relay", id: 10, value: 1},
		{measurement: "toggles:relay", id: 10, value: 2},
		{measurement: "toggles:yeelight", id: 30, value: 1},
		{measurement: influxdb.MeasurementRelay, id: 10, on: true},
		{measurement: influxdb.MeasurementSensor, id: 2, on: false},
		{measurement: influxdb.MeasurementCesspool, value: 75},
	}
	if len(points.points) != len(want) {
		t.Fatalf("points = %+v", points.points)
	}
	for i := range want {
		if points.points[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, points.points[i], want[i])
		}
	}

	if len(hub.events) != 6 {
		t.Fatalf("broadcast %d events, want 6 (unknown intent skipped)", len(hub.events))
	}
	if hub.events[5].Command != "update_cesspool_level" || hub.events[5].Value != 75 {
		t.Errorf("last event = %+v", hub.events[5])
	}
}

func TestRecorderWithoutOutputs(t *testing.T) {
	r := NewRecorder(Deps{}, 0, nil)
	r.Submit(automation.MetricsIntent{Command: automation.IncrementSensorCounter, Value: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = r.Run(ctx)

	counters, err := r.Counters(context.Background(), "")
	if err != nil || len(counters) != 0 {
		t.Errorf("Counters() = %v, %v", counters, err)
	}
}
