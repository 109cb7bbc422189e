package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hard/internal/infrastructure/config"
)

// fakeServer answers the ping and write endpoints of the v2 API.
type fakeServer struct {
	*httptest.Server
	mu     sync.Mutex
	lines  []string
	status int
	wrote  chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{status: http.StatusNoContent, wrote: make(chan struct{}, 16)}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
			status := f.status
			f.mu.Unlock()
			w.WriteHeader(status)
			f.wrote <- struct{}{}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "hard",
		BatchSize:     100,
		FlushInterval: 60,
	}
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false
	if _, err := Connect(context.Background(), cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(context.Background(), testConfig(url))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWritePoints(t *testing.T) {
	srv := newFakeServer(t)
	c, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	at := time.Unix(1700000000, 0)
	c.WriteState(MeasurementRelay, 10, true, at)
	c.WriteCesspool(75, at)
	c.WriteCounter("relay", 10, 42, at)
	c.Flush()

	deadline := time.After(5 * time.Second)
	for len(srv.received()) < 3 {
		select {
		case <-srv.wrote:
		case <-deadline:
			t.Fatalf("received %q before timeout", srv.received())
		}
	}

	lines := srv.received()
	want := []string{
		"relay_state,id=10 on=true 1700000000000000000",
		"cesspool level=75i 1700000000000000000",
		"toggles,id=10,kind=relay count=42i 1700000000000000000",
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWriteAfterClose(t *testing.T) {
	srv := newFakeServer(t)
	c, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	c.WriteCesspool(10, time.Now())
	c.Flush()
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if !errors.Is(c.HealthCheck(context.Background()), ErrNotConnected) {
		t.Error("HealthCheck() after Close should return ErrNotConnected")
	}
	if len(srv.received()) != 0 {
		t.Errorf("received %q after Close", srv.received())
	}
}
