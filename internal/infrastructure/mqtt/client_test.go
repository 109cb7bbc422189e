package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nerrad567/hard/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	host := os.Getenv("HARD_TEST_MQTT_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	return config.MQTTConfig{
		Enabled:   true,
		Broker:    config.MQTTBrokerConfig{Host: host, Port: 1883, ClientID: "hard-test"},
		QoS:       1,
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 5},
	}
}

// connectOrSkip connects to the test broker or skips the test.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	c, err := Connect(cfg, nil)
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", Topics{}.Status(), "hard/status"},
		{"task", Topics{}.Task(), "hard/onewire/task"},
		{"rfid", Topics{}.RFIDSeen(), "hard/rfid/seen"},
		{"rfid tags", Topics{}.RFIDTags(), "hard/rfid/tags"},
		{"lcd", Topics{}.LCDCommand(), "hard/lcd/command"},
		{"alarm", Topics{}.AlarmBeep(), "hard/alarm/beep"},
		{"all", Topics{}.All(), "hard/#"},
		{"prefix", Topics{Prefix: "garage"}.Task(), "garage/onewire/task"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Host = "broker.local"
	cfg.Broker.TLS = true
	cfg.Auth = config.MQTTAuthConfig{Username: "hard", Password: "secret"}

	opts := buildClientOptions(cfg, Topics{})
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.local:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "hard-test" || opts.Username != "hard" || opts.Password != "secret" {
		t.Errorf("identity = %q %q %q", opts.ClientID, opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set")
	}
	if !opts.AutoReconnect || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect = %v %v", opts.AutoReconnect, opts.MaxReconnectInterval)
	}
	if !opts.WillEnabled || opts.WillTopic != "hard/status" || !opts.WillRetained {
		t.Errorf("will = %v %q %v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var will statusPayload
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if will.Status != "offline" || will.Reason != reasonUnexpected {
		t.Errorf("will payload = %+v", will)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	got := string(buildStatusPayload("online", "hard", "", at))
	want := `{"status":"online","client_id":"hard","timestamp":"2026-10-14T12:00:00Z"}`
	if got != want {
		t.Errorf("payload = %s, want %s", got, want)
	}
}

func TestConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Host = "127.0.0.1"
	cfg.Broker.Port = 1

	_, err := Connect(cfg, nil)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestValidationWithoutConnection(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription), logger: noopLogger{}}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 0, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("t", nil, 3, false), ErrInvalidQoS},
		{"publish too large", c.Publish("t", make([]byte, maxPayloadSize+1), 0, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("t", []byte("x"), 0, false), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 0, noop), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("t", 3, noop), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("t", 0, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("t", 0, noop), ErrNotConnected},
		{"health", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}
	if c.SubscriptionCount() != 0 {
		t.Error("failed subscriptions must not be remembered")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	c := connectOrSkip(t, "hard-test-roundtrip")
	topic := "hard-test/roundtrip"

	got := make(chan string, 1)
	err := c.Subscribe(topic, 1, func(_ string, payload []byte) error {
		got <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if c.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d", c.SubscriptionCount())
	}

	if err := c.Publish(topic, []byte("ping"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case p := <-got:
		if p != "ping" {
			t.Errorf("payload = %q", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	c := connectOrSkip(t, "hard-test-panic")
	topic := "hard-test/panic"

	done := make(chan struct{}, 2)
	err := c.Subscribe(topic, 1, func(_ string, payload []byte) error {
		done <- struct{}{}
		if string(payload) == "boom" {
			panic("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Publish(topic, []byte("boom"), 1, false)
	_ = c.Publish(topic, []byte("ok"), 1, false)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("handler stopped after panic")
		}
	}
}
