// Package yeelight switches Yeelight lamps over their LAN control protocol.
//
// Each request is a single JSON line over TCP; the lamp answers with a line
// carrying the same id. The control loop never waits on a lamp: Controller
// hands each command to a worker pool.
package yeelight

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// Protocol defaults.
const (
	DefaultPort       = 55443
	DefaultTimeout    = 1500 * time.Millisecond
	DefaultAttempts   = 3
	TransitionEffect  = "smooth"
	TransitionMillis  = 500
	MethodSetPower    = "set_power"
	maxResponseLength = 4096
)

var (
	// ErrBadResponse is returned when the lamp answers with something other than ok.
	ErrBadResponse = errors.New("yeelight: unexpected response")

	// ErrIDMismatch is returned when a response carries another request's id.
	ErrIDMismatch = errors.New("yeelight: response id mismatch")
)

// Logger defines the logging interface for the yeelight package.
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

// Config configures a Client.
type Config struct {
	Port     int
	Timeout  time.Duration
	Attempts int
}

type request struct {
	ID     uint32 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type response struct {
	ID     *uint32         `json:"id"`
	Result []string        `json:"result"`
	Error  json.RawMessage `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
}

// Client sends commands to lamps.
type Client struct {
	cfg    Config
	dialer net.Dialer
	nextID atomic.Uint32
	logger Logger
}

// NewClient creates a Client, filling zero config fields with defaults.
func NewClient(cfg Config, logger Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = DefaultAttempts
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{cfg: cfg, dialer: net.Dialer{Timeout: cfg.Timeout}, logger: logger}
}

// SetPower turns the lamp at host on or off, retrying on failure.
func (c *Client) SetPower(ctx context.Context, host string, on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(c.cfg.Port))

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := request{
			ID:     c.nextID.Add(1),
			Method: MethodSetPower,
			Params: []any{state, TransitionEffect, TransitionMillis},
		}
		lastErr = c.send(ctx, addr, req)
		if lastErr == nil {
			c.logger.Debug("yeelight command ok", "address", addr, "power", state, "attempt", attempt)
			return nil
		}
		c.logger.Warn("yeelight command failed", "address", addr, "power", state, "attempt", attempt, "error", lastErr)
	}
	return fmt.Errorf("yeelight %s: giving up after %d attempts: %w", addr, c.cfg.Attempts, lastErr)
}

func (c *Client) send(ctx context.Context, addr string, req request) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return fmt.Errorf("setting deadline: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	if _, err := conn.Write(append(payload, '\r', '\n')); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	reader := bufio.NewReaderSize(conn, maxResponseLength)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("decoding response %q: %w", line, err)
		}
		if resp.ID == nil && resp.Method != "" {
			// Property notification pushed by the lamp; keep reading.
			continue
		}
		return checkResponse(req.ID, resp)
	}
}

func checkResponse(id uint32, resp response) error {
	if resp.ID == nil || *resp.ID != id {
		return ErrIDMismatch
	}
	if len(resp.Result) != 1 || resp.Result[0] != "ok" {
		if len(resp.Error) > 0 {
			return fmt.Errorf("%w: %s", ErrBadResponse, resp.Error)
		}
		return fmt.Errorf("%w: %v", ErrBadResponse, resp.Result)
	}
	return nil
}
