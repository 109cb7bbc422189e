package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ErrEmptyCommand is returned for a blank command line.
var ErrEmptyCommand = errors.New("process: empty command")

// Dispatcher is the part of Pool used by Shell.
type Dispatcher interface {
	Go(name string, job Job) bool
}

// Shell runs command lines of the form "program arg1 arg2..." in the
// background.
type Shell struct {
	pool    Dispatcher
	timeout time.Duration
	logger  Logger
}

// NewShell creates a Shell dispatching onto pool. A zero timeout means the
// command only stops when the pool closes.
func NewShell(pool Dispatcher, timeout time.Duration, logger Logger) *Shell {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Shell{pool: pool, timeout: timeout, logger: logger}
}

// Run schedules command and returns immediately.
func (s *Shell) Run(command string) {
	s.pool.Go("shell", func(ctx context.Context) error {
		_, err := s.Exec(ctx, command)
		return err
	})
}

// Result is the captured outcome of a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Exec runs command synchronously and logs what it printed.
func (s *Shell) Exec(ctx context.Context, command string) (Result, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return Result{}, ErrEmptyCommand
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("running shell command", "command", command)

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...) //nolint:gosec // commands come from the static device configuration
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if res.Stdout != "" {
		s.logger.Debug("process output", "command", fields[0], "stream", "stdout", "output", res.Stdout)
	}
	if res.Stderr != "" {
		s.logger.Debug("process output", "command", fields[0], "stream", "stderr", "output", res.Stderr)
	}

	if err != nil {
		return res, fmt.Errorf("running %s (exit %d): %w", fields[0], res.ExitCode, err)
	}
	s.logger.Info("shell command finished", "command", fields[0], "duration", res.Duration)
	return res, nil
}
