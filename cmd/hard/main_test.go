package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/hard/internal/api"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hard.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/hard.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_ValidationError(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ""
logging:
  level: error
  format: text
  output: stdout
`)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

func TestRun_MQTTUnreachable(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
database:
  path: "`+filepath.Join(dir, "hard.db")+`"
mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: 1
    client_id: "hard-test"
logging:
  level: error
  format: text
  output: stdout
onewire:
  root_path: "`+dir+`"
`)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "hard.db")
	path := writeConfig(t, `
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
logging:
  level: error
  format: text
  output: stdout
onewire:
  root_path: "`+dir+`"
  pass_interval: 5ms
`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"default", "", "", defaultConfigPath},
		{"env", "", "/etc/hard/env.yaml", "/etc/hard/env.yaml"},
		{"flag wins", "/etc/hard/flag.yaml", "/etc/hard/env.yaml", "/etc/hard/flag.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HARD_CONFIG", tt.env)
			if got := getConfigPath(tt.flag); got != tt.want {
				t.Errorf("getConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestIssueToken(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	path := writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "hard.db")+`"
api:
  enabled: true
  port: 8080
  auth:
    secret: "`+secret+`"
`)

	token, err := issueToken(path, "panel", time.Hour)
	if err != nil {
		t.Fatalf("issueToken() error: %v", err)
	}
	claims, err := api.ParseServiceToken(token, secret)
	if err != nil {
		t.Fatalf("ParseServiceToken() error: %v", err)
	}
	if claims.Subject != "panel" {
		t.Errorf("Subject = %q, want panel", claims.Subject)
	}

	if _, err := issueToken(path, "", time.Hour); err == nil {
		t.Error("issueToken() without subject should fail")
	}
}
