package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
agent:
  vehicle_id: AV-042
  server_endpoint: "telemetry.local:50051"
  mode: live
  rate_hz: 30
  queue_capacity: 500
  lidar_points: 256
  report_every: 30
  liveness_interval: 50ms
  metrics_addr: ":9102"
  log_level: debug
  server_auth:
    mode: apikey
    key_env: OMNI_KEY
`
	cfg := loadFromString(t, yaml)
	a := cfg.Agent

	if a.VehicleID != "AV-042" {
		t.Errorf("vehicle_id: got %q", a.VehicleID)
	}
	if a.ServerEndpoint != "telemetry.local:50051" {
		t.Errorf("server_endpoint: got %q", a.ServerEndpoint)
	}
	if a.Mode != ModeLive {
		t.Errorf("mode: got %q", a.Mode)
	}
	if a.RateHz != 30 {
		t.Errorf("rate_hz: got %v", a.RateHz)
	}
	if a.QueueCapacity != 500 {
		t.Errorf("queue_capacity: got %d", a.QueueCapacity)
	}
	if a.LivenessInterval != 50*time.Millisecond {
		t.Errorf("liveness_interval: got %v", a.LivenessInterval)
	}
	if a.Level() != slog.LevelDebug {
		t.Errorf("Level(): got %v", a.Level())
	}
	if a.ServerAuth.EffectiveHeader() != "x-api-key" {
		t.Errorf("EffectiveHeader(): got %q", a.ServerAuth.EffectiveHeader())
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "agent:\n  vehicle_id: AV-007\n")
	a := cfg.Agent

	if a.Mode != DefaultMode {
		t.Errorf("default mode: got %q, want %q", a.Mode, DefaultMode)
	}
	if a.RateHz != DefaultRateHz {
		t.Errorf("default rate_hz: got %v", a.RateHz)
	}
	if a.QueueCapacity != DefaultQueueCapacity {
		t.Errorf("default queue_capacity: got %d", a.QueueCapacity)
	}
	if a.LidarPoints != DefaultLidarPoints {
		t.Errorf("default lidar_points: got %d", a.LidarPoints)
	}
	if a.LivenessInterval != DefaultLivenessInterval {
		t.Errorf("default liveness_interval: got %v", a.LivenessInterval)
	}
	if a.ServerEndpoint != DefaultServerEndpoint {
		t.Errorf("default server_endpoint: got %q", a.ServerEndpoint)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if !reflect.DeepEqual(cfg, Defaults()) {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg.Agent)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown mode", "agent:\n  mode: carrier-pigeon\n"},
		{"zero capacity", "agent:\n  queue_capacity: 0\n"},
		{"negative rate", "agent:\n  rate_hz: -1\n"},
		{"empty vehicle", "agent:\n  vehicle_id: \"\"\n"},
		{"bad log level", "agent:\n  log_level: chatty\n"},
		{"unknown auth mode", "agent:\n  server_auth:\n    mode: magictoken\n"},
		{"mtls without cert", "agent:\n  server_auth:\n    mode: mtls\n"},
		{"apikey without env", "agent:\n  server_auth:\n    mode: apikey\n"},
		{"live without endpoint", "agent:\n  mode: live\n  server_endpoint: \"\"\n"},
		{"malformed yaml", "agent: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "TEST_API_KEY", Header: "X-Omni-Key"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
	if got := a.EffectiveHeader(); got != "x-omni-key" {
		t.Errorf("EffectiveHeader(): got %q, want lowercased header", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key() with no KeyEnv: got %q, want empty", got)
	}
}

func TestRestartRequired(t *testing.T) {
	old := Defaults().Agent
	updated := old
	updated.LogLevel = "debug"
	if got := RestartRequired(old, updated); len(got) != 0 {
		t.Errorf("log_level change flagged as restart-required: %v", got)
	}

	updated.QueueCapacity = 10
	updated.Mode = ModeLive
	got := RestartRequired(old, updated)
	want := []string{"mode", "queue_capacity"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RestartRequired = %v, want %v", got, want)
	}
}

// startWatch runs Watch on path and returns the reloaded configs and the
// channel Watch's return value is delivered on.
func startWatch(t *testing.T, ctx context.Context, path string) (<-chan *Config, <-chan error) {
	t.Helper()
	updates := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case updates <- c:
			default:
			}
		})
	}()
	return updates, done
}

// awaitReload rewrites path with content until a reload shows up. The
// watcher starts asynchronously, so early writes may go unseen.
func awaitReload(t *testing.T, path, content string, updates <-chan *Config) *Config {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		writeFile(t, path, content)
		select {
		case got := <-updates:
			return got
		case <-time.After(300 * time.Millisecond):
		}
	}
	t.Fatal("onChange never called after rewriting the file")
	return nil
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeFile(t, path, "agent:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, done := startWatch(t, ctx, path)

	got := awaitReload(t, path, "agent:\n  log_level: debug\n", updates)
	if got.Agent.LogLevel != "debug" {
		t.Errorf("reloaded log_level = %q, want debug", got.Agent.LogLevel)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_IgnoresTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeFile(t, path, "agent:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, _ := startWatch(t, ctx, path)

	awaitReload(t, path, "agent:\n  log_level: debug\n", updates)
	for len(updates) > 0 {
		<-updates
	}

	// An emptied file must never be applied as defaults.
	writeFile(t, path, "")
	select {
	case got := <-updates:
		t.Fatalf("empty file reloaded as log_level %q", got.Agent.LogLevel)
	case <-time.After(4 * reloadDebounce):
	}

	// Truncate and write in two steps, as editors do: only the final
	// content may be applied.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(reloadDebounce / 5)
	if _, err := f.WriteString("agent:\n  log_level: warn\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case got := <-updates:
		if got.Agent.LogLevel != "warn" {
			t.Errorf("reloaded log_level = %q, want warn", got.Agent.LogLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onChange never called after the two-step write")
	}
	select {
	case got := <-updates:
		t.Errorf("extra reload with log_level %q", got.Agent.LogLevel)
	case <-time.After(4 * reloadDebounce):
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)
	return Load(path)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
}
