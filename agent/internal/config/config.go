package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultVehicleID        = "AV-001"
	DefaultServerEndpoint   = "localhost:50051"
	DefaultMode             = ModeSimulate
	DefaultRateHz           = 60.0
	DefaultQueueCapacity    = 1000
	DefaultLidarPoints      = 1024
	DefaultReportEvery      = 60
	DefaultLivenessInterval = 100 * time.Millisecond
	DefaultConnectTimeout   = 5 * time.Second
	DefaultLogLevel         = "info"
)

// Sink modes.
const (
	ModeSimulate = "simulate"
	ModeLive     = "live"
)

// Config is the top-level agent configuration file.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// VehicleID is stamped on every packet.
	VehicleID string `yaml:"vehicle_id"`

	// ServerEndpoint is the gRPC address of the telemetry receiver (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// Mode selects the sink: simulate | live. Live falls back to simulate when
	// the endpoint cannot be reached.
	Mode string `yaml:"mode"`

	// RateHz is the producer's target tick rate.
	RateHz float64 `yaml:"rate_hz"`

	// QueueCapacity bounds the number of packets buffered between producer
	// and consumer.
	QueueCapacity int `yaml:"queue_capacity"`

	// LidarPoints is the number of beams per lidar scan.
	LidarPoints int `yaml:"lidar_points"`

	// ReportEvery is the number of ticks (producer) or sent packets
	// (consumer) between progress log lines.
	ReportEvery int `yaml:"report_every"`

	// LivenessInterval is how often the coordinator polls for a stop request.
	LivenessInterval time.Duration `yaml:"liveness_interval"`

	// ConnectTimeout bounds the initial dial of the live sink.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel is one of: debug | info | warn | error. Applied live on reload.
	LogLevel string `yaml:"log_level"`

	// ServerAuth configures how the agent authenticates to the receiver.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// AuthConfig specifies how the live sink authenticates.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the gRPC metadata key that carries the API key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return strings.ToLower(a.Header)
	}
	return "x-api-key"
}

// Level parses LogLevel. Unknown values map to info; validate rejects them
// before they get here.
func (a AgentConfig) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(a.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads and parses the YAML config file at path. An empty path yields
// the defaults. Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			VehicleID:        DefaultVehicleID,
			ServerEndpoint:   DefaultServerEndpoint,
			Mode:             DefaultMode,
			RateHz:           DefaultRateHz,
			QueueCapacity:    DefaultQueueCapacity,
			LidarPoints:      DefaultLidarPoints,
			ReportEvery:      DefaultReportEvery,
			LivenessInterval: DefaultLivenessInterval,
			ConnectTimeout:   DefaultConnectTimeout,
			LogLevel:         DefaultLogLevel,
		},
	}
}

// Validate checks required fields and structural constraints. main calls it
// again after applying command-line overrides.
func (cfg *Config) Validate() error {
	a := cfg.Agent
	if a.VehicleID == "" {
		return fmt.Errorf("config: agent.vehicle_id is required")
	}
	switch a.Mode {
	case ModeSimulate:
	case ModeLive:
		if a.ServerEndpoint == "" {
			return fmt.Errorf("config: agent.server_endpoint is required in live mode")
		}
	default:
		return fmt.Errorf("config: agent.mode %q unknown: want simulate|live", a.Mode)
	}
	if a.RateHz <= 0 {
		return fmt.Errorf("config: agent.rate_hz must be positive")
	}
	if a.QueueCapacity <= 0 {
		return fmt.Errorf("config: agent.queue_capacity must be positive")
	}
	if a.LidarPoints <= 0 {
		return fmt.Errorf("config: agent.lidar_points must be positive")
	}
	if a.ReportEvery <= 0 {
		return fmt.Errorf("config: agent.report_every must be positive")
	}
	if a.LivenessInterval <= 0 {
		return fmt.Errorf("config: agent.liveness_interval must be positive")
	}
	if a.ConnectTimeout <= 0 {
		return fmt.Errorf("config: agent.connect_timeout must be positive")
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(a.LogLevel)); err != nil {
		return fmt.Errorf("config: agent.log_level %q unknown: want debug|info|warn|error", a.LogLevel)
	}
	switch a.ServerAuth.Mode {
	case "mtls":
		if a.ServerAuth.CertFile == "" || a.ServerAuth.KeyFile == "" {
			return fmt.Errorf("config: agent.server_auth: mtls requires cert_file and key_file")
		}
	case "apikey":
		if a.ServerAuth.KeyEnv == "" {
			return fmt.Errorf("config: agent.server_auth: apikey requires key_env")
		}
	case "none", "":
	default:
		return fmt.Errorf("config: agent.server_auth.mode %q unknown: want mtls|apikey|none", a.ServerAuth.Mode)
	}
	return nil
}
