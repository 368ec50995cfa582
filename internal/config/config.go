// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment variables consulted outside of viper's own mapping. The brain
// address override intentionally matches viper's WRAITH_ prefix so either
// path (env or config file) lands on the same value.
const (
	EnvBrainAddress   = "WRAITH_BRAIN_ADDRESS"
	EnvPlatformMarker = "RAILWAY_ENVIRONMENT"
)

// DefaultBrainEndpoint is the local-development fallback address.
const DefaultBrainEndpoint = "http://localhost:50051"

// platformInternalEndpoint is the convention-derived address used when the
// worker runs on the managed platform and no explicit override is set.
const platformInternalEndpoint = "http://wraith-brain.railway.internal:50051"

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Brain    BrainConfig    `mapstructure:"brain" yaml:"brain"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Worker   WorkerConfig   `mapstructure:"worker" yaml:"worker"`
	Humanoid HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// RetryConfig parameterizes the exponential backoff used for both connection
// establishment and per-call retries. The two paths share one policy on
// purpose; construct two RetryConfigs if they ever need to diverge.
type RetryConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// BrainConfig describes the remote inference backend connection.
type BrainConfig struct {
	// Address overrides endpoint resolution entirely when set.
	Address string `mapstructure:"address" yaml:"address"`
	// ProbeInterval is the period of the background health probe.
	ProbeInterval time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`
	// FailureThreshold is the number of consecutive failed probes that
	// escalates to a full reconnection attempt.
	FailureThreshold int         `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	Retry            RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// ResolveEndpoint returns the backend address using the startup precedence:
// explicit override > managed-platform internal convention > local default.
// The result is fixed for the lifetime of the session.
func (b BrainConfig) ResolveEndpoint() string {
	if addr := strings.TrimSpace(b.Address); addr != "" {
		return addr
	}
	if addr := strings.TrimSpace(os.Getenv(EnvBrainAddress)); addr != "" {
		return addr
	}
	if os.Getenv(EnvPlatformMarker) == "production" {
		return platformInternalEndpoint
	}
	return DefaultBrainEndpoint
}

// BrowserConfig holds settings for the automation-driver browser session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// WorkerConfig tunes the mission loop.
type WorkerConfig struct {
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// TrustThreshold is the minimum acceptable validation score (0-100).
	TrustThreshold float64 `mapstructure:"trust_threshold" yaml:"trust_threshold"`
	// ReplayThreshold is the similarity above which a memory candidate is
	// treated as an exact replay of a recorded experience.
	ReplayThreshold float64 `mapstructure:"replay_threshold" yaml:"replay_threshold"`
	// MemoryTopK is the number of candidates requested per memory query.
	MemoryTopK int `mapstructure:"memory_top_k" yaml:"memory_top_k"`
}

// HumanoidConfig tunes the motion-synthesis models. Zero values fall back to
// the package defaults in internal/humanoid.
type HumanoidConfig struct {
	NoiseScale       float64       `mapstructure:"noise_scale" yaml:"noise_scale"`
	NoiseAmplitude   float64       `mapstructure:"noise_amplitude" yaml:"noise_amplitude"`
	MicroJitterPx    float64       `mapstructure:"micro_jitter_px" yaml:"micro_jitter_px"`
	MinStepDelay     time.Duration `mapstructure:"min_step_delay" yaml:"min_step_delay"`
	MaxStepDelay     time.Duration `mapstructure:"max_step_delay" yaml:"max_step_delay"`
	HesitationChance float64       `mapstructure:"hesitation_chance" yaml:"hesitation_chance"`
}

// SetDefaults registers the default value for every key with viper. Flags,
// environment variables and the config file all override these.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "wraith")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("brain.probe_interval", 60*time.Second)
	v.SetDefault("brain.failure_threshold", 3)
	v.SetDefault("brain.retry.initial_delay", 100*time.Millisecond)
	v.SetDefault("brain.retry.multiplier", 2.0)
	v.SetDefault("brain.retry.max_delay", 10*time.Second)
	v.SetDefault("brain.retry.max_attempts", 5)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 768)
	v.SetDefault("browser.navigation_timeout", 45*time.Second)

	v.SetDefault("worker.max_steps", 25)
	v.SetDefault("worker.trust_threshold", 80.0)
	v.SetDefault("worker.replay_threshold", 0.95)
	v.SetDefault("worker.memory_top_k", 5)
}

// Load unmarshals the fully resolved viper state into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
