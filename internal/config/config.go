// Package config loads and validates the runner configuration from a YAML
// file plus DS160_-prefixed environment overrides, via viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Postback  PostbackConfig  `mapstructure:"postback" yaml:"postback"`
	Captcha   CaptchaConfig   `mapstructure:"captcha" yaml:"captcha"`
	Queue     QueueConfig     `mapstructure:"queue" yaml:"queue"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// LoggerConfig mirrors the observability package's needs.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig points at the Postgres progress/job store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" yaml:"statement_timeout"`
}

// EngineConfig bounds the step-execution loop.
type EngineConfig struct {
	// WorkerConcurrency is the number of jobs run in parallel, each owning
	// an independent browser session.
	WorkerConcurrency int `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	// SessionsPerMinute throttles browser session spawn across the pool.
	SessionsPerMinute int `mapstructure:"sessions_per_minute" yaml:"sessions_per_minute"`
	// FieldRevealTimeout bounds the wait for a conditionally revealed field
	// to appear before filling it.
	FieldRevealTimeout time.Duration `mapstructure:"field_reveal_timeout" yaml:"field_reveal_timeout"`
	// FieldTimeout bounds locating any single field.
	FieldTimeout time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
}

// BrowserConfig controls the chromedp session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StartURL          string        `mapstructure:"start_url" yaml:"start_url"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// PostbackConfig tunes the page stabilization wait after server round-trips.
type PostbackConfig struct {
	// IdleTimeout bounds the primary network-quiescence wait.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	// QuietPeriod is how long the network must stay silent to count as idle.
	QuietPeriod time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`
	// SettleDelay is the flat fallback wait when the idle signal times out.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// CaptchaConfig tunes the human-in-the-loop handshake.
type CaptchaConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl" yaml:"challenge_ttl"`
	// RejectionCap bounds reject/re-challenge loops inside the wall-clock
	// window, so repeated timer resets cannot loop indefinitely.
	RejectionCap int `mapstructure:"rejection_cap" yaml:"rejection_cap"`
}

// QueueConfig points at the NATS JetStream job intake.
type QueueConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	Subject      string        `mapstructure:"subject" yaml:"subject"`
	Durable      string        `mapstructure:"durable" yaml:"durable"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

// ArtifactsConfig controls where screenshots and captcha images land.
type ArtifactsConfig struct {
	BaseDir       string `mapstructure:"base_dir" yaml:"base_dir"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// setDefaults registers the reference tunables.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "ds160-runner")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.statement_timeout", 30*time.Second)

	v.SetDefault("engine.worker_concurrency", 2)
	v.SetDefault("engine.sessions_per_minute", 6)
	v.SetDefault("engine.field_reveal_timeout", 5*time.Second)
	v.SetDefault("engine.field_timeout", 10*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 60*time.Second)
	v.SetDefault("browser.start_url", "https://ceac.state.gov/GenNIV/Default.aspx")

	v.SetDefault("postback.idle_timeout", 10*time.Second)
	v.SetDefault("postback.quiet_period", 500*time.Millisecond)
	v.SetDefault("postback.settle_delay", 2*time.Second)

	v.SetDefault("captcha.poll_interval", 2*time.Second)
	v.SetDefault("captcha.timeout", 5*time.Minute)
	v.SetDefault("captcha.challenge_ttl", 2*time.Minute)
	v.SetDefault("captcha.rejection_cap", 5)

	v.SetDefault("queue.url", "nats://127.0.0.1:4222")
	v.SetDefault("queue.subject", "ds160.jobs")
	v.SetDefault("queue.durable", "ds160-runner")
	v.SetDefault("queue.fetch_timeout", 5*time.Second)

	v.SetDefault("artifacts.base_dir", "./artifacts")
	v.SetDefault("artifacts.public_base_url", "http://localhost:8080/artifacts")
}

// Load reads the config file (explicit path, else ./config.yaml, else
// ~/.ds160-runner/config.yaml), applies env overrides, and validates.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ds160-runner"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DS160")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No file is fine; defaults plus env vars carry the run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.WorkerConcurrency < 1 {
		return fmt.Errorf("engine.worker_concurrency must be >= 1, got %d", c.Engine.WorkerConcurrency)
	}
	if c.Captcha.PollInterval <= 0 {
		return fmt.Errorf("captcha.poll_interval must be positive")
	}
	if c.Captcha.Timeout < c.Captcha.PollInterval {
		return fmt.Errorf("captcha.timeout (%s) must not be shorter than the poll interval (%s)",
			c.Captcha.Timeout, c.Captcha.PollInterval)
	}
	if c.Captcha.RejectionCap < 1 {
		return fmt.Errorf("captcha.rejection_cap must be >= 1, got %d", c.Captcha.RejectionCap)
	}
	if c.Postback.IdleTimeout <= 0 || c.Postback.SettleDelay < 0 {
		return fmt.Errorf("postback timings must be positive")
	}
	return nil
}
