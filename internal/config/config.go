// File: internal/config/config.go
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

// EnvPrefix is prepended to every environment variable override, e.g.
// CONCLAVE_SOCIETY_AGENTS=6.
const EnvPrefix = "CONCLAVE"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Society() SocietyConfig
	Scheduler() SchedulerConfig
	Challenges() ChallengesConfig
	Store() StoreConfig
	Report() ReportConfig
	Metrics() MetricsConfig

	// Society Setters
	SetSocietyAgents(int)
	SetSocietySeed(uint64)

	// Scheduler Setters
	SetSchedulerCyclesPerEpoch(int)
	SetSchedulerRest(time.Duration)
	SetSchedulerMaxEpochs(int)

	// Report Setters
	SetReportFormat(string)
	SetReportOutput(string)

	// SetMetricsAddr enables the metrics endpoint on addr.
	SetMetricsAddr(string)
}

// Config holds the entire application configuration.
// Sections are reached through the Interface's getter methods.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	SocietyCfg    SocietyConfig    `mapstructure:"society" yaml:"society"`
	SchedulerCfg  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler"`
	ChallengesCfg ChallengesConfig `mapstructure:"challenges" yaml:"challenges"`
	StoreCfg      StoreConfig      `mapstructure:"store" yaml:"store"`
	ReportCfg     ReportConfig     `mapstructure:"report" yaml:"report"`
	MetricsCfg    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Society() SocietyConfig       { return c.SocietyCfg }
func (c *Config) Scheduler() SchedulerConfig   { return c.SchedulerCfg }
func (c *Config) Challenges() ChallengesConfig { return c.ChallengesCfg }
func (c *Config) Store() StoreConfig           { return c.StoreCfg }
func (c *Config) Report() ReportConfig         { return c.ReportCfg }
func (c *Config) Metrics() MetricsConfig       { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

// Society Setters
func (c *Config) SetSocietyAgents(n int)  { c.SocietyCfg.Agents = n }
func (c *Config) SetSocietySeed(s uint64) { c.SocietyCfg.Seed = s }

// Scheduler Setters
func (c *Config) SetSchedulerCyclesPerEpoch(n int) { c.SchedulerCfg.CyclesPerEpoch = n }
func (c *Config) SetSchedulerRest(d time.Duration) { c.SchedulerCfg.Rest = d }
func (c *Config) SetSchedulerMaxEpochs(n int)      { c.SchedulerCfg.MaxEpochs = n }

// Report Setters
func (c *Config) SetReportFormat(f string) { c.ReportCfg.Format = f }
func (c *Config) SetReportOutput(o string) { c.ReportCfg.Output = o }

func (c *Config) SetMetricsAddr(addr string) {
	c.MetricsCfg.Enabled = true
	c.MetricsCfg.Addr = addr
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// SocietyConfig shapes the population and the per-cycle aggregation.
type SocietyConfig struct {
	Agents           int    `mapstructure:"agents" yaml:"agents"`
	ReflectionPeriod int    `mapstructure:"reflection_period" yaml:"reflection_period"`
	// Concurrency caps parallel agent processing. 0 means one worker per agent.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// Seed fixes every random draw. 0 seeds from runtime entropy.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
	// HistoryRetention bounds each log. 0 keeps everything.
	HistoryRetention     int     `mapstructure:"history_retention" yaml:"history_retention"`
	InitialCollaboration float64 `mapstructure:"initial_collaboration" yaml:"initial_collaboration"`
	ShareDelta           float64 `mapstructure:"share_delta" yaml:"share_delta"`
	OversightThreshold   float64 `mapstructure:"oversight_threshold" yaml:"oversight_threshold"`
	SuccessThreshold     float64 `mapstructure:"success_threshold" yaml:"success_threshold"`
	// EngageSafeguards lets heightened oversight dampen the risks of the agents
	// that crossed it. Off, oversight is an observable flag only.
	EngageSafeguards bool `mapstructure:"engage_safeguards" yaml:"engage_safeguards"`
}

// SchedulerConfig controls long-running epochs.
type SchedulerConfig struct {
	CyclesPerEpoch int           `mapstructure:"cycles_per_epoch" yaml:"cycles_per_epoch"`
	Rest           time.Duration `mapstructure:"rest" yaml:"rest"`
	// MaxEpochs stops the scheduler after that many epochs. 0 runs until cancelled.
	MaxEpochs int `mapstructure:"max_epochs" yaml:"max_epochs"`
	// MaxCycleRate paces cycles per second. 0 disables pacing.
	MaxCycleRate           float64 `mapstructure:"max_cycle_rate" yaml:"max_cycle_rate"`
	MaxConsecutiveFailures int     `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
}

// Challenge sources.
const (
	SourceCatalog  = "catalog"
	SourceSequence = "sequence"
	SourceFeed     = "feed"
)

// ChallengesConfig selects where challenges come from.
type ChallengesConfig struct {
	Source   string `mapstructure:"source" yaml:"source"`
	FeedPath string `mapstructure:"feed_path" yaml:"feed_path"`
	Follow   bool   `mapstructure:"follow" yaml:"follow"`
}

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// StoreConfig selects the summary store backend.
type StoreConfig struct {
	Type     string         `mapstructure:"type" yaml:"type"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DSN renders the connection string understood by pgxpool.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatNone = "none"
)

// ReportConfig controls where human/machine readable summaries go.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	// Output is "stdout" or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "conclave")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Society --
	v.SetDefault("society.agents", 4)
	v.SetDefault("society.reflection_period", 3)
	v.SetDefault("society.concurrency", 0)
	v.SetDefault("society.seed", 0)
	v.SetDefault("society.history_retention", 1000)
	v.SetDefault("society.initial_collaboration", 0.5)
	v.SetDefault("society.share_delta", 0.05)
	v.SetDefault("society.oversight_threshold", 0.7)
	v.SetDefault("society.success_threshold", 0.7)
	v.SetDefault("society.engage_safeguards", false)

	// -- Scheduler --
	v.SetDefault("scheduler.cycles_per_epoch", 8)
	v.SetDefault("scheduler.rest", "5s")
	v.SetDefault("scheduler.max_epochs", 0)
	v.SetDefault("scheduler.max_cycle_rate", 0.0)
	v.SetDefault("scheduler.max_consecutive_failures", 5)

	// -- Challenges --
	v.SetDefault("challenges.source", SourceCatalog)
	v.SetDefault("challenges.feed_path", "")
	v.SetDefault("challenges.follow", false)

	// -- Store --
	v.SetDefault("store.type", StoreMemory)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "") // Should be set via env var
	v.SetDefault("store.postgres.dbname", "conclave")
	v.SetDefault("store.postgres.sslmode", "disable")

	// -- Report --
	v.SetDefault("report.format", FormatText)
	v.SetDefault("report.output", "stdout")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")
}

// BindEnv wires the CONCLAVE_ prefix so every key can be overridden from the
// environment, e.g. CONCLAVE_SCHEDULER_REST=30s.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	BindEnv(v)
	// Bind the store password explicitly; it should never live in a config file.
	v.BindEnv("store.postgres.password", "CONCLAVE_PG_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the password if Unmarshal didn't pick it up
	if cfg.StoreCfg.Type == StorePostgres && cfg.StoreCfg.Postgres.Password == "" {
		cfg.StoreCfg.Postgres.Password = os.Getenv("CONCLAVE_PG_PASSWORD")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// Every failure wraps models.ErrInvalidInput.
func (c *Config) Validate() error {
	if err := c.SocietyCfg.Validate(); err != nil {
		return fmt.Errorf("%w: society configuration invalid: %v", models.ErrInvalidInput, err)
	}
	if err := c.SchedulerCfg.Validate(); err != nil {
		return fmt.Errorf("%w: scheduler configuration invalid: %v", models.ErrInvalidInput, err)
	}
	if err := c.ChallengesCfg.Validate(); err != nil {
		return fmt.Errorf("%w: challenges configuration invalid: %v", models.ErrInvalidInput, err)
	}
	if err := c.StoreCfg.Validate(); err != nil {
		return fmt.Errorf("%w: store configuration invalid: %v", models.ErrInvalidInput, err)
	}
	if err := c.ReportCfg.Validate(); err != nil {
		return fmt.Errorf("%w: report configuration invalid: %v", models.ErrInvalidInput, err)
	}
	if c.MetricsCfg.Enabled && c.MetricsCfg.Addr == "" {
		return fmt.Errorf("%w: metrics.addr is required when metrics are enabled", models.ErrInvalidInput)
	}
	return nil
}

func unitInterval(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0.0 and 1.0", name)
	}
	return nil
}

// Validate checks the SocietyConfig settings. Zero agents is allowed here; the
// coordinator reports it as an empty society when a cycle is attempted.
func (s *SocietyConfig) Validate() error {
	if s.Agents < 0 {
		return fmt.Errorf("agents must not be negative")
	}
	if s.ReflectionPeriod <= 0 {
		return fmt.Errorf("reflection_period must be a positive integer")
	}
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if s.HistoryRetention < 0 {
		return fmt.Errorf("history_retention must not be negative")
	}
	for name, v := range map[string]float64{
		"initial_collaboration": s.InitialCollaboration,
		"share_delta":           s.ShareDelta,
		"oversight_threshold":   s.OversightThreshold,
		"success_threshold":     s.SuccessThreshold,
	} {
		if err := unitInterval(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the SchedulerConfig settings.
func (s *SchedulerConfig) Validate() error {
	if s.CyclesPerEpoch <= 0 {
		return fmt.Errorf("cycles_per_epoch must be a positive integer")
	}
	if s.Rest < 0 {
		return fmt.Errorf("rest must not be a negative duration")
	}
	if s.MaxEpochs < 0 {
		return fmt.Errorf("max_epochs must not be negative")
	}
	if s.MaxCycleRate < 0 || math.IsNaN(s.MaxCycleRate) {
		return fmt.Errorf("max_cycle_rate must not be negative")
	}
	if s.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("max_consecutive_failures must be a positive integer")
	}
	return nil
}

// Validate checks the ChallengesConfig settings.
func (c *ChallengesConfig) Validate() error {
	switch c.Source {
	case SourceCatalog, SourceSequence:
		return nil
	case SourceFeed:
		if c.FeedPath == "" {
			return fmt.Errorf("feed_path is required for the feed source")
		}
		return nil
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
}

// Validate checks the StoreConfig settings.
func (s *StoreConfig) Validate() error {
	switch s.Type {
	case StoreMemory:
		return nil
	case StorePostgres:
		if s.Postgres.Host == "" || s.Postgres.DBName == "" {
			return fmt.Errorf("postgres.host and postgres.dbname are required")
		}
		return nil
	default:
		return fmt.Errorf("unknown store type %q", s.Type)
	}
}

// Validate checks the ReportConfig settings.
func (r *ReportConfig) Validate() error {
	switch r.Format {
	case FormatText, FormatJSON, FormatNone:
	default:
		return fmt.Errorf("unknown format %q", r.Format)
	}
	if r.Format != FormatNone && r.Output == "" {
		return fmt.Errorf("output is required")
	}
	return nil
}
