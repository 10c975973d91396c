package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Output   OutputConfig   `mapstructure:"output"`
	Provider ProviderConfig `mapstructure:"provider"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// DataConfig selects which decay data is used
type DataConfig struct {
	RadType string `mapstructure:"rad_type"`
	Sort    string `mapstructure:"sort"`
	Fetch   bool   `mapstructure:"fetch"`
}

// OutputConfig selects the output formats and where they are written
type OutputConfig struct {
	Prefix string   `mapstructure:"prefix"`
	JSON   bool     `mapstructure:"json"`
	Text   bool     `mapstructure:"text"`
	MCNP   bool     `mapstructure:"mcnp"`
	MCNPID int      `mapstructure:"mcnp_id"`
	Sink   string   `mapstructure:"sink"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config holds the bucket settings for the s3 sink
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// ProviderConfig holds decay data provider configuration
type ProviderConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	DatasetPath    string        `mapstructure:"dataset_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the run metrics destination
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// NotifyConfig holds the run report destination
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot configuration. Reports are sent only when
// BotToken is set.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIEndpoint    string        `mapstructure:"api_endpoint"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"rad":          "data.rad_type",
	"sort":         "data.sort",
	"fetch":        "data.fetch",
	"output":       "output.prefix",
	"json":         "output.json",
	"text":         "output.text",
	"mcnp":         "output.mcnp",
	"id":           "output.mcnp_id",
	"sink":         "output.sink",
	"dataset":      "provider.dataset_path",
	"api":          "provider.api_base_url",
	"metrics-file": "metrics.textfile",
	"log-level":    "logging.level",
}

// Load reads configuration from defaults, the optional file at path,
// FISDEF_* environment variables and flags, in increasing priority.
// path and flags may be empty.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. FISDEF_OUTPUT_S3_BUCKET
	v.SetEnvPrefix("FISDEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data defaults
	v.SetDefault("data.rad_type", "gamma")
	v.SetDefault("data.sort", "energy")
	v.SetDefault("data.fetch", false)

	// Output defaults
	v.SetDefault("output.prefix", "step")
	v.SetDefault("output.json", false)
	v.SetDefault("output.text", false)
	v.SetDefault("output.mcnp", false)
	v.SetDefault("output.mcnp_id", 100)
	v.SetDefault("output.sink", "fs")
	v.SetDefault("output.s3.bucket", "")
	v.SetDefault("output.s3.region", "us-east-1")
	v.SetDefault("output.s3.endpoint", "")
	v.SetDefault("output.s3.key_prefix", "")
	v.SetDefault("output.s3.access_key_id", "")
	v.SetDefault("output.s3.secret_access_key", "")
	v.SetDefault("output.s3.session_token", "")
	v.SetDefault("output.s3.path_style", false)

	// Provider defaults
	v.SetDefault("provider.api_base_url", "https://nds.iaea.org/relnsd/v1")
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.retry_delay_base", "1s")
	v.SetDefault("provider.dataset_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "plain")

	// Metrics defaults
	v.SetDefault("metrics.textfile", "")

	// Notify defaults
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.telegram.api_endpoint", "")
	v.SetDefault("notify.telegram.max_retries", 3)
	v.SetDefault("notify.telegram.retry_delay_base", "2s")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Data config
	if _, err := models.ParseRadType(c.Data.RadType); err != nil {
		return fmt.Errorf("data.rad_type: %w", err)
	}
	if _, err := models.ParseSortProperty(c.Data.Sort); err != nil {
		return fmt.Errorf("data.sort: %w", err)
	}

	// Validate Output config
	if c.Output.MCNPID < 0 {
		return fmt.Errorf("output.mcnp_id must not be negative")
	}
	switch c.Output.Sink {
	case "fs":
	case "s3":
		if c.Output.S3.Bucket == "" {
			return fmt.Errorf("output.s3.bucket is required when output.sink is s3")
		}
	default:
		return fmt.Errorf("output.sink must be one of: fs, s3")
	}

	// Validate Provider config
	if c.Data.Fetch && c.Provider.APIBaseURL == "" {
		return fmt.Errorf("provider.api_base_url is required when fetching")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("provider.max_retries must be at least 1")
	}
	if c.Provider.RetryDelayBase < 0 {
		return fmt.Errorf("provider.retry_delay_base must not be negative")
	}

	// Validate Logging config
	if _, ok := logger.LookupLevel(c.Logging.Level); !ok {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, silent")
	}
	validFormats := map[string]bool{"plain": true, "timestamp": true, "source": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: plain, timestamp, source")
	}

	// Validate Notify config
	if c.Notify.Telegram.BotToken != "" {
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when a bot token is set")
		}
		if c.Notify.Telegram.MaxRetries < 1 {
			return fmt.Errorf("notify.telegram.max_retries must be at least 1")
		}
	}

	return nil
}

// RadType returns the parsed radiation type. Call Validate first.
func (c *Config) RadType() models.RadType {
	r, _ := models.ParseRadType(c.Data.RadType)
	return r
}

// SortProperty returns the parsed sort property. Call Validate first.
func (c *Config) SortProperty() models.SortProperty {
	p, _ := models.ParseSortProperty(c.Data.Sort)
	return p
}

// Outputs returns the set of requested output kinds.
func (c *Config) Outputs() map[string]bool {
	return map[string]bool{
		"json": c.Output.JSON,
		"text": c.Output.Text,
		"mcnp": c.Output.MCNP,
	}
}

// AnyOutput reports whether at least one output format was requested.
func (c *Config) AnyOutput() bool {
	return c.Output.JSON || c.Output.Text || c.Output.MCNP
}
