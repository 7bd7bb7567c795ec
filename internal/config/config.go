package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Storage StorageConfig `mapstructure:"storage"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Server  ServerConfig  `mapstructure:"server"`

	// Default values for commands
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// StorageConfig selects where history and detections are persisted
type StorageConfig struct {
	Driver        string `mapstructure:"driver"` // file, sqlite, memory
	Path          string `mapstructure:"path"`   // directory (file) or database file (sqlite)
	Retries       int    `mapstructure:"retries"`
	RetryInterval string `mapstructure:"retry_interval"`
}

// TrackerConfig tunes session accounting
type TrackerConfig struct {
	TickInterval string `mapstructure:"tick_interval"`
	MaxSessions  int    `mapstructure:"max_sessions"` // 0 = unbounded
}

// ServerConfig configures the serve command
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultsConfig holds default values for various commands
type DefaultsConfig struct {
	Sort  string `mapstructure:"sort"`
	Limit int    `mapstructure:"limit"`
	Input string `mapstructure:"input"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "ndjson",
		Quiet:   false,
		Verbose: false,
		Storage: StorageConfig{
			Driver:        "file",
			Retries:       2,
			RetryInterval: "50ms",
		},
		Tracker: TrackerConfig{
			TickInterval: "1s",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8787",
			AllowedOrigins: []string{"*"},
		},
		Defaults: DefaultsConfig{
			Sort: "recent",
		},
	}
}

// TickInterval parses Tracker.TickInterval, falling back to one second.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Tracker.TickInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// RetryInterval parses Storage.RetryInterval, falling back to 50ms.
func (c *Config) RetryInterval() time.Duration {
	d, err := time.ParseDuration(c.Storage.RetryInterval)
	if err != nil || d <= 0 {
		return 50 * time.Millisecond
	}
	return d
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	// Add config paths (in order of precedence, lowest first)
	// 1. System-wide config
	v.AddConfigPath("/etc/presence/")
	// 2. User config directory
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "presence"))
	}
	// 3. Home directory
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	// 4. Current directory
	v.AddConfigPath(".")
	v.SetConfigName(".presencerc")

	// Environment variables
	v.SetEnvPrefix("PRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables
	v.BindEnv("format", "PRESENCE_FORMAT")
	v.BindEnv("quiet", "PRESENCE_QUIET")
	v.BindEnv("verbose", "PRESENCE_VERBOSE")
	v.BindEnv("storage.driver", "PRESENCE_STORAGE")
	v.BindEnv("storage.path", "PRESENCE_STORAGE_PATH")
	v.BindEnv("server.addr", "PRESENCE_ADDR")

	// Set defaults
	cfg := Default()
	setDefaults(v, cfg)

	// Try to read config file (ignore if not found)
	if err := readFirst(v, ".presencerc", "presence", ".presence"); err != nil {
		return nil, err
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.retries", cfg.Storage.Retries)
	v.SetDefault("storage.retry_interval", cfg.Storage.RetryInterval)
	v.SetDefault("tracker.tick_interval", cfg.Tracker.TickInterval)
	v.SetDefault("tracker.max_sessions", cfg.Tracker.MaxSessions)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("defaults.sort", cfg.Defaults.Sort)
	v.SetDefault("defaults.limit", cfg.Defaults.Limit)
	v.SetDefault("defaults.input", cfg.Defaults.Input)
}

// readFirst tries each config name in turn. Not finding any file is fine; a
// file that exists but fails to parse is an error.
func readFirst(v *viper.Viper, names ...string) error {
	for _, name := range names {
		v.SetConfigName(name)
		err := v.ReadInConfig()
		if err == nil {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error occurred
			return err
		}
	}
	// Config file not found; use defaults
	return nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	v := viper.New()

	v.SetConfigType("yaml")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "presence"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	for _, name := range []string{".presencerc", "presence", ".presence"} {
		v.SetConfigName(name)
		if err := v.ReadInConfig(); err == nil {
			return v.ConfigFileUsed()
		}
	}

	return ""
}

// Sample is a commented config file matching Default.
const Sample = `# presence configuration file
# Place in ~/.presence.yaml, ~/.config/presence/presence.yaml, or ./.presencerc

format: ndjson        # ndjson or text
quiet: false
verbose: false

storage:
  driver: file        # file, sqlite, or memory
  path: ""            # default ~/.presence
  retries: 2          # write retries before a failure is ignored
  retry_interval: 50ms

tracker:
  tick_interval: 1s   # how often elapsed time is accumulated
  max_sessions: 0     # 0 keeps every session

server:
  addr: 127.0.0.1:8787
  allowed_origins:
    - "*"

defaults:
  sort: recent        # recent or duration
  limit: 0            # 0 lists everything
  input: ""           # presence NDJSON source for watch/ui (default stdin)
`
