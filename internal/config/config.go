package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default positional argument values
const (
	DefaultServiceName = "Redis"
	DefaultConfigPath  = "redis.conf"
)

// Config is the service configuration. It is built once by Load and treated
// as read-only for the lifetime of the process.
type Config struct {
	ServiceName string        `mapstructure:"service_name"`
	ConfigPath  string        `mapstructure:"config_path"`
	Executable  string        `mapstructure:"executable"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"` // 0 disables waiting for the child after SHUTDOWN
	ChangeDir   bool          `mapstructure:"change_dir"`   // chdir to the executable's directory on start
	Redis       RedisConfig   `mapstructure:"redis"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// RedisConfig describes the managed server's control endpoint
type RedisConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// LoggingConfig contains log file settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Console    bool   `mapstructure:"console"`
}

// Options carries the values supplied on the command line. Empty fields fall
// back to the settings file, the environment and then the defaults.
type Options struct {
	SettingsFile string
	ServiceName  string
	ConfigPath   string
	LogLevel     string
	LogFile      string
}

// Address returns the control endpoint as host:port
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Args returns the argument list passed to the managed executable
func (c *Config) Args() []string {
	return []string{c.ServiceName, c.ConfigPath}
}

// Load builds the configuration from defaults, an optional settings file,
// REDIS_SERVICE_* environment variables and the command line, in that order
// of increasing precedence.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.SettingsFile != "" {
		v.SetConfigFile(opts.SettingsFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	v.SetEnvPrefix("REDIS_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	overrides := map[string]string{
		"service_name":  opts.ServiceName,
		"config_path":   opts.ConfigPath,
		"logging.level": opts.LogLevel,
		"logging.file":  opts.LogFile,
	}
	for key, value := range overrides {
		if value != "" {
			v.Set(key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", DefaultServiceName)
	v.SetDefault("config_path", DefaultConfigPath)
	v.SetDefault("stop_timeout", 0)
	v.SetDefault("change_dir", true)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.command_timeout", 5*time.Second)

	v.SetDefault("logging.level", "debug")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.console", false)

	UpdateConfigDefaults(v)
}

// validLogLevels lists the accepted logging.level values, including the
// redis.conf spellings
var validLogLevels = map[string]bool{
	"debug":   true,
	"verbose": true,
	"info":    true,
	"notice":  true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

func validate(cfg *Config) error {
	if cfg.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if strings.ContainsAny(cfg.ServiceName, `/\`) {
		return fmt.Errorf("service_name must not contain slashes: %q", cfg.ServiceName)
	}
	if cfg.ConfigPath == "" {
		return fmt.Errorf("config_path is required")
	}
	if cfg.Executable == "" {
		return fmt.Errorf("executable is required")
	}

	if cfg.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("redis.port must be between 1 and 65535, got %d", cfg.Redis.Port)
	}
	if cfg.Redis.DialTimeout <= 0 {
		return fmt.Errorf("redis.dial_timeout must be positive")
	}
	if cfg.Redis.CommandTimeout <= 0 {
		return fmt.Errorf("redis.command_timeout must be positive")
	}
	if cfg.StopTimeout < 0 {
		return fmt.Errorf("stop_timeout must not be negative")
	}

	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, verbose, notice, warning or error)", cfg.Logging.Level)
	}
	if cfg.Logging.File == "" {
		return fmt.Errorf("logging.file is required")
	}
	if cfg.Logging.MaxSizeMB < 1 {
		return fmt.Errorf("logging.max_size_mb must be at least 1")
	}
	if cfg.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging.max_backups must not be negative")
	}

	return nil
}
