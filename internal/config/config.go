// Package config loads and persists the ftpq command-line settings.
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that decodes from humanized strings such as
// "500KB", "2MiB" or plain numbers.
type ByteSize int64

// ParseByteSize parses a humanized byte count.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid byte size %q", s)
	}
	return ByteSize(n), nil
}

// String renders the size in humanized decimal units.
func (b ByteSize) String() string {
	return humanize.Bytes(uint64(b))
}

// Config holds the ftpq CLI settings.
//
// Sources, highest precedence first:
//  1. Command-line flags
//  2. Environment variables (FTPQ_*)
//  3. Configuration file
//  4. Defaults
type Config struct {
	// Host is the server address, either host or host:port. The port
	// defaults from the security mode when absent.
	Host string `mapstructure:"host" yaml:"host"`

	// User is the login name. Empty logs in anonymously.
	User string `mapstructure:"user" yaml:"user,omitempty"`

	// Password authenticates User. When User is set and Password is
	// empty the CLI prompts for it.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// Security selects the connection mode: "ftp", "ftps" or "ftpes".
	Security string `mapstructure:"security" yaml:"security"`

	// Timeout bounds dialing and each control-channel exchange.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Active switches data connections to active (PORT/EPRT) mode.
	Active bool `mapstructure:"active" yaml:"active,omitempty"`

	// Insecure skips TLS certificate verification.
	Insecure bool `mapstructure:"insecure" yaml:"insecure,omitempty"`

	// RateLimit caps transfer bandwidth in bytes per second, zero for
	// unlimited. Accepts humanized values such as "500KB".
	RateLimit ByteSize `mapstructure:"rate_limit" yaml:"rate_limit,omitempty"`

	// Compression requests MODE Z deflate transfers when the server
	// supports them.
	Compression bool `mapstructure:"compression" yaml:"compression,omitempty"`

	// Verbose enables debug logging on stderr.
	Verbose bool `mapstructure:"verbose" yaml:"verbose,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Security: "ftp",
		Timeout:  30 * time.Second,
	}
}

// Redacted returns a copy safe for display, with the password masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Password != "" {
		out.Password = "***"
	}
	return &out
}

// Load reads the configuration from path, falling back to the default
// location when path is empty. A missing file is not an error; defaults
// and FTPQ_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setupViper(v, path)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration for values no command could
// act on.
func Validate(cfg *Config) error {
	switch cfg.Security {
	case "ftp", "ftps", "ftpes":
	default:
		return errors.Errorf(`security must be "ftp", "ftps" or "ftpes", got %q`, cfg.Security)
	}
	if cfg.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.RateLimit < 0 {
		return errors.Errorf("rate_limit must not be negative, got %d", int64(cfg.RateLimit))
	}
	return nil
}

// Save writes cfg to path as YAML. The file is created with mode 0600
// since it may carry a password.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

// Init writes the default configuration to path (the default location
// when empty) and returns the path written. It refuses to overwrite an
// existing file.
func Init(path string) (string, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return "", errors.Errorf("config file already exists: %s", path)
	}
	if err := Save(Default(), path); err != nil {
		return "", err
	}
	return path, nil
}

// setupViper wires environment overrides and the config file location.
// Every key gets a registered default so FTPQ_* variables apply even
// without a config file.
func setupViper(v *viper.Viper, path string) {
	v.SetEnvPrefix("FTPQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("host", def.Host)
	v.SetDefault("user", def.User)
	v.SetDefault("password", def.Password)
	v.SetDefault("security", def.Security)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("active", def.Active)
	v.SetDefault("insecure", def.Insecure)
	v.SetDefault("rate_limit", int64(def.RateLimit))
	v.SetDefault("compression", def.Compression)
	v.SetDefault("verbose", def.Verbose)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file if one exists. Absence is fine,
// any other read problem is reported.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "read config file")
}

// decodeHooks converts the custom config field types during Unmarshal.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to ByteSize so config
// files can say rate_limit: 500KB.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return ParseByteSize(v)
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "45s" to time.Duration. Raw
// numbers are taken as nanoseconds, matching time.Duration itself.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// Dir returns the configuration directory: $XDG_CONFIG_HOME/ftpq,
// ~/.config/ftpq, or the current directory as a last resort.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ftpq")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ftpq")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}
