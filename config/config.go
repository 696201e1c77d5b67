// Package config loads remotegate settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	configDirName  = "remotegate"
)

// Defaults applied by Resolve for unset options.
const (
	DefaultUser           = "root"
	DefaultPort           = 3000
	DefaultConnectTimeout = 10 * time.Second
	DefaultMaxOutputBytes = 65536
)

// duration wraps time.Duration for YAML unmarshaling.
type duration struct {
	d time.Duration
}

func (d *duration) unmarshalText(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.d = parsed
	return nil
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	return d.unmarshalText(value.Value)
}

func (d *duration) Duration() time.Duration {
	return d.d
}

// Config for remotegate. Pointer fields; nil = unset.
type Config struct {
	Host           *string   `yaml:"host"`
	FallbackHost   *string   `yaml:"fallback_host"`
	User           *string   `yaml:"user"`
	IdentityFile   *string   `yaml:"identity_file"`
	Port           *int      `yaml:"port"`
	ConnectTimeout *duration `yaml:"connect_timeout"`
	MaxOutputBytes *int      `yaml:"max_output_bytes"`
}

// Settings is a fully resolved Config with every default applied.
type Settings struct {
	Host           string
	FallbackHost   string
	User           string
	IdentityFile   string
	Port           int
	ConnectTimeout time.Duration
	MaxOutputBytes int
}

// LoadFrom loads config from path. Missing files return zero Config, nil.
func LoadFrom(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads the config from the default path under XDG_CONFIG_HOME.
func Load() (Config, error) {
	return LoadFrom(defaultConfigPath())
}

// Resolve fills every unset option with its default.
func (c Config) Resolve() Settings {
	s := Settings{
		User:           DefaultUser,
		IdentityFile:   defaultIdentityFile(),
		Port:           DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
	if c.Host != nil {
		s.Host = *c.Host
	}
	if c.FallbackHost != nil {
		s.FallbackHost = *c.FallbackHost
	}
	if c.User != nil {
		s.User = *c.User
	}
	if c.IdentityFile != nil {
		s.IdentityFile = *c.IdentityFile
	}
	if c.Port != nil {
		s.Port = *c.Port
	}
	if c.ConnectTimeout != nil {
		s.ConnectTimeout = c.ConnectTimeout.Duration()
	}
	if c.MaxOutputBytes != nil {
		s.MaxOutputBytes = *c.MaxOutputBytes
	}
	return s
}

func (c *Config) applyEnvOverrides() error {
	if v, ok := os.LookupEnv("REMOTEGATE_HOST"); ok {
		c.Host = &v
	}
	if v, ok := os.LookupEnv("REMOTEGATE_FALLBACK_HOST"); ok {
		c.FallbackHost = &v
	}
	if v, ok := os.LookupEnv("REMOTEGATE_USER"); ok {
		c.User = &v
	}
	if v, ok := os.LookupEnv("REMOTEGATE_IDENTITY_FILE"); ok {
		c.IdentityFile = &v
	}
	if v, ok := os.LookupEnv("REMOTEGATE_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse REMOTEGATE_PORT: %w", err)
		}
		c.Port = &n
	}
	if v, ok := os.LookupEnv("REMOTEGATE_CONNECT_TIMEOUT"); ok {
		d := &duration{}
		if err := d.unmarshalText(v); err != nil {
			return fmt.Errorf("parse REMOTEGATE_CONNECT_TIMEOUT: %w", err)
		}
		c.ConnectTimeout = d
	}
	if v, ok := os.LookupEnv("REMOTEGATE_MAX_OUTPUT_BYTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse REMOTEGATE_MAX_OUTPUT_BYTES: %w", err)
		}
		c.MaxOutputBytes = &n
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port != nil && (*c.Port < 1 || *c.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got %d", *c.Port)
	}
	if c.ConnectTimeout != nil && c.ConnectTimeout.Duration() <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %v", c.ConnectTimeout.Duration())
	}
	if c.MaxOutputBytes != nil && *c.MaxOutputBytes < 0 {
		return fmt.Errorf("max_output_bytes must be non-negative, got %d", *c.MaxOutputBytes)
	}
	if c.MaxOutputBytes != nil && *c.MaxOutputBytes > 1024*1024*1024 {
		return fmt.Errorf("max_output_bytes must not exceed 1 GB, got %d", *c.MaxOutputBytes)
	}
	return nil
}

func defaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName, configFileName)
}

func defaultIdentityFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "id_ed25519")
}
