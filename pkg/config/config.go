// Package config loads node settings from MENTAL_* environment variables,
// then lets flags and an optional config file override them.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Viper keys. Flags and config file entries use the same names.
const (
	KeyListen           = "listen"
	KeyAdvertise        = "advertise"
	KeyStatus           = "status"
	KeyJournalDir       = "journal-dir"
	KeyStreamBuffer     = "stream-buffer"
	KeyHandshakeTimeout = "handshake-timeout"
	KeyDebug            = "debug"
)

type Config struct {
	ListenAddr string `env:"MENTAL_LISTEN" envDefault:"127.0.0.1:9000"`
	// AdvertiseAddr is the key peers dial; empty means the bound address.
	AdvertiseAddr string `env:"MENTAL_ADVERTISE"`
	// StatusAddr serves /healthz, /room and /history; empty disables it.
	StatusAddr string `env:"MENTAL_STATUS" envDefault:"127.0.0.1:8000"`
	// JournalDir holds the badger journal; empty keeps it in memory.
	JournalDir       string        `env:"MENTAL_JOURNAL_DIR"`
	StreamBuffer     int           `env:"MENTAL_STREAM_BUFFER" envDefault:"64"`
	HandshakeTimeout time.Duration `env:"MENTAL_HANDSHAKE_TIMEOUT" envDefault:"5s"`
	Debug            bool          `env:"MENTAL_DEBUG"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the environment and applies every key set in v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if v != nil {
		cfg.Overlay(v)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Overlay copies values explicitly set in v over c.
func (c *Config) Overlay(v *viper.Viper) {
	if v.IsSet(KeyListen) {
		c.ListenAddr = v.GetString(KeyListen)
	}
	if v.IsSet(KeyAdvertise) {
		c.AdvertiseAddr = v.GetString(KeyAdvertise)
	}
	if v.IsSet(KeyStatus) {
		c.StatusAddr = v.GetString(KeyStatus)
	}
	if v.IsSet(KeyJournalDir) {
		c.JournalDir = v.GetString(KeyJournalDir)
	}
	if v.IsSet(KeyStreamBuffer) {
		c.StreamBuffer = v.GetInt(KeyStreamBuffer)
	}
	if v.IsSet(KeyHandshakeTimeout) {
		c.HandshakeTimeout = v.GetDuration(KeyHandshakeTimeout)
	}
	if v.IsSet(KeyDebug) {
		c.Debug = v.GetBool(KeyDebug)
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.StreamBuffer <= 0 {
		errs = append(errs, fmt.Errorf("stream buffer must be positive, got %d", c.StreamBuffer))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("handshake timeout must be positive, got %s", c.HandshakeTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ReadFile loads path into v. A missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".mental")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
