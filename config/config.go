// Package config provides Viper-based configuration loading for the lobby server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// ServerConfig holds HTTP and WebSocket transport settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr"`
	// StaticDir is the directory served at "/". Empty disables static serving.
	StaticDir string `mapstructure:"static_dir"`
	// ReadLimit is the maximum inbound frame size in bytes.
	ReadLimit int64 `mapstructure:"read_limit"`
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SendBuffer is the capacity of each connection's outbound queue.
	SendBuffer int `mapstructure:"send_buffer"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File is the rolling log file path. Empty logs to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// GameConfig holds the world and session rules.
type GameConfig struct {
	WorldWidth  float64 `mapstructure:"world_width"`
	WorldHeight float64 `mapstructure:"world_height"`
	// SpawnMargin insets the spawn area from every world edge.
	SpawnMargin       float64 `mapstructure:"spawn_margin"`
	ChatHistory       int     `mapstructure:"chat_history"`
	MaxNicknameLength int     `mapstructure:"max_nickname_length"`
	MaxChatLength     int     `mapstructure:"max_chat_length"`
	// IdleTimeout evicts players without an accepted action for this long. Zero disables eviction.
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// ResyncInterval broadcasts the full roster periodically. Zero disables it.
	ResyncInterval time.Duration `mapstructure:"resync_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Game    GameConfig    `mapstructure:"game"`
}

// Validate checks every configuration constraint.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	err := multierr.Combine(
		validateServer(c.Server),
		validateLogging(c.Logging),
		validateGame(c.Game),
	)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var err error
	if s.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr must not be empty"))
	}
	if s.ReadLimit < 64 {
		err = multierr.Append(err, fmt.Errorf("server.read_limit must be >= 64, got %d", s.ReadLimit))
	}
	if s.WriteTimeout <= 0 {
		err = multierr.Append(err, errors.New("server.write_timeout must be positive"))
	}
	if s.SendBuffer < 1 {
		err = multierr.Append(err, fmt.Errorf("server.send_buffer must be >= 1, got %d", s.SendBuffer))
	}
	return err
}

func validateLogging(l LoggingConfig) error {
	var err error
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		err = multierr.Append(err, fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		err = multierr.Append(err, fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format))
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		err = multierr.Append(err, errors.New("logging rotation limits must not be negative"))
	}
	return err
}

func validateGame(g GameConfig) error {
	var err error
	if g.WorldWidth <= 0 || g.WorldHeight <= 0 {
		err = multierr.Append(err, fmt.Errorf("game world must have positive size, got %gx%g", g.WorldWidth, g.WorldHeight))
	}
	if g.SpawnMargin < 0 || 2*g.SpawnMargin > g.WorldWidth || 2*g.SpawnMargin > g.WorldHeight {
		err = multierr.Append(err, fmt.Errorf("game.spawn_margin %g does not fit the world", g.SpawnMargin))
	}
	if g.ChatHistory < 1 {
		err = multierr.Append(err, fmt.Errorf("game.chat_history must be >= 1, got %d", g.ChatHistory))
	}
	if g.MaxNicknameLength < 1 {
		err = multierr.Append(err, fmt.Errorf("game.max_nickname_length must be >= 1, got %d", g.MaxNicknameLength))
	}
	if g.MaxChatLength < 1 {
		err = multierr.Append(err, fmt.Errorf("game.max_chat_length must be >= 1, got %d", g.MaxChatLength))
	}
	if g.IdleTimeout < 0 || g.ResyncInterval < 0 {
		err = multierr.Append(err, errors.New("game.idle_timeout and game.resync_interval must not be negative"))
	}
	if g.SweepInterval <= 0 {
		err = multierr.Append(err, errors.New("game.sweep_interval must be positive"))
	}
	return err
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path skips the file and uses
// defaults plus environment.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with LOBBY_ prefix
	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "web")
	v.SetDefault("server.read_limit", 4096)
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.send_buffer", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)

	v.SetDefault("game.world_width", 800.0)
	v.SetDefault("game.world_height", 600.0)
	v.SetDefault("game.spawn_margin", 50.0)
	v.SetDefault("game.chat_history", 50)
	v.SetDefault("game.max_nickname_length", 24)
	v.SetDefault("game.max_chat_length", 500)
	v.SetDefault("game.idle_timeout", "0s")
	v.SetDefault("game.sweep_interval", "5s")
	v.SetDefault("game.resync_interval", "0s")
}
