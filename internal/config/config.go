package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/BioHazard786/warpmatch/internal/matchmaking"
)

// Default server configuration values
const (
	DefaultListenAddr     = ":8080"
	DefaultMatchMode      = string(matchmaking.ModeInterest)
	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages
	DefaultLogLevel       = "info"
)

// Config holds the signaling server configuration
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080"
	ListenAddr string `yaml:"listen_addr"`

	// MatchMode is "interest" or "room"
	MatchMode string `yaml:"match_mode"`

	// AllowedOrigins restricts websocket upgrades to these Origin values.
	// Empty allows every origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// SendBuffer is the per-connection outbound queue length
	SendBuffer int `yaml:"send_buffer"`

	// MaxMessageSize is the largest inbound frame accepted, in bytes
	MaxMessageSize int64 `yaml:"max_message_size"`

	// Tag limits for request-match
	MaxTags      int `yaml:"max_tags"`
	MaxTagLength int `yaml:"max_tag_length"`

	LogLevel string `yaml:"log_level"`
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigFile     string
	ListenAddr     string
	MatchMode      string
	AllowedOrigins []string
	LogLevel       string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. YAML config file (--config or WARPMATCH_CONFIG)
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		ListenAddr:     DefaultListenAddr,
		MatchMode:      DefaultMatchMode,
		SendBuffer:     DefaultSendBuffer,
		MaxMessageSize: DefaultMaxMessageSize,
		MaxTags:        matchmaking.DefaultMaxTags,
		MaxTagLength:   matchmaking.DefaultMaxTagLength,
		LogLevel:       DefaultLogLevel,
	}

	path := firstNonEmpty(opts.ConfigFile, os.Getenv("WARPMATCH_CONFIG"))
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ListenAddr = firstNonEmpty(opts.ListenAddr, os.Getenv("LISTEN_ADDR"), cfg.ListenAddr)
	cfg.MatchMode = firstNonEmpty(opts.MatchMode, os.Getenv("MATCH_MODE"), cfg.MatchMode)
	cfg.LogLevel = firstNonEmpty(opts.LogLevel, os.Getenv("LOG_LEVEL"), cfg.LogLevel)

	if len(opts.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = opts.AllowedOrigins
	} else if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		cfg.AllowedOrigins = splitList(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var err error
	if c.ListenAddr == "" {
		err = multierr.Append(err, errors.New("listen_addr must not be empty"))
	}
	if _, modeErr := matchmaking.ParseMode(c.MatchMode); modeErr != nil {
		err = multierr.Append(err, modeErr)
	}
	if c.SendBuffer <= 0 {
		err = multierr.Append(err, fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer))
	}
	if c.MaxMessageSize < 1024 {
		err = multierr.Append(err, fmt.Errorf("max_message_size must be at least 1024, got %d", c.MaxMessageSize))
	}
	if c.MaxTags <= 0 {
		err = multierr.Append(err, fmt.Errorf("max_tags must be positive, got %d", c.MaxTags))
	}
	if c.MaxTagLength <= 0 {
		err = multierr.Append(err, fmt.Errorf("max_tag_length must be positive, got %d", c.MaxTagLength))
	}
	return err
}

// Mode returns the parsed match mode. Only valid after Validate succeeded.
func (c *Config) Mode() matchmaking.Mode {
	m, _ := matchmaking.ParseMode(c.MatchMode)
	return m
}

// RegistryOptions converts the config into matchmaking registry options.
func (c *Config) RegistryOptions() matchmaking.Options {
	return matchmaking.Options{
		Mode:         c.Mode(),
		MaxTags:      c.MaxTags,
		MaxTagLength: c.MaxTagLength,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
