package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devblac/state-lens/internal/network"
)

// Config holds the YAML configuration.
type Config struct {
	Version int           `yaml:"version"`
	Global  GlobalConfig  `yaml:"global"`
	Network NetworkConfig `yaml:"network"`
	RPC     RPCConfig     `yaml:"rpc"`
	Decoder DecoderConfig `yaml:"decoder"`
	Server  ServerConfig  `yaml:"server"`
	Sinks   []Sink        `yaml:"sinks"`
}

type GlobalConfig struct {
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
}

// NetworkConfig picks a preset and optionally overrides its fields.
type NetworkConfig struct {
	Preset     string `yaml:"preset"`
	ID         string `yaml:"id"`
	Passphrase string `yaml:"passphrase"`
	RPCURL     string `yaml:"rpc_url"`
	HorizonURL string `yaml:"horizon_url"`
}

type RPCConfig struct {
	Timeout    string  `yaml:"timeout"`
	Retries    *int    `yaml:"retries"`
	RatePerSec float64 `yaml:"rate_per_sec"`
}

type DecoderConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
	CacheSize int `yaml:"cache_size"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Sink receives a summary whenever an inspection finds changes.
type Sink struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	WebhookURL string `yaml:"webhook_url"`
	Template   string `yaml:"template"`
	URL        string `yaml:"url"`
	Method     string `yaml:"method"`
}

const (
	DefaultDBPath    = "state-lens.db"
	DefaultTimeout   = 30 * time.Second
	DefaultRetries   = 2
	DefaultWorkers   = 2
	DefaultQueueSize = 64
	DefaultCacheSize = 512
	DefaultAddr      = ":8080"
)

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Version: 1}
	_ = cfg.Validate()
	return cfg
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// Validate checks each section and fills defaults in place.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if c.Global.DBPath == "" {
		c.Global.DBPath = DefaultDBPath
	}
	switch strings.ToLower(c.Global.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("global: unsupported log_level: %s", c.Global.LogLevel)
	}
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := c.RPC.Validate(); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}

	sinkIDs := map[string]struct{}{}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		if _, exists := sinkIDs[s.ID]; exists {
			return fmt.Errorf("duplicate sink id: %s", s.ID)
		}
		sinkIDs[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
	}
	return nil
}

func (n *NetworkConfig) Validate() error {
	if n.Preset == "" {
		n.Preset = network.DefaultPreset
	}
	if _, ok := network.ResolvePreset(n.Preset); !ok {
		return fmt.Errorf("unknown preset: %s (known: %s)", n.Preset, strings.Join(network.PresetIDs(), ", "))
	}
	if n.RPCURL != "" {
		if err := network.ValidateRPCURL(n.RPCURL); err != nil {
			return fmt.Errorf("rpc_url: %w", err)
		}
	}
	return nil
}

// Resolve overlays the explicit fields on the chosen preset.
func (n NetworkConfig) Resolve() network.Config {
	base, ok := network.ResolvePreset(n.Preset)
	if !ok {
		base, _ = network.ResolvePreset(network.DefaultPreset)
	}
	if n.ID != "" {
		base.ID = n.ID
	}
	if n.Passphrase != "" {
		base.Passphrase = n.Passphrase
	}
	if n.RPCURL != "" {
		base.RPCURL = network.NormalizeRPCURL(n.RPCURL)
	}
	if n.HorizonURL != "" {
		base.HorizonURL = n.HorizonURL
	}
	return base
}

func (r *RPCConfig) Validate() error {
	if r.Timeout != "" {
		d, err := time.ParseDuration(r.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
	}
	if r.Retries == nil {
		n := DefaultRetries
		r.Retries = &n
	}
	if *r.Retries < 0 {
		return errors.New("retries cannot be negative")
	}
	if r.RatePerSec < 0 {
		return errors.New("rate_per_sec cannot be negative")
	}
	return nil
}

// TimeoutDuration returns the per-request timeout, DefaultTimeout when unset.
func (r RPCConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(r.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultTimeout
}

// RetryCount returns the configured retries, DefaultRetries when unset.
func (r RPCConfig) RetryCount() int {
	if r.Retries == nil {
		return DefaultRetries
	}
	return *r.Retries
}

func (d *DecoderConfig) Validate() error {
	if d.Workers < 0 || d.QueueSize < 0 || d.CacheSize < 0 {
		return errors.New("workers, queue_size and cache_size cannot be negative")
	}
	if d.Workers == 0 {
		d.Workers = DefaultWorkers
	}
	if d.QueueSize == 0 {
		d.QueueSize = DefaultQueueSize
	}
	if d.CacheSize == 0 {
		d.CacheSize = DefaultCacheSize
	}
	return nil
}

func (s *Sink) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return errors.New("type is required")
	}

	switch strings.ToLower(s.Type) {
	case "slack", "teams":
		if s.WebhookURL == "" {
			return errors.New("webhook_url is required for slack/teams sinks")
		}
	case "webhook":
		if s.URL == "" {
			return errors.New("url is required for webhook sink")
		}
		if s.Method == "" {
			s.Method = "POST"
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", s.Type)
	}
	return nil
}

// Target is the URL the sink posts to, whichever field its type uses.
func (s Sink) Target() string {
	if s.URL != "" {
		return s.URL
	}
	return s.WebhookURL
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
