package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string         `json:"log_level" yaml:"log_level"`
	API      APIConfig      `json:"api" yaml:"api"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Ingest   IngestConfig   `json:"ingest" yaml:"ingest"`
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type EngineConfig struct {
	CooldownMinutes int           `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	RuleTimeout     time.Duration `json:"rule_timeout" yaml:"rule_timeout"`
	RecentLimit     int           `json:"recent_limit" yaml:"recent_limit"`
}

type IngestConfig struct {
	Kafka KafkaIngestConfig `json:"kafka" yaml:"kafka"`
}

type KafkaIngestConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type DispatchConfig struct {
	Log     LogChannelConfig     `json:"log" yaml:"log"`
	Webhook WebhookChannelConfig `json:"webhook" yaml:"webhook"`
	Kafka   KafkaChannelConfig   `json:"kafka" yaml:"kafka"`
}

type LogChannelConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type WebhookChannelConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type KafkaChannelConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		API:      APIConfig{Enabled: true, Addr: ":8080"},
		Storage:  StorageConfig{Driver: "sqlite", DSN: "file:vigil.db?_pragma=busy_timeout(5000)"},
		Engine: EngineConfig{
			CooldownMinutes: 60,
			RuleTimeout:     5 * time.Second,
			RecentLimit:     1000,
		},
		Ingest: IngestConfig{
			Kafka: KafkaIngestConfig{Enabled: false},
		},
		Dispatch: DispatchConfig{
			Log:     LogChannelConfig{Enabled: true},
			Webhook: WebhookChannelConfig{Enabled: false, Timeout: 10 * time.Second},
			Kafka:   KafkaChannelConfig{Enabled: false},
		},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Engine.CooldownMinutes <= 0 {
		cfg.Engine.CooldownMinutes = 60
	}
	if cfg.Engine.RecentLimit <= 0 {
		cfg.Engine.RecentLimit = 1000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Dispatch.Webhook.Timeout <= 0 {
		cfg.Dispatch.Webhook.Timeout = 10 * time.Second
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported storage.driver: %s", cfg.Storage.Driver)
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Dispatch.Webhook.Enabled && cfg.Dispatch.Webhook.URL == "" {
		return errors.New("dispatch.webhook.url required when dispatch.webhook.enabled is true")
	}
	if cfg.Dispatch.Kafka.Enabled {
		if len(cfg.Dispatch.Kafka.Brokers) == 0 || cfg.Dispatch.Kafka.Topic == "" {
			return errors.New("dispatch.kafka requires brokers and topic")
		}
	}
	if cfg.Engine.RuleTimeout < 0 {
		return errors.New("engine.rule_timeout must not be negative")
	}
	return nil
}

// Cooldown returns the configured dedup window as a duration.
func (c EngineConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// Manager holds the current config behind an atomic pointer so handlers
// and loops can read it without locking.
type Manager struct {
	path string
	cfg  atomic.Value
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	return m, nil
}

// NewStaticManager wraps an in-memory config with no backing file.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return nil, errors.New("no config file to reload")
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	return cfg, nil
}

func ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
