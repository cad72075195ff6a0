// Package config holds the run configuration of the pipeline: a YAML file
// layered over DefaultConfig, then command-line overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/dataset"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/grover"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/keys"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/metrics"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/qkd"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/store"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the complete run configuration.
type Config struct {
	Seed    uint64        `yaml:"seed"`
	Workers int           `yaml:"workers"` // 0 means GOMAXPROCS
	Dataset DatasetConfig `yaml:"dataset"`
	Search  SearchConfig  `yaml:"search"`
	Channel ChannelConfig `yaml:"channel"`
	Keys    KeysConfig    `yaml:"keys"`
	Storage StorageConfig `yaml:"storage"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// DatasetConfig locates the anomaly table.
type DatasetConfig struct {
	Path          string `yaml:"path"`
	ScoreColumn   string `yaml:"score_column"`
	MaxRecords    int    `yaml:"max_records"`
	RequireScores bool   `yaml:"require_scores"`
}

// SearchConfig holds the search simulation parameters.
type SearchConfig struct {
	BaseShots        int     `yaml:"base_shots"`
	ShotBudgets      []int   `yaml:"shot_budgets"`
	SingleQubitError float64 `yaml:"single_qubit_error"`
	TwoQubitError    float64 `yaml:"two_qubit_error"`
}

// ChannelConfig holds the channel grid.
type ChannelConfig struct {
	TotalBits           int       `yaml:"total_bits"`
	NoiseLevels         []float64 `yaml:"noise_levels"`
	AttackProbabilities []float64 `yaml:"attack_probabilities"`
}

// KeysConfig selects where derived key bits come from.
type KeysConfig struct {
	Provenance string `yaml:"provenance"` // "fresh" or "channel"

	// ExportPath, when set, receives the hex-encoded key (mode 0600) so the
	// package can be decrypted later. Empty keeps the key in memory only.
	ExportPath string `yaml:"export_path"`
}

// StorageConfig selects the package sink.
type StorageConfig struct {
	Backend string      `yaml:"backend"` // "file", "redis" or "memory"
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis sink settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// OutputConfig locates the result tables.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// MetricsConfig controls the Prometheus text dump written after a run.
type MetricsConfig struct {
	Path string `yaml:"path"` // empty disables the dump
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() *Config {
	return &Config{
		Seed: constants.DefaultSeed,
		Dataset: DatasetConfig{
			Path:        "data/ai_detected_logs.csv",
			ScoreColumn: constants.DefaultScoreColumn,
			MaxRecords:  constants.DefaultMaxRecords,
		},
		Search: SearchConfig{
			BaseShots:        constants.DefaultBaseShots,
			ShotBudgets:      constants.DefaultShotBudgets(),
			SingleQubitError: constants.DefaultSingleQubitError,
			TwoQubitError:    constants.DefaultTwoQubitError,
		},
		Channel: ChannelConfig{
			TotalBits:           constants.DefaultTotalBits,
			NoiseLevels:         constants.DefaultNoiseLevels(),
			AttackProbabilities: constants.DefaultAttackProbabilities(),
		},
		Keys: KeysConfig{
			Provenance: keys.ProvenanceFresh.String(),
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Dir:     "secure_storage",
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "qals:package:",
			},
		},
		Output: OutputConfig{
			Dir: "evaluation",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "qals",
		},
	}
}

// LoadConfig loads configuration from a YAML file over the defaults. An
// empty path or a missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, qerrors.NewConfigurationError("config.LoadConfig", fmt.Errorf("parsing %s: %w", path, err))
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Write writes cfg as YAML to w.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

func invalid(field string, err error) error {
	return qerrors.NewConfigurationError("config.Validate", fmt.Errorf("%w: %s", err, field))
}

func isProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// Validate checks every setting. The first problem found is returned as a
// ConfigurationError naming the field.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return invalid("workers", qerrors.ErrInvalidParameter)
	}
	if c.Dataset.MaxRecords < 0 {
		return invalid("dataset.max_records", qerrors.ErrInvalidParameter)
	}

	if c.Search.BaseShots <= 0 {
		return invalid("search.base_shots", qerrors.ErrInvalidParameter)
	}
	if len(c.Search.ShotBudgets) == 0 {
		return invalid("search.shot_budgets", qerrors.ErrInvalidParameter)
	}
	for _, s := range c.Search.ShotBudgets {
		if s <= 0 {
			return invalid("search.shot_budgets", qerrors.ErrInvalidParameter)
		}
	}
	if !isProbability(c.Search.SingleQubitError) {
		return invalid("search.single_qubit_error", qerrors.ErrInvalidProbability)
	}
	if !isProbability(c.Search.TwoQubitError) {
		return invalid("search.two_qubit_error", qerrors.ErrInvalidProbability)
	}

	if c.Channel.TotalBits <= 0 {
		return invalid("channel.total_bits", qerrors.ErrInvalidParameter)
	}
	if len(c.Channel.NoiseLevels) == 0 {
		return invalid("channel.noise_levels", qerrors.ErrEmptyScenarioTable)
	}
	if len(c.Channel.AttackProbabilities) == 0 {
		return invalid("channel.attack_probabilities", qerrors.ErrEmptyScenarioTable)
	}
	for _, p := range c.Channel.NoiseLevels {
		if !isProbability(p) {
			return invalid("channel.noise_levels", qerrors.ErrInvalidProbability)
		}
	}
	for _, p := range c.Channel.AttackProbabilities {
		if !isProbability(p) {
			return invalid("channel.attack_probabilities", qerrors.ErrInvalidProbability)
		}
	}

	if _, err := keys.ParseProvenance(c.Keys.Provenance); err != nil {
		return invalid("keys.provenance", qerrors.ErrInvalidParameter)
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return invalid("storage.dir", qerrors.ErrInvalidParameter)
		}
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return invalid("storage.redis.addr", qerrors.ErrInvalidParameter)
		}
		if c.Storage.Redis.TTL < 0 {
			return invalid("storage.redis.ttl", qerrors.ErrInvalidParameter)
		}
	case BackendMemory:
	default:
		return invalid("storage.backend", qerrors.ErrInvalidParameter)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return invalid("logging.format", qerrors.ErrInvalidParameter)
	}
	return nil
}

// GroverConfig returns the search simulator settings.
func (c *Config) GroverConfig() grover.Config {
	return grover.Config{
		BaseShots:   c.Search.BaseShots,
		ShotBudgets: c.Search.ShotBudgets,
		Noise: grover.NoiseModel{
			SingleQubitError: c.Search.SingleQubitError,
			TwoQubitError:    c.Search.TwoQubitError,
		},
		Seed:    c.Seed,
		Workers: c.Workers,
	}
}

// QKDConfig returns the channel simulator settings. Key bits are retained
// only when keys are derived from the channel.
func (c *Config) QKDConfig() qkd.Config {
	return qkd.Config{
		TotalBits:           c.Channel.TotalBits,
		NoiseLevels:         c.Channel.NoiseLevels,
		AttackProbabilities: c.Channel.AttackProbabilities,
		Seed:                c.Seed,
		Workers:             c.Workers,
		KeepKeyBits:         c.KeyProvenance() == keys.ProvenanceChannel,
	}
}

// DatasetOptions returns the table reader options.
func (c *Config) DatasetOptions() dataset.Options {
	return dataset.Options{
		ScoreColumn:   c.Dataset.ScoreColumn,
		RequireScores: c.Dataset.RequireScores,
	}
}

// KeyProvenance returns the configured provenance, fresh when unparseable.
// Validate rejects unknown values before this is consulted.
func (c *Config) KeyProvenance() keys.Provenance {
	p, err := keys.ParseProvenance(c.Keys.Provenance)
	if err != nil {
		return keys.ProvenanceFresh
	}
	return p
}

// RedisSinkConfig returns the Redis sink settings.
func (c *Config) RedisSinkConfig() store.RedisConfig {
	r := c.Storage.Redis
	return store.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB, Prefix: r.Prefix, TTL: r.TTL}
}

// Logger builds the root logger writing to w.
func (c *Config) Logger(w io.Writer) *metrics.Logger {
	return metrics.NewLogger(
		metrics.WithOutput(w),
		metrics.WithLevel(metrics.ParseLevel(c.Logging.Level)),
		metrics.WithFormat(metrics.ParseFormat(c.Logging.Format)),
		metrics.WithName(constants.MetricsNamespace),
	)
}
