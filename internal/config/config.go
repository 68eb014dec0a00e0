package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEpochs    = 10
	DefaultBatchSize = 16
	DefaultLR        = 0.01
	DefaultMomentum  = 0.9
	DefaultSamples   = 256
	DefaultFeatures  = 4
	DefaultNoise     = 0.05
	DefaultPatience  = 5
)

type Config struct {
	Model          string           `yaml:"model"`
	Epochs         int              `yaml:"epochs"`
	BatchSize      int              `yaml:"batch_size"`
	LR             float64          `yaml:"lr"`
	Momentum       float64          `yaml:"momentum"`
	MixedPrecision bool             `yaml:"mixed_precision"`
	Schedule       ScheduleConfig   `yaml:"schedule"`
	Data           DataConfig       `yaml:"data"`
	Checkpoint     CheckpointConfig `yaml:"checkpoint"`
	EarlyStopping  EarlyStopConfig  `yaml:"early_stopping"`

	StoreOutputs     bool `yaml:"store_outputs"`
	MaxStoredOutputs int  `yaml:"max_stored_outputs"`
}

type ScheduleConfig struct {
	// Kind is one of constant, exponential or cosine.
	Kind       string  `yaml:"kind"`
	Gamma      float64 `yaml:"gamma"`
	Floor      float64 `yaml:"floor"`
	DecaySteps int     `yaml:"decay_steps"`
	MinFactor  float64 `yaml:"min_factor"`
}

type DataConfig struct {
	Samples  int     `yaml:"samples"`
	Features int     `yaml:"features"`
	Noise    float64 `yaml:"noise"`
	Seed     int64   `yaml:"seed"`
}

type CheckpointConfig struct {
	Dir             string `yaml:"dir"`
	ReplacePrevious bool   `yaml:"replace_previous"`
	// SaveEvery is an epoch interval; 0 disables periodic saving.
	SaveEvery int `yaml:"save_every"`
}

type EarlyStopConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Source      string  `yaml:"source"`
	Metric      string  `yaml:"metric"`
	MinDelta    float64 `yaml:"min_delta"`
	Patience    int     `yaml:"patience"`
	LowerIsBest bool    `yaml:"lower_is_best"`
	StartEpoch  int     `yaml:"start_epoch"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:     "linear",
		Epochs:    DefaultEpochs,
		BatchSize: DefaultBatchSize,
		LR:        DefaultLR,
		Momentum:  DefaultMomentum,
		Schedule: ScheduleConfig{
			Kind:      "constant",
			Gamma:     0.95,
			MinFactor: 0.1,
		},
		Data: DataConfig{
			Samples:  DefaultSamples,
			Features: DefaultFeatures,
			Noise:    DefaultNoise,
			Seed:     1,
		},
		Checkpoint: CheckpointConfig{
			Dir:             "runs",
			ReplacePrevious: true,
		},
		EarlyStopping: EarlyStopConfig{
			Source:      "val",
			Metric:      "Criterion",
			Patience:    DefaultPatience,
			LowerIsBest: true,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("config: epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.BatchSize)
	}
	if c.LR <= 0 {
		return fmt.Errorf("config: lr must be positive, got %f", c.LR)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("config: momentum must be in [0, 1), got %f", c.Momentum)
	}
	switch c.Schedule.Kind {
	case "", "constant", "exponential", "cosine":
	default:
		return fmt.Errorf("config: unknown schedule kind %q", c.Schedule.Kind)
	}
	if c.Data.Samples <= 0 {
		return fmt.Errorf("config: data.samples must be positive, got %d", c.Data.Samples)
	}
	if c.Data.Features <= 0 {
		return fmt.Errorf("config: data.features must be positive, got %d", c.Data.Features)
	}
	if c.EarlyStopping.Enabled && c.EarlyStopping.Patience <= 0 {
		return fmt.Errorf("config: early_stopping.patience must be positive, got %d", c.EarlyStopping.Patience)
	}
	return nil
}
