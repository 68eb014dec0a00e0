package config

var Presets = map[string]*Config{
	"quick": {
		Model: "linear", Epochs: 3, BatchSize: 8, LR: 0.05, Momentum: 0.0,
		Schedule: ScheduleConfig{Kind: "constant"},
		Data:     DataConfig{Samples: 64, Features: 2, Noise: 0.01, Seed: 1},
		Checkpoint: CheckpointConfig{
			Dir: "runs", ReplacePrevious: true,
		},
	},
	"long": {
		Model: "linear", Epochs: 50, BatchSize: 32, LR: 0.01, Momentum: 0.9,
		Schedule: ScheduleConfig{Kind: "cosine", DecaySteps: 50, MinFactor: 0.05},
		Data:     DataConfig{Samples: 1024, Features: 8, Noise: 0.1, Seed: 1},
		Checkpoint: CheckpointConfig{
			Dir: "runs", ReplacePrevious: false, SaveEvery: 10,
		},
		EarlyStopping: EarlyStopConfig{
			Enabled: true, Source: "val", Metric: "Criterion",
			MinDelta: 1e-4, Patience: 5, LowerIsBest: true, StartEpoch: 5,
		},
	},
	"amp": {
		Model: "linear", Epochs: 20, BatchSize: 16, LR: 0.01, Momentum: 0.9,
		MixedPrecision: true,
		Schedule:       ScheduleConfig{Kind: "exponential", Gamma: 0.9, Floor: 1e-4},
		Data:           DataConfig{Samples: 512, Features: 4, Noise: 0.05, Seed: 1},
		Checkpoint: CheckpointConfig{
			Dir: "runs", ReplacePrevious: true, SaveEvery: 5,
		},
	},
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
