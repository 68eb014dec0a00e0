package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/trainlab/internal/checkpoint"
	"github.com/san-kum/trainlab/internal/config"
	"github.com/san-kum/trainlab/internal/data"
	"github.com/san-kum/trainlab/internal/event"
	"github.com/san-kum/trainlab/internal/experiment"
	"github.com/san-kum/trainlab/internal/hook"
	"github.com/san-kum/trainlab/internal/nn"
	"github.com/san-kum/trainlab/internal/train"
	"github.com/san-kum/trainlab/internal/tui"
)

var (
	runDir  string
	runName string

	configFile string
	preset     string
	live       bool

	epochs         int
	batchSize      int
	lr             float64
	momentum       float64
	mixedPrecision bool

	samples  int
	features int
	noise    float64
	seed     int64

	loadEpoch int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trainlab",
		Short: "model training and evaluation lab",
	}

	rootCmd.PersistentFlags().StringVar(&runDir, "dir", "runs", "run directory")
	rootCmd.PersistentFlags().StringVar(&runName, "name", "default", "experiment name")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "train a model",
		RunE:  runTraining,
	}
	trainCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	trainCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	trainCmd.Flags().BoolVar(&live, "live", false, "live training monitor")
	trainCmd.Flags().IntVar(&epochs, "epochs", config.DefaultEpochs, "number of epochs")
	trainCmd.Flags().IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "batch size")
	trainCmd.Flags().Float64Var(&lr, "lr", config.DefaultLR, "base learning rate")
	trainCmd.Flags().Float64Var(&momentum, "momentum", config.DefaultMomentum, "sgd momentum")
	trainCmd.Flags().BoolVar(&mixedPrecision, "amp", false, "mixed precision (loss scaling)")
	trainCmd.Flags().IntVar(&samples, "samples", config.DefaultSamples, "synthetic samples")
	trainCmd.Flags().IntVar(&features, "features", config.DefaultFeatures, "synthetic features")
	trainCmd.Flags().Float64Var(&noise, "noise", config.DefaultNoise, "target noise")
	trainCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")

	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "evaluate a stored checkpoint on the test split",
		RunE:  runEvaluation,
	}
	evalCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	evalCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	evalCmd.Flags().IntVar(&loadEpoch, "epoch", checkpoint.Latest, "checkpoint epoch (-1 = latest)")

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "resume training from the latest checkpoint",
		RunE:  runResume,
	}
	resumeCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	resumeCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	resumeCmd.Flags().BoolVar(&live, "live", false, "live training monitor")
	resumeCmd.Flags().IntVar(&epochs, "epochs", config.DefaultEpochs, "additional epochs")

	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "list stored checkpoints",
		RunE:  listCheckpoints,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(trainCmd, evalCmd, resumeCmd, checkpointsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildConfig layers preset, config file and changed flags, in that
// order of increasing precedence.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		copied := *p
		cfg = &copied
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("epochs") {
		cfg.Epochs = epochs
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = batchSize
	}
	if cmd.Flags().Changed("lr") {
		cfg.LR = lr
	}
	if cmd.Flags().Changed("momentum") {
		cfg.Momentum = momentum
	}
	if cmd.Flags().Changed("amp") {
		cfg.MixedPrecision = mixedPrecision
	}
	if cmd.Flags().Changed("samples") {
		cfg.Data.Samples = samples
	}
	if cmd.Flags().Changed("features") {
		cfg.Data.Features = features
	}
	if cmd.Flags().Changed("noise") {
		cfg.Data.Noise = noise
	}
	if cmd.Flags().Changed("seed") {
		cfg.Data.Seed = seed
	}
	if cmd.Flags().Changed("dir") {
		cfg.Checkpoint.Dir = runDir
	} else if cfg.Checkpoint.Dir != "" {
		runDir = cfg.Checkpoint.Dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// synthesize draws a noisy linear regression problem: features from a
// standard normal, targets xW + b plus noise, all from one seed so
// train/eval runs see the same data.
func synthesize(cfg config.DataConfig) (features, targets [][]float64) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	weights := make([]float64, cfg.Features)
	for i := range weights {
		weights[i] = rng.NormFloat64()
	}
	bias := rng.NormFloat64()

	features = make([][]float64, cfg.Samples)
	targets = make([][]float64, cfg.Samples)
	for i := range features {
		row := make([]float64, cfg.Features)
		y := bias
		for j := range row {
			row[j] = rng.NormFloat64()
			y += row[j] * weights[j]
		}
		features[i] = row
		targets[i] = []float64{y + rng.NormFloat64()*cfg.Noise}
	}
	return features, targets
}

// split carves the synthesized set into train/val/test (80/10/10).
func split(features, targets [][]float64) (trainX, trainY, valX, valY, testX, testY [][]float64) {
	n := len(features)
	trainEnd := n * 8 / 10
	valEnd := n * 9 / 10
	return features[:trainEnd], targets[:trainEnd],
		features[trainEnd:valEnd], targets[trainEnd:valEnd],
		features[valEnd:], targets[valEnd:]
}

func buildSchedule(sc config.ScheduleConfig) train.Schedule {
	switch sc.Kind {
	case "exponential":
		return train.Exponential(sc.Gamma, sc.Floor)
	case "cosine":
		return train.Cosine(sc.DecaySteps, sc.MinFactor)
	default:
		return train.Constant()
	}
}

func buildTrainer(cfg *config.Config, exp *experiment.Experiment) (*train.Trainer, *nn.Linear, error) {
	features, targets := synthesize(cfg.Data)
	trainX, trainY, valX, valY, _, _ := split(features, targets)

	trainLoader, err := data.NewSliceLoader(trainX, trainY, cfg.BatchSize)
	if err != nil {
		return nil, nil, err
	}
	valLoader, err := data.NewSliceLoader(valX, valY, cfg.BatchSize)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Data.Seed + 1))
	model := nn.NewLinear(cfg.Model, cfg.Data.Features, 1, rng)

	trainer, err := train.NewTrainer(model, exp, train.TrainerConfig{
		Loader:         trainLoader,
		Objective:      nn.NewMSE(),
		Optimizer:      nn.NewSGD(cfg.LR, cfg.Momentum),
		BaseLR:         cfg.LR,
		Schedule:       buildSchedule(cfg.Schedule),
		MixedPrecision: cfg.MixedPrecision,
		ValLoader:      valLoader,
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.Checkpoint.SaveEvery > 0 {
		trainer.RegisterPostEpochHook(hook.Every(
			cfg.Checkpoint.SaveEvery, 0, hook.Saving(cfg.Checkpoint.ReplacePrevious)))
	}
	if cfg.EarlyStopping.Enabled {
		stopping := &hook.EarlyStopping{
			Source:      cfg.EarlyStopping.Source,
			Metric:      cfg.EarlyStopping.Metric,
			MinDelta:    cfg.EarlyStopping.MinDelta,
			Patience:    cfg.EarlyStopping.Patience,
			LowerIsBest: cfg.EarlyStopping.LowerIsBest,
			StartEpoch:  cfg.EarlyStopping.StartEpoch,
		}
		trainer.RegisterPostEpochHook(stopping.Hook())
	}
	return trainer, model, nil
}

// trainWith runs the session against either the console sink or the
// live monitor fed through a channel sink.
func trainWith(cfg *config.Config, numEpochs int, prepare func(*experiment.Experiment) (*train.Trainer, error)) error {
	if live {
		channel := event.NewChannel(256)
		exp := experiment.New(runName, runDir, channel)
		trainer, err := prepare(exp)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			defer close(channel.C)
			if err := trainer.Train(context.Background(), numEpochs); err != nil {
				errCh <- err
				return
			}
			errCh <- trainer.SaveCheckpoint(cfg.Checkpoint.ReplacePrevious)
		}()
		if err := tui.RunLive(channel.C); err != nil {
			return err
		}
		return <-errCh
	}

	exp := experiment.New(runName, runDir, event.NewConsole(os.Stdout, true))
	trainer, err := prepare(exp)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := trainer.Train(context.Background(), numEpochs); err != nil {
		return err
	}
	if err := trainer.SaveCheckpoint(cfg.Checkpoint.ReplacePrevious); err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", time.Since(start))
	for name, value := range trainer.LastMetrics("train") {
		fmt.Printf("  train %s: %.6f\n", name, value)
	}
	for name, value := range trainer.LastMetrics("val") {
		fmt.Printf("  val %s: %.6f\n", name, value)
	}
	return nil
}

func runTraining(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	return trainWith(cfg, cfg.Epochs, func(exp *experiment.Experiment) (*train.Trainer, error) {
		trainer, _, err := buildTrainer(cfg, exp)
		return trainer, err
	})
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	extra := cfg.Epochs
	if cmd.Flags().Changed("epochs") {
		extra = epochs
	}
	return trainWith(cfg, extra, func(exp *experiment.Experiment) (*train.Trainer, error) {
		trainer, _, err := buildTrainer(cfg, exp)
		if err != nil {
			return nil, err
		}
		if err := trainer.LoadCheckpoint(checkpoint.Latest); err != nil {
			return nil, err
		}
		return trainer, nil
	})
}

func runEvaluation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	features, targets := synthesize(cfg.Data)
	_, _, _, _, testX, testY := split(features, targets)
	testLoader, err := data.NewSliceLoader(testX, testY, cfg.BatchSize)
	if err != nil {
		return err
	}
	trainX, trainY, _, _, _, _ := split(features, targets)
	trainLoader, err := data.NewSliceLoader(trainX, trainY, cfg.BatchSize)
	if err != nil {
		return err
	}

	exp := experiment.New(runName, runDir, event.NewConsole(os.Stdout, false))
	model := nn.NewLinear(cfg.Model, cfg.Data.Features, 1, nil)

	// The trainer only restores the checkpoint; its binding is released
	// before the evaluation pass.
	trainer, err := train.NewTrainer(model, exp, train.TrainerConfig{
		Loader:    trainLoader,
		Objective: nn.NewMSE(),
		Optimizer: nn.NewSGD(cfg.LR, cfg.Momentum),
		BaseLR:    cfg.LR,
	})
	if err != nil {
		return err
	}
	if err := trainer.LoadCheckpoint(loadEpoch); err != nil {
		return err
	}
	if err := trainer.TerminateTraining(); err != nil {
		return err
	}

	evaluator, err := train.NewEvaluator(model, exp, train.EvalConfig{
		Loader:           testLoader,
		Objective:        nn.NewMSE(),
		Source:           "test",
		StoreOutputs:     cfg.StoreOutputs,
		MaxStoredOutputs: cfg.MaxStoredOutputs,
	})
	if err != nil {
		return err
	}

	values, err := evaluator.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("evaluated %s at epoch %d\n", model.Name(), model.Epoch())
	for name, value := range values {
		fmt.Printf("  %s: %.6f\n", name, value)
	}
	return nil
}

func listCheckpoints(cmd *cobra.Command, args []string) error {
	store := experiment.New(runName, runDir, nil).Checkpoints

	models, err := store.Models()
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Println("no checkpoints found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tEPOCHS\tLATEST")
	for _, model := range models {
		stored, err := store.List(model)
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\n", model, len(stored), stored[len(stored)-1])
	}
	return w.Flush()
}
