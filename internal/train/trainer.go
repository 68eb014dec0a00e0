package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/san-kum/trainlab/internal/checkpoint"
	"github.com/san-kum/trainlab/internal/data"
	"github.com/san-kum/trainlab/internal/event"
	"github.com/san-kum/trainlab/internal/experiment"
	"github.com/san-kum/trainlab/internal/hook"
	"github.com/san-kum/trainlab/internal/metric"
	"github.com/san-kum/trainlab/internal/nested"
	"github.com/san-kum/trainlab/internal/tensor"
)

var trainerSeq atomic.Int64

// TrainerConfig wires a training session.
type TrainerConfig struct {
	Loader    data.Loader
	Objective Objective
	Optimizer Optimizer
	BaseLR    float64
	// Schedule defaults to Constant.
	Schedule Schedule
	// MixedPrecision selects the loss-scaling step strategy.
	MixedPrecision bool
	// ValLoader, when set, registers a post-epoch validation pass with
	// an independent copy of the objective.
	ValLoader data.Loader
}

func (c TrainerConfig) validate() error {
	if c.Loader == nil {
		return fmt.Errorf("%w: loader", ErrMissingCollaborator)
	}
	if c.Objective == nil {
		return fmt.Errorf("%w: objective", ErrMissingCollaborator)
	}
	if c.Optimizer == nil {
		return fmt.Errorf("%w: optimizer", ErrMissingCollaborator)
	}
	if c.BaseLR <= 0 {
		return fmt.Errorf("train: base learning rate must be positive, got %f", c.BaseLR)
	}
	return nil
}

// Trainer drives gradient descent over epochs. Construction takes the
// model binding; at most one live trainer may hold a model. The
// lifecycle is Constructed -> Bound -> Training -> Terminated, with
// Terminated terminal.
type Trainer struct {
	id        string
	model     Model
	exp       *experiment.Experiment
	loader    *data.Progress
	objective Objective
	optimizer Optimizer
	schedule  Schedule
	baseLR    float64
	strategy  StepStrategy

	validation *Evaluator
	preEpoch   hook.Registry
	postEpoch  hook.Registry

	state       State
	terminated  bool
	runCtx      context.Context
	lastMetrics map[string]map[string]float64
}

// NewTrainer binds a trainer to the model. It fails with the binding
// registry's ErrAlreadyBound while another live trainer holds it.
func NewTrainer(model Model, exp *experiment.Experiment, cfg TrainerConfig) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	t := &Trainer{
		id:          fmt.Sprintf("trainer-%d", trainerSeq.Add(1)),
		model:       model,
		exp:         exp,
		loader:      data.NewProgress(cfg.Loader, "train", exp.Sink),
		objective:   cfg.Objective,
		optimizer:   cfg.Optimizer,
		schedule:    cfg.Schedule,
		baseLR:      cfg.BaseLR,
		strategy:    Standard{},
		state:       Constructed,
		lastMetrics: make(map[string]map[string]float64),
	}
	if t.schedule == nil {
		t.schedule = Constant()
	}
	if cfg.MixedPrecision {
		t.strategy = NewLossScaling()
	}

	if err := exp.Bindings.Bind(t.id, model.Name()); err != nil {
		return nil, err
	}
	t.state = Bound

	if cfg.ValLoader != nil {
		validation, err := NewEvaluator(model, exp, EvalConfig{
			Loader:    cfg.ValLoader,
			Objective: cfg.Objective,
			Source:    "val",
		})
		if err != nil {
			return nil, err
		}
		t.validation = validation
		t.postEpoch.Register(func(hook.Trainer) error {
			return t.Validate()
		})
	}
	return t, nil
}

// State returns the lifecycle state.
func (t *Trainer) State() State { return t.state }

// Epoch returns the model's epoch counter.
func (t *Trainer) Epoch() int { return t.model.Epoch() }

// LastMetrics returns the averaged metrics of the last pass for a
// source ("train" or "val"), or nil if none ran yet.
func (t *Trainer) LastMetrics(source string) map[string]float64 {
	return t.lastMetrics[source]
}

// RegisterPreEpochHook appends a hook run before every epoch. Hooks
// registered after termination are kept but never execute.
func (t *Trainer) RegisterPreEpochHook(h hook.Func) { t.preEpoch.Register(h) }

// RegisterPostEpochHook appends a hook run after every epoch.
func (t *Trainer) RegisterPostEpochHook(h hook.Func) { t.postEpoch.Register(h) }

// Train runs numEpochs epochs. On a terminated trainer it is a no-op
// that emits a warning event. A ConvergenceError inside an epoch aborts
// that epoch only; hooks may still terminate the run between epochs.
func (t *Trainer) Train(ctx context.Context, numEpochs int) error {
	if t.terminated {
		t.exp.Sink.Publish(event.Warning{
			Source:  "train",
			Message: fmt.Sprintf("attempted to train %s after termination", t.model.Name()),
		})
		return nil
	}

	t.state = Training
	t.runCtx = ctx
	defer func() {
		t.runCtx = nil
		if !t.terminated {
			t.state = Bound
		}
	}()

	t.exp.Sink.Publish(event.TrainingStart{Model: t.model.Name(), NumEpochs: numEpochs})
	for i := 0; i < numEpochs; i++ {
		if t.terminated {
			break
		}
		if err := t.runEpoch(ctx); err != nil {
			return err
		}
	}
	t.exp.Sink.Publish(event.TrainingEnd{Model: t.model.Name(), Epoch: t.model.Epoch()})
	return nil
}

func (t *Trainer) runEpoch(ctx context.Context) error {
	if err := t.preEpoch.Execute(t); err != nil {
		return err
	}

	t.model.SetEpoch(t.model.Epoch() + 1)
	epoch := t.model.Epoch()
	lr := t.schedule(t.baseLR, epoch)
	t.optimizer.SetLR(lr)
	t.exp.Sink.Publish(event.EpochStart{Model: t.model.Name(), Epoch: epoch, LR: lr})

	t.model.SetTraining(true)
	agg := metric.NewAggregate()

	t.loader.Reset()
	batchIdx := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := t.loader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		batchIdx++

		if err := t.runBatch(batch, agg); err != nil {
			var conv *ConvergenceError
			if errors.As(err, &conv) {
				conv.Epoch = epoch
				conv.Batch = batchIdx
				t.exp.Sink.Publish(event.Divergence{
					Model: t.model.Name(),
					Epoch: conv.Epoch,
					Batch: conv.Batch,
					Value: conv.Value,
				})
				break
			}
			return err
		}
	}

	t.lastMetrics["train"] = agg.Reduce()
	t.exp.Sink.Publish(event.Metrics{
		Model:  t.model.Name(),
		Source: "train",
		Epoch:  epoch,
		Values: t.lastMetrics["train"],
	})

	return t.postEpoch.Execute(t)
}

func (t *Trainer) runBatch(batch data.Batch, agg *metric.Aggregate) error {
	device := t.model.Device()
	inputs, err := nested.MoveTo(batch.Inputs, device)
	if err != nil {
		return err
	}
	targets, err := nested.MoveTo(batch.Targets, device)
	if err != nil {
		return err
	}

	outputs, err := t.model.Forward(inputs)
	if err != nil {
		return err
	}
	if err := t.objective.Update(outputs, targets); err != nil {
		return err
	}

	criterion := t.objective.Criterion()
	if !criterion.IsFinite() {
		return &ConvergenceError{Value: criterion.Item()}
	}
	t.loader.Send(map[string]float64{"Loss": criterion.Item()})

	seed, err := t.strategy.Scale(t.objective.Gradient())
	if err != nil {
		return err
	}
	if err := t.model.Backward(seed); err != nil {
		return err
	}
	if err := t.strategy.Step(t.optimizer, t.model.Parameters()); err != nil {
		return err
	}
	t.strategy.Update()
	zeroGrads(t.model.Parameters())

	for name, value := range t.objective.Metrics() {
		if err := agg.Update(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Validate runs the validation pass, when one is configured.
func (t *Trainer) Validate() error {
	if t.validation == nil {
		return nil
	}
	ctx := t.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	values, err := t.validation.Run(ctx)
	if err != nil {
		return err
	}
	t.lastMetrics["val"] = values
	return nil
}

// TerminateTraining releases the model binding and marks the trainer
// terminated, permanently. It is idempotent.
func (t *Trainer) TerminateTraining() error {
	if t.terminated {
		return nil
	}
	t.terminated = true
	t.state = Terminated
	if err := t.exp.Bindings.Release(t.id, t.model.Name()); err != nil {
		return err
	}
	t.exp.Sink.Publish(event.Terminated{Model: t.model.Name()})
	return nil
}

// SaveCheckpoint snapshots the model and optimizer state under the
// current epoch.
func (t *Trainer) SaveCheckpoint(replacePrevious bool) error {
	snap := checkpoint.Snapshot{
		Epoch:     t.model.Epoch(),
		Model:     make(map[string]checkpoint.TensorState),
		Optimizer: t.optimizer.State(),
	}
	for _, p := range t.model.Parameters() {
		snap.Model[p.Name] = checkpoint.TensorState{
			Shape: append([]int(nil), p.Value.Shape...),
			Data:  append([]float64(nil), p.Value.Data...),
		}
	}
	return t.exp.Checkpoints.Save(t.model.Name(), snap, replacePrevious)
}

// LoadCheckpoint restores parameters, optimizer state and the epoch
// counter from a stored snapshot. Epoch checkpoint.Latest (-1) selects
// the most recent one. Tensors land on the model's current device.
func (t *Trainer) LoadCheckpoint(epoch int) error {
	snap, err := t.exp.Checkpoints.Load(t.model.Name(), epoch)
	if err != nil {
		return err
	}
	device := t.model.Device()
	for _, p := range t.model.Parameters() {
		state, ok := snap.Model[p.Name]
		if !ok {
			return fmt.Errorf("checkpoint: parameter %q missing from snapshot", p.Name)
		}
		value, err := tensor.New(append([]float64(nil), state.Data...), state.Shape...)
		if err != nil {
			return fmt.Errorf("checkpoint: parameter %q: %w", p.Name, err)
		}
		p.Value = value.To(device)
		p.Grad = tensor.Zeros(state.Shape...)
	}
	if err := t.optimizer.LoadState(snap.Optimizer); err != nil {
		return err
	}
	t.model.SetEpoch(snap.Epoch)
	return nil
}
