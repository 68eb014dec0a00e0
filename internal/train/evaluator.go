package train

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/san-kum/trainlab/internal/data"
	"github.com/san-kum/trainlab/internal/event"
	"github.com/san-kum/trainlab/internal/experiment"
	"github.com/san-kum/trainlab/internal/metric"
	"github.com/san-kum/trainlab/internal/nested"
)

// EvalConfig wires an evaluation pass.
type EvalConfig struct {
	Loader    data.Loader
	Objective Objective
	// Source labels the pass in events, e.g. "val" or "test".
	Source string
	// StoreOutputs keeps detached host copies of the model outputs, up
	// to MaxStoredOutputs (0 means unbounded).
	StoreOutputs     bool
	MaxStoredOutputs int
}

func (c EvalConfig) validate() error {
	if c.Loader == nil {
		return fmt.Errorf("%w: loader", ErrMissingCollaborator)
	}
	if c.Objective == nil {
		return fmt.Errorf("%w: objective", ErrMissingCollaborator)
	}
	return nil
}

// Evaluator runs read-only epoch passes producing averaged metrics. It
// never mutates parameters and never takes a model binding, so any
// number of evaluators may share one model.
type Evaluator struct {
	model     Model
	exp       *experiment.Experiment
	loader    *data.Progress
	objective Objective
	source    string

	storeOutputs bool
	outputs      *OutputsBuffer
	running      bool
}

func NewEvaluator(model Model, exp *experiment.Experiment, cfg EvalConfig) (*Evaluator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	source := cfg.Source
	if source == "" {
		source = "test"
	}
	objective := cfg.Objective.Clone()
	objective.Reset()
	return &Evaluator{
		model:        model,
		exp:          exp,
		loader:       data.NewProgress(cfg.Loader, source, exp.Sink),
		objective:    objective,
		source:       source,
		storeOutputs: cfg.StoreOutputs,
		outputs:      NewOutputsBuffer(cfg.MaxStoredOutputs),
	}, nil
}

// Outputs returns the buffer of stored outputs from the last pass.
func (e *Evaluator) Outputs() *OutputsBuffer { return e.outputs }

// Run performs one evaluation pass over the loader in order and emits a
// single averaged-metrics event. The engine goes idle -> running ->
// idle; one pass at a time.
func (e *Evaluator) Run(ctx context.Context) (map[string]float64, error) {
	if e.running {
		return nil, fmt.Errorf("%w: %s evaluation", ErrRunning, e.source)
	}
	e.running = true
	defer func() { e.running = false }()

	e.exp.Sink.Publish(event.EvalStart{Model: e.model.Name(), Source: e.source})

	e.model.SetTraining(false)
	e.objective.Reset()
	e.outputs.Clear()
	agg := metric.NewAggregate()

	e.loader.Reset()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		batch, err := e.loader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := e.runBatch(batch, agg); err != nil {
			return nil, err
		}
	}

	values := agg.Reduce()
	e.exp.Sink.Publish(event.Metrics{
		Model:  e.model.Name(),
		Source: e.source,
		Epoch:  e.model.Epoch(),
		Values: values,
	})
	e.exp.Sink.Publish(event.EvalEnd{Model: e.model.Name(), Source: e.source})
	return values, nil
}

func (e *Evaluator) runBatch(batch data.Batch, agg *metric.Aggregate) error {
	device := e.model.Device()
	inputs, err := nested.MoveTo(batch.Inputs, device)
	if err != nil {
		return err
	}
	targets, err := nested.MoveTo(batch.Targets, device)
	if err != nil {
		return err
	}

	outputs, err := e.model.Forward(inputs)
	if err != nil {
		return err
	}
	if err := e.objective.Update(outputs, targets); err != nil {
		return err
	}
	for name, value := range e.objective.Metrics() {
		if err := agg.Update(name, value); err != nil {
			return err
		}
	}
	if e.storeOutputs {
		e.store(outputs)
	}
	return nil
}

// store keeps a detached host copy of outputs. Transform failures are
// downgraded to a warning; outputs beyond the cap are dropped silently.
func (e *Evaluator) store(outputs any) {
	detached, err := nested.DetachToHost(outputs)
	if err != nil {
		if errors.Is(err, nested.ErrUnsupported) || errors.Is(err, nested.ErrNotReconstructible) {
			e.exp.Sink.Publish(event.Warning{
				Source:  e.source,
				Message: fmt.Sprintf("cannot store outputs: %v", err),
			})
			return
		}
		e.exp.Sink.Publish(event.Warning{Source: e.source, Message: err.Error()})
		return
	}
	e.outputs.Append(detached)
}
