// Package event defines the structured events emitted by the training
// and evaluation engines and the sinks that consume them. The engines
// never format human-readable text; rendering belongs to sinks.
package event

// Event is one orchestration occurrence. The set of implementations is
// closed; sinks switch on the concrete type.
type Event interface {
	event()
}

// TrainingStart opens a training session.
type TrainingStart struct {
	Model     string
	NumEpochs int
}

// EpochStart opens one training epoch.
type EpochStart struct {
	Model string
	Epoch int
	LR    float64
}

// BatchProgress reports loader progress inside one pass. Feedback is
// display-only (e.g. the last loss) and never affects iteration.
type BatchProgress struct {
	Source     string
	Batch      int
	NumBatches int
	NumSamples int
	Feedback   map[string]float64
}

// Metrics carries the averaged metrics of one completed pass.
type Metrics struct {
	Model  string
	Source string
	Epoch  int
	Values map[string]float64
}

// EvalStart opens an evaluation pass.
type EvalStart struct {
	Model  string
	Source string
}

// EvalEnd closes an evaluation pass.
type EvalEnd struct {
	Model  string
	Source string
}

// Divergence reports a NaN/Inf criterion; the epoch was cut short but
// the run continues.
type Divergence struct {
	Model string
	Epoch int
	Batch int
	Value float64
}

// Warning reports a tolerated failure of an optional feature.
type Warning struct {
	Source  string
	Message string
}

// Terminated reports that a trainer released its model binding.
type Terminated struct {
	Model string
}

// TrainingEnd closes a training session.
type TrainingEnd struct {
	Model string
	Epoch int
}

func (TrainingStart) event() {}
func (EpochStart) event()    {}
func (BatchProgress) event() {}
func (Metrics) event()       {}
func (EvalStart) event()     {}
func (EvalEnd) event()       {}
func (Divergence) event()    {}
func (Warning) event()       {}
func (Terminated) event()    {}
func (TrainingEnd) event()   {}
