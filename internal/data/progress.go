package data

import (
	"github.com/san-kum/trainlab/internal/event"
)

// Progress forwards a Loader unchanged while publishing one
// BatchProgress event per batch. Feedback sent with Send is display
// only and is attached to the next progress event.
type Progress struct {
	Loader
	source   string
	sink     event.Sink
	batch    int
	feedback map[string]float64
}

func NewProgress(loader Loader, source string, sink event.Sink) *Progress {
	return &Progress{Loader: loader, source: source, sink: sink}
}

func (p *Progress) Reset() {
	p.batch = 0
	p.Loader.Reset()
}

func (p *Progress) Next() (Batch, error) {
	batch, err := p.Loader.Next()
	if err != nil {
		return batch, err
	}
	p.batch++
	p.sink.Publish(event.BatchProgress{
		Source:     p.source,
		Batch:      p.batch,
		NumBatches: p.Loader.Len(),
		NumSamples: p.Loader.NumSamples(),
		Feedback:   p.feedback,
	})
	p.feedback = nil
	return batch, nil
}

// Send attaches display-only feedback values to the next progress
// event. It never affects iteration order.
func (p *Progress) Send(values map[string]float64) {
	if p.feedback == nil {
		p.feedback = make(map[string]float64, len(values))
	}
	for key, value := range values {
		p.feedback[key] = value
	}
}
