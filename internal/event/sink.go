package event

// Sink consumes orchestration events. Publish is called from the single
// goroutine driving the epoch loop and must not block it for long.
type Sink interface {
	Publish(e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// Multi fans one event out to several sinks in order.
type Multi []Sink

func (m Multi) Publish(e Event) {
	for _, sink := range m {
		sink.Publish(e)
	}
}

// Channel forwards events to a channel, dropping when the receiver lags
// so a stalled consumer cannot stall training.
type Channel struct {
	C chan Event
}

func NewChannel(buffer int) *Channel {
	return &Channel{C: make(chan Event, buffer)}
}

func (c *Channel) Publish(e Event) {
	select {
	case c.C <- e:
	default:
	}
}

// Recorder keeps every published event, for tests and inspection.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(e Event) {
	r.Events = append(r.Events, e)
}

// MetricsEvents returns the averaged-metric events seen so far.
func (r *Recorder) MetricsEvents() []Metrics {
	var out []Metrics
	for _, e := range r.Events {
		if m, ok := e.(Metrics); ok {
			out = append(out, m)
		}
	}
	return out
}
