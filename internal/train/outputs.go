package train

// OutputsBuffer holds detached, host-resident output copies collected
// during an evaluation pass. Appends beyond the cap are dropped
// silently; the buffer is cleared at the start of every pass.
type OutputsBuffer struct {
	max   int
	items []any
}

// NewOutputsBuffer creates a buffer capped at max items. A non-positive
// max means unbounded.
func NewOutputsBuffer(max int) *OutputsBuffer {
	return &OutputsBuffer{max: max}
}

// Append stores item and reports whether it was kept.
func (b *OutputsBuffer) Append(item any) bool {
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, item)
	return true
}

func (b *OutputsBuffer) Clear() { b.items = b.items[:0] }

func (b *OutputsBuffer) Len() int { return len(b.items) }

// Items returns the stored outputs in append order.
func (b *OutputsBuffer) Items() []any { return b.items }
