// Package nested implements a recursive transform over heterogeneous
// nested containers. It is how batches and outputs are moved between
// devices or detached without the engine knowing their exact layout.
package nested

import (
	"errors"
	"fmt"

	"github.com/san-kum/trainlab/internal/tensor"
)

var (
	// ErrUnsupported indicates a value that is neither a leaf of the
	// expected type nor a supported container.
	ErrUnsupported = errors.New("nested: unsupported value type")

	// ErrNotReconstructible indicates a record that cannot be rebuilt
	// from its field sequence.
	ErrNotReconstructible = errors.New("nested: record not reconstructible")
)

// Record is a fixed-arity tuple-like value that can be rebuilt from its
// field sequence. Cyclic records are not supported.
type Record interface {
	Fields() []any
	WithFields(fields []any) (Record, error)
}

// Apply returns a structurally equal copy of obj in which every leaf of
// type T has been replaced by fn(leaf). The supported containers form a
// closed set: string-keyed maps, maps with arbitrary hashable keys,
// slices, and Records.
func Apply[T any](obj any, fn func(T) T) (any, error) {
	if leaf, ok := obj.(T); ok {
		return fn(leaf), nil
	}

	switch v := obj.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			applied, err := Apply(item, fn)
			if err != nil {
				return nil, err
			}
			out[key] = applied
		}
		return out, nil

	case map[any]any:
		out := make(map[any]any, len(v))
		for key, item := range v {
			applied, err := Apply(item, fn)
			if err != nil {
				return nil, err
			}
			out[key] = applied
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			applied, err := Apply(item, fn)
			if err != nil {
				return nil, err
			}
			out[i] = applied
		}
		return out, nil

	case Record:
		fields := v.Fields()
		out := make([]any, len(fields))
		for i, item := range fields {
			applied, err := Apply(item, fn)
			if err != nil {
				return nil, err
			}
			out[i] = applied
		}
		rebuilt, err := v.WithFields(out)
		if err != nil {
			return nil, fmt.Errorf("%w: %T: %v", ErrNotReconstructible, v, err)
		}
		return rebuilt, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, obj)
	}
}

// MoveTo copies every tensor in obj onto the target device.
func MoveTo(obj any, device tensor.Device) (any, error) {
	return Apply(obj, func(t *tensor.Tensor) *tensor.Tensor {
		return t.To(device)
	})
}

// DetachToHost copies every tensor in obj to a detached host-resident
// tensor, for storage outside the training graph.
func DetachToHost(obj any) (any, error) {
	return Apply(obj, func(t *tensor.Tensor) *tensor.Tensor {
		return t.Detach()
	})
}
