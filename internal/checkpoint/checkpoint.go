// Package checkpoint persists model and optimizer snapshots on disk,
// one directory per model, one artifact set per epoch. Writes commit
// atomically before any deletion.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound indicates no stored checkpoint matches the request.
var ErrNotFound = errors.New("checkpoint: not found")

// Latest selects the numerically highest stored epoch on Load.
const Latest = -1

const (
	epochPrefix = "epoch_"
	stateFile   = "state.json"
)

// TensorState is the serialized form of one tensor.
type TensorState struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Snapshot is one persisted training state.
type Snapshot struct {
	Epoch     int                    `json:"epoch"`
	Model     map[string]TensorState `json:"model_state"`
	Optimizer map[string][]float64   `json:"optimizer_state"`
}

// Store reads and writes snapshots under a base directory.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) modelDir(model string) string {
	return filepath.Join(s.baseDir, model)
}

func (s *Store) epochDir(model string, epoch int) string {
	return filepath.Join(s.modelDir(model), fmt.Sprintf("%s%04d", epochPrefix, epoch))
}

// Save writes snap under the model's directory keyed by snap.Epoch.
// The artifact is committed with a temp-file rename; prior epochs are
// deleted only after the commit succeeds when replacePrevious is set.
func (s *Store) Save(model string, snap Snapshot, replacePrevious bool) error {
	previous, err := s.List(model)
	if err != nil {
		return err
	}

	dir := s.epochDir(model, snap.Epoch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create %s: %w", dir, err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, stateFile+".tmp*")
	if err != nil {
		return fmt.Errorf("checkpoint: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, stateFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: commit snapshot: %w", err)
	}

	if replacePrevious {
		for _, epoch := range previous {
			if epoch == snap.Epoch {
				continue
			}
			if err := os.RemoveAll(s.epochDir(model, epoch)); err != nil {
				return fmt.Errorf("checkpoint: remove epoch %d: %w", epoch, err)
			}
		}
	}
	return nil
}

// Load reads the snapshot for the given epoch. Latest (-1) resolves to
// the numerically highest stored epoch.
func (s *Store) Load(model string, epoch int) (Snapshot, error) {
	if epoch == Latest {
		epochs, err := s.List(model)
		if err != nil {
			return Snapshot{}, err
		}
		if len(epochs) == 0 {
			return Snapshot{}, fmt.Errorf("%w: model %q has no checkpoints", ErrNotFound, model)
		}
		epoch = epochs[len(epochs)-1]
	}

	path := filepath.Join(s.epochDir(model, epoch), stateFile)
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, fmt.Errorf("%w: model %q epoch %d", ErrNotFound, model, epoch)
		}
		return Snapshot{}, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("checkpoint: decode %s: %w", path, err)
	}
	return snap, nil
}

// List returns the stored epochs for a model in ascending order. A
// model with no directory has no checkpoints.
func (s *Store) List(model string) ([]int, error) {
	entries, err := os.ReadDir(s.modelDir(model))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: list %q: %w", model, err)
	}

	epochs := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), epochPrefix) {
			continue
		}
		epoch, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), epochPrefix))
		if err != nil {
			continue
		}
		epochs = append(epochs, epoch)
	}
	sort.Ints(epochs)
	return epochs, nil
}

// Models returns every model name with at least one checkpoint.
func (s *Store) Models() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: list models: %w", err)
	}
	models := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			models = append(models, entry.Name())
		}
	}
	sort.Strings(models)
	return models, nil
}
