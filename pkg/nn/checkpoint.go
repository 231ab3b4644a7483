package nn

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// SaveCheckpoint serializes a model state to path with atomic replace
// semantics: the state is written to a temporary file in the same
// directory and renamed over the target, so a crash mid-write never
// leaves a truncated checkpoint.
func SaveCheckpoint(path string, state any) error {
	data, err := msgpack.Marshal(state)
	if err != nil {
		return fmt.Errorf("nn: encode checkpoint: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("nn: checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ckpt-*")
	if err != nil {
		return fmt.Errorf("nn: checkpoint temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("nn: write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("nn: close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("nn: replace checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint into
// state. The caller checks os.IsNotExist on the wrapped error to treat
// a missing checkpoint as "start fresh".
func LoadCheckpoint(path string, state any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("nn: read checkpoint: %w", err)
	}
	if err := msgpack.Unmarshal(data, state); err != nil {
		return fmt.Errorf("nn: decode checkpoint: %w", err)
	}
	return nil
}
