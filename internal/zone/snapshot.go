package zone

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// snapshotFile is the on-disk document: state keyed by zone id plus a
// checksum of the state payload, so a truncated or corrupted write is
// detected on load rather than silently applied.
type snapshotFile struct {
	Version  int             `json:"version"`
	States   map[ID]State    `json:"states"`
	Checksum string          `json:"checksum"`
}

const snapshotVersion = 1

func checksum(states map[ID]State) (string, error) {
	body, err := json.Marshal(states)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(body)
	return fmt.Sprintf("%x", sum), nil
}

// LoadSnapshot reads and verifies the zone-state snapshot at path. A
// missing file is not an error — callers fall back to DefaultState for
// every zone. A present-but-corrupt file is.
func LoadSnapshot(path string) (map[ID]State, error) {
	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc snapshotFile
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	want, err := checksum(doc.States)
	if err != nil {
		return nil, err
	}
	if want != doc.Checksum {
		return nil, fmt.Errorf("snapshot %s: checksum mismatch, file is corrupt", path)
	}
	return doc.States, nil
}

// SnapshotWriter owns the debounced persistence contract: every zone
// mutation resets a timer, and the file is written only once the timer
// fires undisturbed, or when Flush is called directly (shutdown path).
// Exactly one writer should exist per snapshot file.
type SnapshotWriter struct {
	path    string
	debounce time.Duration
	source  func() map[ID]State

	mu    sync.Mutex
	timer *time.Timer
}

// NewSnapshotWriter builds a writer targeting path, debouncing writes by
// the given duration (default 200ms), pulling state via source at
// write time so the persisted view is always current, not whatever it
// was when the timer was armed.
func NewSnapshotWriter(path string, debounce time.Duration, source func() map[ID]State) *SnapshotWriter {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &SnapshotWriter{path: path, debounce: debounce, source: source}
}

// NotifyChanged arms or rearms the debounce timer. Safe to call from the
// Service's OnChange hook on every mutation.
func (w *SnapshotWriter) NotifyChanged() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		_ = w.Flush()
	})
}

// Flush writes the current state immediately, bypassing any pending
// debounce timer. Called on graceful shutdown so the last mutation
// before exit is never lost.
func (w *SnapshotWriter) Flush() error {
	states := w.source()
	sum, err := checksum(states)
	if err != nil {
		return err
	}
	doc := snapshotFile{Version: snapshotVersion, States: states, Checksum: sum}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, w.path)
}
