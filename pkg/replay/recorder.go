package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// RunListFile is the name of the executed command log inside the log directory
const RunListFile = "chaos_run_list.log"

// Recorder appends every executed command to a run list in replay format,
// so any run can be fed back through --replay
type Recorder struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewRecorder opens (or creates) the run list at path for appending
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run list directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run list: %w", err)
	}
	return &Recorder{path: path, file: f}, nil
}

// Path returns the run list location
func (r *Recorder) Path() string {
	return r.path
}

// Record appends one entry and syncs it to disk; the host may go down right
// after a terminal command is recorded
func (r *Recorder) Record(e Entry) error {
	data, err := yaml.Marshal([]Entry{e})
	if err != nil {
		return fmt.Errorf("failed to marshal run list entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return fmt.Errorf("run list %s is closed", r.path)
	}
	if _, err := r.file.Write(data); err != nil {
		return fmt.Errorf("failed to write run list: %w", err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync run list: %w", err)
	}
	return nil
}

// Close closes the run list
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
