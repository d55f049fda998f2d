package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/darmiel/sessionbridge/internal/core"
)

var _ core.Auditor = (*FileAuditor)(nil)

var ErrAuditorClosed = errors.New("auditor is closed")

// FileAuditor appends audit entries to a file, one JSON document per line.
// The file is opened in append mode and never truncated, so it can be shipped by a log collector.
type FileAuditor struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *json.Encoder
}

func NewFileAuditor(path string) (*FileAuditor, error) {
	if path == "" {
		return nil, errors.New("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log file: %w", err)
	}
	return &FileAuditor{
		path:    path,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// Path returns the file entries are appended to.
func (f *FileAuditor) Path() string {
	return f.path
}

func (f *FileAuditor) Log(entry core.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return ErrAuditorClosed
	}
	if err := f.encoder.Encode(stamp(entry)); err != nil {
		return fmt.Errorf("writing audit log entry: %w", err)
	}
	return nil
}

// Close flushes the file to disk and closes it. Later calls to Log fail with ErrAuditorClosed.
func (f *FileAuditor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := errors.Join(f.file.Sync(), f.file.Close())
	f.file = nil
	return err
}
