// Package schema supplies the entity-relationship document that grounds
// query generation. The document is treated as an opaque string; parsing
// it is the generation model's job, not ours.
package schema

import (
	"fmt"
	"os"
	"sync"
)

// Supplier provides the entity-relationship document text.
type Supplier interface {
	// SchemaText returns the current document contents.
	SchemaText() string
}

// StaticSupplier wraps a fixed string. Useful for tests and one-shot runs.
type StaticSupplier string

// SchemaText returns the wrapped string.
func (s StaticSupplier) SchemaText() string { return string(s) }

// FileSupplier loads the document from disk once and serves it from memory.
// Reload swaps the contents atomically; readers never observe a partial
// document.
type FileSupplier struct {
	path string

	mu   sync.RWMutex
	text string
}

// NewFileSupplier reads the document at path.
func NewFileSupplier(path string) (*FileSupplier, error) {
	s := &FileSupplier{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// SchemaText returns the loaded document contents.
func (s *FileSupplier) SchemaText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Path returns the document location.
func (s *FileSupplier) Path() string { return s.path }

// Reload re-reads the document from disk.
func (s *FileSupplier) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read schema document: %w", err)
	}

	s.mu.Lock()
	s.text = string(data)
	s.mu.Unlock()
	return nil
}
