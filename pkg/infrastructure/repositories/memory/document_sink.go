package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// DocumentSink keeps rendered documents in memory
type DocumentSink struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// Verify interface compliance
var _ repositories.DocumentSink = (*DocumentSink)(nil)

// NewDocumentSink creates an empty document sink
func NewDocumentSink() *DocumentSink {
	return &DocumentSink{docs: make(map[string][]byte)}
}

// Exists reports whether name has been written
func (s *DocumentSink) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[name]
	return ok, nil
}

// Write stores data under name, failing if name is taken
func (s *DocumentSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[name]; ok {
		return "", fmt.Errorf("%s: %w", name, repositories.ErrDocumentExists)
	}
	s.docs[name] = append([]byte(nil), data...)
	return "memory://" + name, nil
}

// Get returns the document stored under name
func (s *DocumentSink) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[name]
	return data, ok
}

// Names returns the stored document names in sorted order
func (s *DocumentSink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
