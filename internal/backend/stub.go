package backend

import (
	"context"
	"fmt"
	"sync"
)

// Stub is an in-process adapter used by dry runs and tests: it records the
// samples it receives and can be told to fail a number of times per sample
// to exercise the orchestrator's retry path.
type Stub struct {
	// FailuresPerSample makes the first N Simulate calls for every sample
	// return an error before succeeding.
	FailuresPerSample int

	mu       sync.Mutex
	samples  []*Sample
	attempts map[string]int
}

// NewStub returns a stub adapter that always succeeds.
func NewStub() *Stub {
	return &Stub{attempts: make(map[string]int)}
}

// Columns implements Adapter.
func (s *Stub) Columns() []string { return nil }

// Simulate implements Adapter.
func (s *Stub) Simulate(_ context.Context, _ string, sample *Sample) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	s.attempts[sample.FileID]++
	if s.attempts[sample.FileID] <= s.FailuresPerSample {
		return nil, fmt.Errorf("stub rejection %d for sample %s", s.attempts[sample.FileID], sample.FileID)
	}
	s.samples = append(s.samples, sample)
	return nil, nil
}

// Samples returns the successfully dispatched samples.
func (s *Stub) Samples() []*Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Sample(nil), s.samples...)
}

// Attempts reports how many times a sample was attempted.
func (s *Stub) Attempts(fileID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[fileID]
}
