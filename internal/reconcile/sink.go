package reconcile

import (
	"context"
	"sync"
)

// Sink receives finished reports. Publishing failures are surfaced to the
// caller but never corrupt the report itself.
type Sink interface {
	Publish(ctx context.Context, report *Report) error
}

// MultiSink publishes to every sink in order and returns the first error.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, report *Report) error {
	for _, sink := range m {
		if err := sink.Publish(ctx, report); err != nil {
			return err
		}
	}
	return nil
}

// MemorySink retains reports in memory for tests and the HTTP report
// endpoint.
type MemorySink struct {
	mu      sync.RWMutex
	reports []*Report
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, report *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

// Reports returns all published reports, oldest first.
func (s *MemorySink) Reports() []*Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// Latest returns the most recent report, or nil.
func (s *MemorySink) Latest() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.reports) == 0 {
		return nil
	}
	return s.reports[len(s.reports)-1]
}
