package memory

import (
	"context"
	"sync"

	"kardex/internal/domain/ledger"
)

// RecordingSink keeps emitted audit events in memory for inspection.
// Used by tests and local development mode.
type RecordingSink struct {
	mu        sync.Mutex
	Posted    []ledger.EntryPosted
	Corrected []ledger.BalanceCorrected
	Summaries []ledger.RecalculationSummary
	ZeroBasis []ledger.ZeroBasisCostWarning
}

var _ ledger.Sink = (*RecordingSink)(nil)

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) EntryPosted(_ context.Context, ev ledger.EntryPosted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Posted = append(s.Posted, ev)
}

func (s *RecordingSink) BalanceCorrected(_ context.Context, ev ledger.BalanceCorrected) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Corrected = append(s.Corrected, ev)
}

func (s *RecordingSink) RecalculationSummary(_ context.Context, ev ledger.RecalculationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summaries = append(s.Summaries, ev)
}

func (s *RecordingSink) ZeroBasisCostWarning(_ context.Context, ev ledger.ZeroBasisCostWarning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ZeroBasis = append(s.ZeroBasis, ev)
}

// CorrectionCount returns the number of corrective writes recorded.
func (s *RecordingSink) CorrectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Corrected)
}
