package ledger

import (
	"context"

	"kardex/internal/core/id"
)

// Audit events emitted by the posting path and the replay engine. The sink
// is an external collaborator: the ledger emits and does not depend on how
// events are recorded.

// EntryPosted is emitted after a movement commits.
type EntryPosted struct {
	Entry     MovementEntry `json:"entry"`
	Backdated bool          `json:"backdated"`
}

// BalanceCorrected is emitted for every corrective write done by a replay.
type BalanceCorrected struct {
	EntryID    id.ID   `json:"entryId"`
	Scope      Scope   `json:"scope"`
	OldBalance Balance `json:"oldBalance"`
	NewBalance Balance `json:"newBalance"`
}

// RecalculationSummary is emitted once per scope replay.
type RecalculationSummary struct {
	Scope     Scope `json:"scope"`
	Visited   int   `json:"visited"`
	Corrected int   `json:"corrected"`

	// First and last corrective deltas of the sweep, absent when nothing
	// was corrected.
	FirstCorrection *BalanceCorrected `json:"firstCorrection,omitempty"`
	LastCorrection  *BalanceCorrected `json:"lastCorrection,omitempty"`
}

// ZeroBasisCostWarning is emitted when a negative-allowed scope had to
// derive a cost basis with no history. Execution continues.
type ZeroBasisCostWarning struct {
	Scope   Scope `json:"scope"`
	EntryID id.ID `json:"entryId"`
}

// Sink records who triggered a mutation and what changed. Emission failures
// must not fail the ledger operation; implementations log and move on.
type Sink interface {
	EntryPosted(ctx context.Context, ev EntryPosted)
	BalanceCorrected(ctx context.Context, ev BalanceCorrected)
	RecalculationSummary(ctx context.Context, ev RecalculationSummary)
	ZeroBasisCostWarning(ctx context.Context, ev ZeroBasisCostWarning)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) EntryPosted(context.Context, EntryPosted)                   {}
func (NopSink) BalanceCorrected(context.Context, BalanceCorrected)         {}
func (NopSink) RecalculationSummary(context.Context, RecalculationSummary) {}
func (NopSink) ZeroBasisCostWarning(context.Context, ZeroBasisCostWarning) {}
