package ledger

import (
	"context"
	"time"

	"kardex/internal/core/id"
	"kardex/internal/core/types"
)

// Store is the durable, ordered collection of movement entries. A relational
// table is one valid backing, not a requirement; the in-memory store backs
// tests and local development.
//
// Ordering within a scope is always (document_date, seq). Entries are never
// physically reordered or deleted.
type Store interface {
	// Insert persists a stamped entry, assigning a per-scope insertion
	// sequence (monotonically increasing, never reassigned) and leaving
	// version at its initial value. The entry's balance fields are the
	// caller's provisional stamp.
	Insert(ctx context.Context, e *MovementEntry) error

	// Last returns the scope's latest entry by (document_date, seq),
	// or nil when the scope has no history.
	Last(ctx context.Context, scope Scope) (*MovementEntry, error)

	// LastBefore returns the latest entry ordering strictly before pos,
	// or nil when none exists.
	LastBefore(ctx context.Context, scope Scope, pos Position) (*MovementEntry, error)

	// ListFrom returns the scope's entries ordered by (document_date, seq),
	// starting at pos inclusive. A nil pos means the whole scope.
	ListFrom(ctx context.Context, scope Scope, pos *Position) ([]MovementEntry, error)

	// LastKnownUnitCost returns the weighted-average unit cost of the most
	// recent entry before pos whose balance quantity was positive, or zero
	// when the scope has no such history. A nil pos considers the whole
	// scope. Feeds the negative-tail cost carry-forward.
	LastKnownUnitCost(ctx context.Context, scope Scope, pos *Position) (types.Money, error)

	// CompareAndSwapBalance atomically rewrites the derived fields of one
	// entry iff its version still equals expectedVersion, incrementing the
	// version. Fails with VersionConflict otherwise; never a silent
	// overwrite.
	CompareAndSwapBalance(ctx context.Context, entryID id.ID, expectedVersion int64, stamp BalanceStamp) error

	// Scopes lists every scope of a company that has at least one entry.
	Scopes(ctx context.Context, companyID id.ID) ([]Scope, error)

	// LatestPerScope returns, for each (product, warehouse) of the company,
	// the most recent entry by (document_date, seq). Feeds the valorization
	// snapshot.
	LatestPerScope(ctx context.Context, companyID id.ID) ([]MovementEntry, error)

	// History returns entries matching the filter, ordered by
	// (document_date, seq), for audit and history views.
	History(ctx context.Context, filter HistoryFilter) ([]MovementEntry, error)
}

// BalanceStamp is the rewritable portion of an entry: derived costs for
// outgoing entries plus the running balance. Incoming entries keep their
// supplied unit cost; the replay engine passes it through unchanged.
type BalanceStamp struct {
	UnitCost         types.Money
	TotalCost        types.Money
	BalanceQty       types.Quantity
	BalanceTotalCost types.Money
}

// StampOf converts a costing result into the store's write format.
func StampOf(s Stamp) BalanceStamp {
	return BalanceStamp{
		UnitCost:         s.UnitCost,
		TotalCost:        s.TotalCost,
		BalanceQty:       s.Balance.Qty,
		BalanceTotalCost: s.Balance.TotalCost,
	}
}

// HistoryFilter narrows history queries.
type HistoryFilter struct {
	CompanyID   id.ID
	ProductID   *id.ID
	WarehouseID *id.ID
	Kind        *Kind
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}
