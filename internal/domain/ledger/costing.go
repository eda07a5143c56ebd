package ledger

import (
	"kardex/internal/core/apperror"
	"kardex/internal/core/types"
)

// Stamp is the result of costing one movement against a prior balance:
// the movement's realized unit cost and total cost, and the balance after it.
type Stamp struct {
	UnitCost  types.Money
	TotalCost types.Money
	Balance   Balance

	// ZeroBasis is set when an outgoing movement under the negative-allowed
	// policy had to derive a cost basis with no history on record. Surfaced
	// to the audit sink as a warning, not an error.
	ZeroBasis bool
}

// Engine implements weighted-average costing. Apply is a pure function:
// it computes and never persists or emits events.
type Engine struct {
	rounding types.Rounding
}

// NewEngine creates a costing engine with the given precision rules.
func NewEngine(r types.Rounding) *Engine {
	return &Engine{rounding: r}
}

// Rounding returns the engine's precision configuration.
func (e *Engine) Rounding() types.Rounding {
	return e.rounding
}

// Apply costs one movement against the prior balance.
//
// Incoming: the supplied unit cost is taken as-is; total cost is
// qty_in x unit_cost at money precision and both quantity and value are
// added to the balance.
//
// Outgoing: the unit cost is derived, never supplied. It equals the
// weighted-average unit cost immediately prior; under the negative-allowed
// policy with no positive prior quantity it falls back to lastKnownUnitCost
// (the last nonzero average on record for the scope, zero if none —
// flagged ZeroBasis).
//
// Under the default policy an outgoing quantity exceeding the prior balance
// fails with InsufficientStock and nothing is computed.
func (e *Engine) Apply(prior Balance, cand CandidateEntry, pol Policy, lastKnownUnitCost types.Money) (Stamp, error) {
	if cand.Kind.Incoming() {
		totalCost := e.rounding.Money(cand.UnitCost.Mul(cand.QtyIn.Decimal()))
		return Stamp{
			UnitCost:  cand.UnitCost,
			TotalCost: totalCost,
			Balance: Balance{
				Qty:       prior.Qty.Add(cand.QtyIn),
				TotalCost: prior.TotalCost.Add(totalCost),
			},
		}, nil
	}

	if cand.QtyOut > prior.Qty && !pol.AllowNegative {
		return Stamp{}, apperror.NewInsufficientStock(
			cand.Scope.ProductID.String(),
			cand.QtyOut.String(),
			prior.Qty.String(),
		)
	}

	var (
		unitCost  types.Money
		zeroBasis bool
	)
	if prior.Qty.IsPositive() {
		unitCost = e.rounding.UnitCost(prior.TotalCost.Div(prior.Qty.Decimal()))
	} else {
		// Reachable only under the negative-allowed policy: carry the last
		// known unit cost forward for the negative tail.
		unitCost = e.rounding.UnitCost(lastKnownUnitCost)
		zeroBasis = unitCost.IsZero()
	}

	totalCost := e.rounding.Money(unitCost.Mul(cand.QtyOut.Decimal()))
	return Stamp{
		UnitCost:  unitCost,
		TotalCost: totalCost,
		Balance: Balance{
			Qty:       prior.Qty.Sub(cand.QtyOut),
			TotalCost: prior.TotalCost.Sub(totalCost),
		},
		ZeroBasis: zeroBasis,
	}, nil
}

// Differs reports whether the stamp disagrees with the stored derived fields
// of the entry. Used by the replay engine to decide whether a corrective
// write is needed.
func (s Stamp) Differs(e *MovementEntry) bool {
	return !s.UnitCost.Equal(e.UnitCost) ||
		!s.TotalCost.Equal(e.TotalCost) ||
		!s.Balance.Equal(e.Balance())
}
