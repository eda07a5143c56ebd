package ledger

import (
	"context"
	"fmt"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
)

// ValorizationRow is the current valuation of one (product, warehouse):
// the balance of the scope's most recent entry.
type ValorizationRow struct {
	ProductID   id.ID          `json:"productId"`
	WarehouseID id.ID          `json:"warehouseId"`
	Qty         types.Quantity `json:"qty"`
	TotalCost   types.Money    `json:"totalCost"`
	UnitCost    types.Money    `json:"unitCost"`
}

// Valorization produces the read-only inventory valuation snapshot for a
// company. It trusts stored balances and never replays: a backdated insert
// cannot be left un-replayed (the posting path replays before returning),
// so staleness is bounded by that contract.
type Valorization struct {
	store    Store
	rounding types.Rounding
}

// NewValorization creates the snapshot reader.
func NewValorization(store Store, rounding types.Rounding) *Valorization {
	return &Valorization{store: store, rounding: rounding}
}

// Snapshot returns one row per (product, warehouse) with the current
// balance, taken from the most recent ledger entry of each scope.
func (v *Valorization) Snapshot(ctx context.Context, companyID id.ID) ([]ValorizationRow, error) {
	if id.IsNil(companyID) {
		return nil, apperror.NewValidation("company_id is required")
	}

	latest, err := v.store.LatestPerScope(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load latest entries: %w", err)
	}

	rows := make([]ValorizationRow, 0, len(latest))
	for i := range latest {
		e := &latest[i]
		bal := e.Balance()
		rows = append(rows, ValorizationRow{
			ProductID:   e.ProductID,
			WarehouseID: e.WarehouseID,
			Qty:         bal.Qty,
			TotalCost:   bal.TotalCost,
			UnitCost:    bal.AvgUnitCost(v.rounding),
		})
	}
	return rows, nil
}
