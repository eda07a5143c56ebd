// Package ledger implements the perpetual inventory valuation ledger
// (the Kardex): an append-ordered log of stock movements per
// (company, product, warehouse) scope carrying a running quantity and a
// running monetary balance under weighted-average costing.
package ledger

import (
	"fmt"
	"time"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
)

// Scope is the (company, product, warehouse) partition that owns one
// continuous balance chain. Two scopes never share a running balance.
type Scope struct {
	CompanyID   id.ID `db:"company_id" json:"companyId"`
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
}

// String renders the scope as company/product/warehouse. Used as the
// exclusion key and in audit events.
func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s", s.CompanyID, s.ProductID, s.WarehouseID)
}

func (s Scope) Validate() error {
	if id.IsNil(s.CompanyID) {
		return apperror.NewValidation("company_id is required")
	}
	if id.IsNil(s.ProductID) {
		return apperror.NewValidation("product_id is required")
	}
	if id.IsNil(s.WarehouseID) {
		return apperror.NewValidation("warehouse_id is required")
	}
	return nil
}

// Kind is the semantic class of a movement entry.
type Kind string

const (
	KindPurchase      Kind = "purchase"
	KindSale          Kind = "sale"
	KindAdjustmentIn  Kind = "adjustment_in"
	KindAdjustmentOut Kind = "adjustment_out"
	KindTransferIn    Kind = "transfer_in"
	KindTransferOut   Kind = "transfer_out"
)

// Incoming reports whether the kind increases stock. Incoming kinds carry a
// caller-supplied unit cost; outgoing kinds have their cost derived.
func (k Kind) Incoming() bool {
	switch k {
	case KindPurchase, KindAdjustmentIn, KindTransferIn:
		return true
	}
	return false
}

func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindSale, KindAdjustmentIn, KindAdjustmentOut,
		KindTransferIn, KindTransferOut:
		return true
	}
	return false
}

// Balance is a point on a scope's balance chain: the running quantity and
// running monetary value after some entry.
type Balance struct {
	Qty       types.Quantity `json:"qty"`
	TotalCost types.Money    `json:"totalCost"`
}

// ZeroBalance is the baseline before a scope's first entry.
func ZeroBalance() Balance {
	return Balance{Qty: 0, TotalCost: types.ZeroMoney()}
}

// AvgUnitCost returns the weighted-average unit cost at this point,
// rounded at the unit-cost scale. Zero when the quantity is not positive.
func (b Balance) AvgUnitCost(r types.Rounding) types.Money {
	if !b.Qty.IsPositive() {
		return types.ZeroMoney()
	}
	return r.UnitCost(b.TotalCost.Div(b.Qty.Decimal()))
}

func (b Balance) Equal(o Balance) bool {
	return b.Qty == o.Qty && b.TotalCost.Equal(o.TotalCost)
}

// Position orders entries within a scope: by business date, ties broken by
// the insertion sequence. Ordering is a query-time concept; rows are never
// physically reordered.
type Position struct {
	DocumentDate time.Time
	Seq          int64
}

// Before reports whether p orders strictly before o.
func (p Position) Before(o Position) bool {
	if !p.DocumentDate.Equal(o.DocumentDate) {
		return p.DocumentDate.Before(o.DocumentDate)
	}
	return p.Seq < o.Seq
}

// CandidateEntry is a movement submitted by a posting collaborator
// (sale, purchase, adjustment, bulk import) before costing.
type CandidateEntry struct {
	Scope        Scope          `json:"scope"`
	Kind         Kind           `json:"kind"`
	DocumentDate time.Time      `json:"documentDate"`
	QtyIn        types.Quantity `json:"qtyIn"`
	QtyOut       types.Quantity `json:"qtyOut"`

	// UnitCost is the acquisition cost. Required for incoming kinds,
	// forbidden for outgoing kinds (it is derived).
	UnitCost types.Money `json:"unitCost"`
}

// Validate rejects malformed candidates before any store access.
func (c CandidateEntry) Validate() error {
	if err := c.Scope.Validate(); err != nil {
		return err
	}
	if !c.Kind.Valid() {
		return apperror.NewValidation("unknown movement kind").WithDetail("kind", string(c.Kind))
	}
	if c.DocumentDate.IsZero() {
		return apperror.NewValidation("document_date is required")
	}
	if c.QtyIn.IsNegative() || c.QtyOut.IsNegative() {
		return apperror.NewValidation("quantities must be non-negative")
	}
	if c.Kind.Incoming() {
		if !c.QtyIn.IsPositive() || !c.QtyOut.IsZero() {
			return apperror.NewValidation("incoming kind requires qty_in > 0 and qty_out = 0")
		}
		if c.UnitCost.IsNegative() {
			return apperror.NewValidation("unit_cost must be non-negative")
		}
	} else {
		if !c.QtyOut.IsPositive() || !c.QtyIn.IsZero() {
			return apperror.NewValidation("outgoing kind requires qty_out > 0 and qty_in = 0")
		}
		if !c.UnitCost.IsZero() {
			return apperror.NewValidation("unit_cost is derived for outgoing kinds, do not supply it")
		}
	}
	return nil
}

// MovementEntry is the stored ledger row. Identity, kind, quantities,
// document date and the incoming unit cost are immutable once committed;
// the replay engine rewrites only derived cost and balance fields, bumping
// version on every rewrite.
type MovementEntry struct {
	ID     id.ID  `db:"id" json:"id"`
	Number string `db:"number" json:"number"`

	Scope

	Kind         Kind      `db:"kind" json:"kind"`
	DocumentDate time.Time `db:"document_date" json:"documentDate"`
	Seq          int64     `db:"seq" json:"seq"`

	QtyIn  types.Quantity `db:"qty_in" json:"qtyIn"`
	QtyOut types.Quantity `db:"qty_out" json:"qtyOut"`

	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
	TotalCost types.Money `db:"total_cost" json:"totalCost"`

	BalanceQty       types.Quantity `db:"balance_qty" json:"balanceQty"`
	BalanceTotalCost types.Money    `db:"balance_total_cost" json:"balanceTotalCost"`

	Version int64 `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// Position returns the entry's ordering position within its scope.
func (e *MovementEntry) Position() Position {
	return Position{DocumentDate: e.DocumentDate, Seq: e.Seq}
}

// Balance returns the running balance after this entry.
func (e *MovementEntry) Balance() Balance {
	return Balance{Qty: e.BalanceQty, TotalCost: e.BalanceTotalCost}
}

// Candidate strips the entry back to its immutable inputs so the replay
// engine can re-apply costing to it.
func (e *MovementEntry) Candidate() CandidateEntry {
	c := CandidateEntry{
		Scope:        e.Scope,
		Kind:         e.Kind,
		DocumentDate: e.DocumentDate,
		QtyIn:        e.QtyIn,
		QtyOut:       e.QtyOut,
	}
	if e.Kind.Incoming() {
		c.UnitCost = e.UnitCost
	} else {
		c.UnitCost = types.ZeroMoney()
	}
	return c
}
