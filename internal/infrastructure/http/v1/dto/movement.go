package dto

import (
	"time"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
	"kardex/internal/domain/ledger"
)

// --- Request DTOs ---

// PostMovementRequest represents a request to post a ledger movement.
type PostMovementRequest struct {
	CompanyID    string         `json:"companyId" binding:"required"`
	ProductID    string         `json:"productId" binding:"required"`
	WarehouseID  string         `json:"warehouseId" binding:"required"`
	Kind         string         `json:"kind" binding:"required"`
	DocumentDate time.Time      `json:"documentDate" binding:"required"`
	QtyIn        types.Quantity `json:"qtyIn,omitempty"`
	QtyOut       types.Quantity `json:"qtyOut,omitempty"`
	UnitCost     types.Money    `json:"unitCost,omitempty"`
}

// ToCandidate converts the request to a domain candidate entry.
func (r *PostMovementRequest) ToCandidate() (ledger.CandidateEntry, error) {
	scope, err := parseScope(r.CompanyID, r.ProductID, r.WarehouseID)
	if err != nil {
		return ledger.CandidateEntry{}, err
	}

	return ledger.CandidateEntry{
		Scope:        scope,
		Kind:         ledger.Kind(r.Kind),
		DocumentDate: r.DocumentDate,
		QtyIn:        r.QtyIn,
		QtyOut:       r.QtyOut,
		UnitCost:     r.UnitCost,
	}, nil
}

// HistoryRequest contains movement history query parameters.
type HistoryRequest struct {
	PaginationRequest
	CompanyID   string     `form:"companyId" binding:"required"`
	ProductID   string     `form:"productId"`
	WarehouseID string     `form:"warehouseId"`
	Kind        string     `form:"kind"`
	FromDate    *time.Time `form:"fromDate" time_format:"2006-01-02"`
	ToDate      *time.Time `form:"toDate" time_format:"2006-01-02"`
}

// ToFilter converts the query to a domain history filter.
func (r *HistoryRequest) ToFilter() (ledger.HistoryFilter, error) {
	r.Defaults()

	companyID, err := id.Parse(r.CompanyID)
	if err != nil {
		return ledger.HistoryFilter{}, apperror.NewValidation("invalid companyId").WithDetail("value", r.CompanyID)
	}

	filter := ledger.HistoryFilter{
		CompanyID: companyID,
		FromDate:  r.FromDate,
		ToDate:    r.ToDate,
		Limit:     r.PageSize,
		Offset:    r.Offset(),
	}

	if r.ProductID != "" {
		productID, err := id.Parse(r.ProductID)
		if err != nil {
			return ledger.HistoryFilter{}, apperror.NewValidation("invalid productId").WithDetail("value", r.ProductID)
		}
		filter.ProductID = &productID
	}
	if r.WarehouseID != "" {
		warehouseID, err := id.Parse(r.WarehouseID)
		if err != nil {
			return ledger.HistoryFilter{}, apperror.NewValidation("invalid warehouseId").WithDetail("value", r.WarehouseID)
		}
		filter.WarehouseID = &warehouseID
	}
	if r.Kind != "" {
		kind := ledger.Kind(r.Kind)
		if !kind.Valid() {
			return ledger.HistoryFilter{}, apperror.NewValidation("unknown movement kind").WithDetail("value", r.Kind)
		}
		filter.Kind = &kind
	}

	return filter, nil
}

// --- Response DTOs ---

// MovementResponse represents a stored ledger movement.
type MovementResponse struct {
	ID           string         `json:"id"`
	Number       string         `json:"number,omitempty"`
	CompanyID    string         `json:"companyId"`
	ProductID    string         `json:"productId"`
	WarehouseID  string         `json:"warehouseId"`
	Kind         string         `json:"kind"`
	DocumentDate time.Time      `json:"documentDate"`
	Seq          int64          `json:"seq"`
	QtyIn        types.Quantity `json:"qtyIn"`
	QtyOut       types.Quantity `json:"qtyOut"`

	UnitCost  types.Money `json:"unitCost"`
	TotalCost types.Money `json:"totalCost"`

	BalanceQty       types.Quantity `json:"balanceQty"`
	BalanceTotalCost types.Money    `json:"balanceTotalCost"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}

// FromMovement creates MovementResponse from a domain entry.
func FromMovement(e ledger.MovementEntry) MovementResponse {
	return MovementResponse{
		ID:               e.ID.String(),
		Number:           e.Number,
		CompanyID:        e.CompanyID.String(),
		ProductID:        e.ProductID.String(),
		WarehouseID:      e.WarehouseID.String(),
		Kind:             string(e.Kind),
		DocumentDate:     e.DocumentDate,
		Seq:              e.Seq,
		QtyIn:            e.QtyIn,
		QtyOut:           e.QtyOut,
		UnitCost:         e.UnitCost,
		TotalCost:        e.TotalCost,
		BalanceQty:       e.BalanceQty,
		BalanceTotalCost: e.BalanceTotalCost,
		Version:          e.Version,
		CreatedAt:        e.CreatedAt,
		CreatedBy:        e.CreatedBy,
	}
}

// FromMovements converts a slice of domain entries.
func FromMovements(entries []ledger.MovementEntry) []MovementResponse {
	out := make([]MovementResponse, len(entries))
	for i, e := range entries {
		out[i] = FromMovement(e)
	}
	return out
}

func parseScope(companyID, productID, warehouseID string) (ledger.Scope, error) {
	cid, err := id.Parse(companyID)
	if err != nil {
		return ledger.Scope{}, apperror.NewValidation("invalid companyId").WithDetail("value", companyID)
	}
	pid, err := id.Parse(productID)
	if err != nil {
		return ledger.Scope{}, apperror.NewValidation("invalid productId").WithDetail("value", productID)
	}
	wid, err := id.Parse(warehouseID)
	if err != nil {
		return ledger.Scope{}, apperror.NewValidation("invalid warehouseId").WithDetail("value", warehouseID)
	}
	return ledger.Scope{CompanyID: cid, ProductID: pid, WarehouseID: wid}, nil
}
