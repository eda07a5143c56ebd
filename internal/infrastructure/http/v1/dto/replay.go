package dto

import (
	"time"

	"kardex/internal/domain/ledger"
)

// ReplayRequest asks for a scope recalculation. When FromDate is set the
// replay starts at the first entry at or after that date; otherwise the
// whole scope is replayed.
type ReplayRequest struct {
	CompanyID   string     `json:"companyId" binding:"required"`
	ProductID   string     `json:"productId" binding:"required"`
	WarehouseID string     `json:"warehouseId" binding:"required"`
	FromDate    *time.Time `json:"fromDate,omitempty"`
}

// ToScope converts the request to a domain scope.
func (r *ReplayRequest) ToScope() (ledger.Scope, error) {
	return parseScope(r.CompanyID, r.ProductID, r.WarehouseID)
}

// CorrectionResponse describes one corrective rewrite.
type CorrectionResponse struct {
	EntryID         string `json:"entryId"`
	OldBalanceQty   string `json:"oldBalanceQty"`
	OldBalanceTotal string `json:"oldBalanceTotal"`
	NewBalanceQty   string `json:"newBalanceQty"`
	NewBalanceTotal string `json:"newBalanceTotal"`
}

// ReplayResponse summarizes a scope recalculation.
type ReplayResponse struct {
	CompanyID   string `json:"companyId"`
	ProductID   string `json:"productId"`
	WarehouseID string `json:"warehouseId"`
	Visited     int    `json:"visited"`
	Corrected   int    `json:"corrected"`

	FirstCorrection *CorrectionResponse `json:"firstCorrection,omitempty"`
	LastCorrection  *CorrectionResponse `json:"lastCorrection,omitempty"`
}

// FromSummary creates ReplayResponse from a domain summary.
func FromSummary(s ledger.RecalculationSummary) ReplayResponse {
	resp := ReplayResponse{
		CompanyID:   s.Scope.CompanyID.String(),
		ProductID:   s.Scope.ProductID.String(),
		WarehouseID: s.Scope.WarehouseID.String(),
		Visited:     s.Visited,
		Corrected:   s.Corrected,
	}
	resp.FirstCorrection = fromCorrection(s.FirstCorrection)
	resp.LastCorrection = fromCorrection(s.LastCorrection)
	return resp
}

func fromCorrection(c *ledger.BalanceCorrected) *CorrectionResponse {
	if c == nil {
		return nil
	}
	return &CorrectionResponse{
		EntryID:         c.EntryID.String(),
		OldBalanceQty:   c.OldBalance.Qty.String(),
		OldBalanceTotal: c.OldBalance.TotalCost.String(),
		NewBalanceQty:   c.NewBalance.Qty.String(),
		NewBalanceTotal: c.NewBalance.TotalCost.String(),
	}
}

// SweepResponse summarizes a company-wide sweep.
type SweepResponse struct {
	CompanyID string                 `json:"companyId"`
	Scopes    int                    `json:"scopes"`
	Corrected int                    `json:"corrected"`
	Summaries []ReplayResponse       `json:"summaries"`
	Failures  []SweepFailureResponse `json:"failures,omitempty"`
}

// SweepFailureResponse records one scope whose replay failed.
type SweepFailureResponse struct {
	CompanyID   string `json:"companyId"`
	ProductID   string `json:"productId"`
	WarehouseID string `json:"warehouseId"`
	Error       string `json:"error"`
}

// FromSweepReport creates SweepResponse from a domain report.
func FromSweepReport(r ledger.SweepReport) SweepResponse {
	resp := SweepResponse{
		CompanyID: r.CompanyID.String(),
		Scopes:    len(r.Summaries) + len(r.Failures),
		Summaries: make([]ReplayResponse, len(r.Summaries)),
	}
	for i, s := range r.Summaries {
		resp.Summaries[i] = FromSummary(s)
		resp.Corrected += s.Corrected
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, SweepFailureResponse{
			CompanyID:   f.Scope.CompanyID.String(),
			ProductID:   f.Scope.ProductID.String(),
			WarehouseID: f.Scope.WarehouseID.String(),
			Error:       f.Error,
		})
	}
	return resp
}
