package dto

import (
	"kardex/internal/core/types"
	"kardex/internal/domain/ledger"
)

// ValorizationRowResponse is one (product, warehouse) line of the snapshot.
type ValorizationRowResponse struct {
	ProductID   string         `json:"productId"`
	WarehouseID string         `json:"warehouseId"`
	Qty         types.Quantity `json:"qty"`
	TotalCost   types.Money    `json:"totalCost"`
	UnitCost    types.Money    `json:"unitCost"`
}

// ValorizationResponse is the company inventory valuation snapshot.
type ValorizationResponse struct {
	CompanyID string                    `json:"companyId"`
	Rows      []ValorizationRowResponse `json:"rows"`
	TotalCost types.Money               `json:"totalCost"`
}

// FromValorization creates ValorizationResponse from domain rows.
func FromValorization(companyID string, rows []ledger.ValorizationRow) ValorizationResponse {
	resp := ValorizationResponse{
		CompanyID: companyID,
		Rows:      make([]ValorizationRowResponse, len(rows)),
		TotalCost: types.ZeroMoney(),
	}
	for i, r := range rows {
		resp.Rows[i] = ValorizationRowResponse{
			ProductID:   r.ProductID.String(),
			WarehouseID: r.WarehouseID.String(),
			Qty:         r.Qty,
			TotalCost:   r.TotalCost,
			UnitCost:    r.UnitCost,
		}
		resp.TotalCost = resp.TotalCost.Add(r.TotalCost)
	}
	return resp
}
