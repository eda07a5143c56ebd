package handlers

import (
	"github.com/gin-gonic/gin"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/domain/ledger"
	"kardex/internal/infrastructure/http/v1/dto"
)

// ValorizationHandler handles inventory valuation endpoints.
type ValorizationHandler struct {
	*BaseHandler
	valorization *ledger.Valorization
}

// NewValorizationHandler creates a new valorization handler.
func NewValorizationHandler(base *BaseHandler, valorization *ledger.Valorization) *ValorizationHandler {
	return &ValorizationHandler{
		BaseHandler:  base,
		valorization: valorization,
	}
}

// Snapshot handles GET /valorization/:companyId
func (h *ValorizationHandler) Snapshot(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, err := id.Parse(c.Param("companyId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid companyId").WithDetail("value", c.Param("companyId")))
		return
	}

	rows, err := h.valorization.Snapshot(ctx, companyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromValorization(companyID.String(), rows))
}
