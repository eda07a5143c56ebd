package handlers

import (
	"github.com/gin-gonic/gin"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/domain/ledger"
	"kardex/internal/infrastructure/http/v1/dto"
)

// ReplayHandler handles recalculation endpoints.
type ReplayHandler struct {
	*BaseHandler
	replayer *ledger.Replayer
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(base *BaseHandler, replayer *ledger.Replayer) *ReplayHandler {
	return &ReplayHandler{
		BaseHandler: base,
		replayer:    replayer,
	}
}

// Replay handles POST /replay
func (h *ReplayHandler) Replay(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ReplayRequest
	if !h.BindJSON(c, &req) {
		return
	}

	scope, err := req.ToScope()
	if err != nil {
		h.Error(c, err)
		return
	}

	var summary ledger.RecalculationSummary
	if req.FromDate != nil {
		// Seq 0 orders before any stored entry on that date, so the
		// replay covers every entry at or after the date.
		from := ledger.Position{DocumentDate: *req.FromDate}
		summary, err = h.replayer.ReplayFrom(ctx, scope, from)
	} else {
		summary, err = h.replayer.ReplayScope(ctx, scope)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSummary(summary))
}

// SweepCompany handles POST /replay/company/:companyId
func (h *ReplayHandler) SweepCompany(c *gin.Context) {
	ctx := c.Request.Context()

	companyID, err := id.Parse(c.Param("companyId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid companyId").WithDetail("value", c.Param("companyId")))
		return
	}

	parallelism := h.ParseIntQuery(c, "parallelism", 4)

	report, err := h.replayer.SweepCompany(ctx, companyID, parallelism)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSweepReport(report))
}
