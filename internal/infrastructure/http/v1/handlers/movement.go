package handlers

import (
	"github.com/gin-gonic/gin"

	"kardex/internal/domain/ledger"
	"kardex/internal/infrastructure/http/v1/dto"
)

// MovementHandler handles ledger movement endpoints.
type MovementHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, service *ledger.Service) *MovementHandler {
	return &MovementHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Post handles POST /movements
func (h *MovementHandler) Post(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PostMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cand, err := req.ToCandidate()
	if err != nil {
		h.Error(c, err)
		return
	}

	entry, err := h.service.Post(ctx, cand)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromMovement(*entry))
}

// History handles GET /movements
func (h *MovementHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.HistoryRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.service.History(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := dto.FromMovements(entries)
	h.OK(c, dto.ListResponse{Items: items, Count: len(items)})
}
