package http

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/procurahq/procura/internal/application/service"
	"github.com/procurahq/procura/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SubmitOffer handles POST /api/requests/:id/offers
func (h *Handlers) SubmitOffer(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	var in service.SubmitOfferInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	offer, err := h.offers.SubmitOffer(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusCreated, offer)
}

// ListOffers handles GET /api/requests/:id/offers
func (h *Handlers) ListOffers(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	offers, err := h.offers.ListOffers(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, offers)
}

// RankOffers handles GET /api/requests/:id/offers/ranked
func (h *Handlers) RankOffers(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	ranked, err := h.evaluations.RankOffers(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, ranked)
}

// DownloadOrderDocument handles GET /api/requests/:id/order-document. The
// document is rendered asynchronously after the order transition, so a just
// ordered request may briefly 404 here.
func (h *Handlers) DownloadOrderDocument(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	id := c.Param("id")

	req, err := h.engine.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Status != workflow.StateOrdered {
		h.fail(c, fmt.Errorf("%w: order document exists once the request is ordered", workflow.ErrInvalidState))
		return
	}

	po, err := h.orders.GetByRequestID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if po == nil || po.DocumentPath == "" {
		h.fail(c, fmt.Errorf("%w: order document not generated yet", workflow.ErrNotFound))
		return
	}

	content, err := h.storage.Read(c.Request.Context(), po.DocumentPath)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: %v", workflow.ErrUnavailable, err))
		return
	}

	filename := filepath.Base(po.DocumentPath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, content)
}
