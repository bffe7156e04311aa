package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/procurahq/procura/internal/application/engine"
	"github.com/procurahq/procura/internal/application/port"
	"github.com/procurahq/procura/internal/application/service"
	"github.com/procurahq/procura/internal/domain/entity"
	"github.com/procurahq/procura/internal/domain/identity"
	"github.com/procurahq/procura/internal/domain/workflow"
)

// Handlers carries the application services the endpoints call into.
type Handlers struct {
	engine        engine.Engine
	offers        service.OfferService
	notifications service.NotificationService
	evaluations   service.EvaluationService
	orders        port.PurchaseOrderRepository
	storage       port.FileStorage
	logger        Logger
	health        HealthFunc
}

// HealthFunc reports component readiness for the health endpoint.
type HealthFunc func() (healthy bool, components map[string]ComponentStatus)

// ComponentStatus is one component's entry in the health report.
type ComponentStatus struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

func NewHandlers(
	eng engine.Engine,
	offers service.OfferService,
	notifications service.NotificationService,
	evaluations service.EvaluationService,
	orders port.PurchaseOrderRepository,
	storage port.FileStorage,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:        eng,
		offers:        offers,
		notifications: notifications,
		evaluations:   evaluations,
		orders:        orders,
		storage:       storage,
		logger:        logger,
	}
}

// WithHealth attaches a component health source to the health endpoint.
// Without one the endpoint only confirms the process is serving.
func (h *Handlers) WithHealth(fn HealthFunc) *Handlers {
	h.health = fn
	return h
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// RequestPage is one page of requests plus the total match count
type RequestPage struct {
	Items  []*entity.Request `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// RecommendResult pairs the updated request with its offers so the caller
// sees the promoted offer and the demoted ones in one round trip
type RecommendResult struct {
	Request *entity.Request `json:"request"`
	Offers  []*entity.Offer `json:"offers"`
}

// OrderResult pairs the finalized request with the purchase order it produced
type OrderResult struct {
	Request       *entity.Request       `json:"request"`
	PurchaseOrder *entity.PurchaseOrder `json:"purchase_order"`
}

// ListRequestsQuery represents query parameters for listing requests
type ListRequestsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// statusFromError maps sentinel errors from the application layer to HTTP
// status codes. Anything unrecognized is a 500.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, workflow.ErrUnauthenticated),
		errors.Is(err, identity.ErrMissingIdentity),
		errors.Is(err, identity.ErrUnknownRole):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrInvalidState),
		errors.Is(err, workflow.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// mustActor returns the caller identity stored by the middleware. A missing
// actor means the route was registered outside the identity group.
func (h *Handlers) mustActor(c *gin.Context) (identity.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		h.fail(c, workflow.ErrUnauthenticated)
	}
	return actor, ok
}

// HealthCheck handles GET /health. With a health source attached, a
// degraded component turns the response into a 503 so load balancers can
// act on it.
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	status := http.StatusOK
	if h.health != nil {
		healthy, components := h.health()
		response.Components = components
		if !healthy {
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	var in engine.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	req, err := h.engine.Create(c.Request.Context(), actor, in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusCreated, req)
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	query, in, err := h.bindListQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	items, total, err := h.engine.List(c.Request.Context(), actor, in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, RequestPage{
		Items:  items,
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

// ListMyRequests handles GET /api/requests/mine
func (h *Handlers) ListMyRequests(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	query, in, err := h.bindListQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	in.CreatedBy = actor.User

	items, total, err := h.engine.List(c.Request.Context(), actor, in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, RequestPage{
		Items:  items,
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

// bindListQuery folds the list query parameters into engine input, clamping
// the page size and validating the optional status filter.
func (h *Handlers) bindListQuery(c *gin.Context) (ListRequestsQuery, engine.ListRequestsInput, error) {
	var query ListRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return query, engine.ListRequestsInput{}, fmt.Errorf("%w: invalid query parameters", workflow.ErrValidation)
	}

	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	in := engine.ListRequestsInput{Limit: query.Limit, Offset: query.Offset}
	if query.Status != "" {
		status := workflow.State(strings.ToUpper(strings.TrimSpace(query.Status)))
		if !status.IsValid() {
			return query, in, fmt.Errorf("%w: unknown status %q", workflow.ErrValidation, query.Status)
		}
		in.Status = &status
	}

	return query, in, nil
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	req, err := h.engine.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, req)
}

// UpdateRequest handles PUT /api/requests/:id
func (h *Handlers) UpdateRequest(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	var in engine.UpdateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	req, err := h.engine.Update(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, req)
}

// DeleteRequest handles DELETE /api/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	if err := h.engine.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, nil)
}

// SubmitForReview handles POST /api/requests/:id/submit-review
func (h *Handlers) SubmitForReview(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	req, err := h.engine.SubmitForReview(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, req)
}

// ApproveRequest handles POST /api/requests/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	req, err := h.engine.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, req)
}

// RejectRequest handles POST /api/requests/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	req, err := h.engine.Reject(c.Request.Context(), actor, c.Param("id"), body.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, req)
}

// SubmitForBidding handles POST /api/requests/:id/submit-bidding
func (h *Handlers) SubmitForBidding(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	req, err := h.engine.SubmitForBidding(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, req)
}

// ReactivateRequest handles POST /api/requests/:id/reactivate
func (h *Handlers) ReactivateRequest(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	req, err := h.engine.Reactivate(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, req)
}

// RecommendOffer handles POST /api/requests/:id/recommend
func (h *Handlers) RecommendOffer(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	var body struct {
		OfferID string `json:"offer_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	req, offers, err := h.engine.Recommend(c.Request.Context(), actor, c.Param("id"), body.OfferID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, RecommendResult{Request: req, Offers: offers})
}

// SendToOrdering handles POST /api/requests/:id/send-to-ordering
func (h *Handlers) SendToOrdering(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	req, err := h.engine.SendToOrdering(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, req)
}

// PlaceOrder handles POST /api/requests/:id/order. The body is optional; an
// absent offer_id falls back to the recommended offer.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	var body struct {
		OfferID string `json:"offer_id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.badRequest(c, "invalid request body", err)
			return
		}
	}

	req, po, err := h.engine.PlaceOrder(c.Request.Context(), actor, c.Param("id"), body.OfferID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, OrderResult{Request: req, PurchaseOrder: po})
}

// GetHistory handles GET /api/requests/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	history, err := h.engine.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, history)
}
