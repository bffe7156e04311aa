package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/procurahq/procura/internal/domain/entity"
)

// NotificationPage wraps the caller's feed with its unread count so clients
// can badge without a second round trip
type NotificationPage struct {
	Items  []*entity.Notification `json:"items"`
	Unread int                    `json:"unread"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	var query ListRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	items, err := h.notifications.List(c.Request.Context(), actor, query.Limit, query.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}

	unread, err := h.notifications.CountUnread(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, NotificationPage{
		Items:  items,
		Unread: unread,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *Handlers) UnreadCount(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	unread, err := h.notifications.CountUnread(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, gin.H{"unread": unread})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	actor, ok := h.mustActor(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	h.ok(c, http.StatusOK, nil)
}
