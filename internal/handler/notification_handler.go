package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/feed"
	"github.com/shinyyama/herald-backend/internal/service"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	unreadOnly := c.QueryParam("unread_only") == "true"
	limit := queryLimit(c, feed.PageSize)
	list, unreadCount, err := h.svc.List(c.Request().Context(), uid, unreadOnly, limit)
	if err != nil {
		return serviceError(c, err, "failed to fetch notifications")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": list,
		"unreadCount":   unreadCount,
	})
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	cnt, err := h.svc.CountUnread(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "failed to count notifications")
	}
	return c.JSON(http.StatusOK, map[string]int64{"unreadCount": cnt})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.svc.MarkRead(c.Request().Context(), uid, id); err != nil {
		return serviceError(c, err, "failed to mark read")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.svc.MarkAllRead(c.Request().Context(), uid); err != nil {
		return serviceError(c, err, "failed to mark read")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NotificationHandler) Delete(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), uid, id); err != nil {
		return serviceError(c, err, "failed to delete notification")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) ClearAll(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.svc.ClearAll(c.Request().Context(), uid); err != nil {
		return serviceError(c, err, "failed to clear notifications")
	}
	return c.NoContent(http.StatusNoContent)
}
