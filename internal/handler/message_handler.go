package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/messaging"
	"github.com/shinyyama/herald-backend/internal/service"
)

type MessageHandler struct {
	svc service.MessageService
}

func NewMessageHandler(svc service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func (h *MessageHandler) Conversations(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	msgs, err := h.svc.ListForUser(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "failed to fetch conversations")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": messaging.BuildConversations(uid, msgs),
	})
}

// Messages returns the thread with :peer and marks the peer's messages read.
func (h *MessageHandler) Messages(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	peer := c.Param("peer")
	ctx := c.Request().Context()
	msgs, err := h.svc.ListWith(ctx, uid, peer)
	if err != nil {
		return serviceError(c, err, "failed to fetch messages")
	}
	if err := h.svc.MarkReadFrom(ctx, uid, peer); err != nil {
		return serviceError(c, err, "failed to mark read")
	}
	for i := range msgs {
		if msgs[i].ReceiverID == uid {
			msgs[i].Read = true
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *MessageHandler) Send(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req SendMessageRequest
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	m, err := h.svc.Send(c.Request().Context(), uid, c.Param("peer"), req.Content)
	if err != nil {
		return serviceError(c, err, "failed to send message")
	}
	return c.JSON(http.StatusCreated, m)
}
