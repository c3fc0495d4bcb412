package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/service"
)

type PostHandler struct {
	svc service.PostService
}

func NewPostHandler(svc service.PostService) *PostHandler {
	return &PostHandler{svc: svc}
}

type CreatePostRequest struct {
	Content  string  `json:"content" validate:"max=5000"`
	MediaURL *string `json:"mediaUrl" validate:"omitempty,url"`
}

func (h *PostHandler) Create(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req CreatePostRequest
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	post, wallet, err := h.svc.Create(c.Request().Context(), uid, req.Content, req.MediaURL)
	if err != nil {
		return serviceError(c, err, "failed to create post")
	}
	resp := map[string]interface{}{"post": post}
	if wallet != nil {
		resp["reward"] = service.PostReward
		resp["wallet"] = wallet
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *PostHandler) CompleteTask(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	w, err := h.svc.CompleteTask(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return serviceError(c, err, "failed to complete task")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reward": service.TaskReward,
		"wallet": w,
	})
}
