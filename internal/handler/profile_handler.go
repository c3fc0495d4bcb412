package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/middleware"
	"github.com/shinyyama/herald-backend/internal/service"
	"github.com/shinyyama/herald-backend/internal/session"
)

const maxAvatarBytes = 5 << 20

type ProfileHandler struct {
	svc      service.ProfileService
	verifier middleware.TokenVerifier
	sessions *session.Manager
}

func NewProfileHandler(svc service.ProfileService, verifier middleware.TokenVerifier, sessions *session.Manager) *ProfileHandler {
	return &ProfileHandler{svc: svc, verifier: verifier, sessions: sessions}
}

type SaveProfileRequest struct {
	Username    string `json:"username" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"max=120"`
}

type PublicProfileResponse struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
	Verified    bool    `json:"verified"`
}

func (h *ProfileHandler) Me(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	p, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "failed to fetch profile")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) Save(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req SaveProfileRequest
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	p, err := h.svc.Save(c.Request().Context(), uid, service.ProfileInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return serviceError(c, err, "failed to save profile")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return badRequest(c, "invalid uid")
	}
	p, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
	}
	return c.JSON(http.StatusOK, PublicProfileResponse{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   strPtrOrNil(p.AvatarURL),
		Verified:    p.Verified,
	})
}

func (h *ProfileHandler) UploadAvatar(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if fh.Size > maxAvatarBytes {
		return badRequest(c, "file is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer f.Close()
	p, err := h.svc.UploadAvatar(c.Request().Context(), uid, fh.Header.Get("Content-Type"), f)
	if err != nil {
		return serviceError(c, err, "avatar upload failed")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) RemoveAvatar(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	p, err := h.svc.RemoveAvatar(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "avatar removal failed")
	}
	return c.JSON(http.StatusOK, p)
}

// SignOut revokes the user's tokens and ends their realtime sessions.
func (h *ProfileHandler) SignOut(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.verifier.Revoke(c.Request().Context(), uid); err != nil {
		return serviceError(c, err, "sign out failed")
	}
	stopped := h.sessions.StopUser(uid)
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "sessions": stopped})
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
