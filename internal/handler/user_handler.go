package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/identity"
	"github.com/arfaar/swapfinity/internal/service"
)

type UserHandler struct {
	svc service.UserService
}

func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UpdateProfileRequest struct {
	Name string `json:"name"`
}

type PictureRequest struct {
	URL string `json:"url"`
}

type ProfileResponse struct {
	UID            string  `json:"uid"`
	Name           string  `json:"name"`
	Email          string  `json:"email,omitempty"`
	ProfilePicture *string `json:"profilePicture"`
	SwappedItems   int64   `json:"swappedItems"`
	FavoritesCount int     `json:"favoritesCount"`
}

func toProfileResponse(p *service.ProfileView, self bool) ProfileResponse {
	resp := ProfileResponse{
		UID:            p.ID,
		Name:           p.Name,
		ProfilePicture: p.ProfilePicture,
		SwappedItems:   p.SwappedItems,
		FavoritesCount: p.FavoritesCount,
	}
	if self {
		resp.Email = p.Email
	}
	return resp
}

func (h *UserHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	u, err := h.svc.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toProfileResponse(&service.ProfileView{UserProfile: *u}, true))
}

func (h *UserHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	sess, err := h.svc.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *UserHandler) SignOut(c echo.Context) error {
	if err := h.svc.SignOut(c.Request().Context(), currentUID(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me reports the verified identity of the caller.
func (h *UserHandler) Me(c echo.Context) error {
	id, ok := c.Get("identity").(*identity.Identity)
	if !ok {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "must be logged in"))
	}
	return c.JSON(http.StatusOK, id)
}

func (h *UserHandler) MyProfile(c echo.Context) error {
	p, err := h.svc.Profile(c.Request().Context(), currentUID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toProfileResponse(p, true))
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	p, err := h.svc.Profile(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toProfileResponse(p, uid == currentUID(c)))
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if err := h.svc.UpdateName(c.Request().Context(), currentUID(c), req.Name); err != nil {
		return writeError(c, err)
	}
	return h.MyProfile(c)
}

func (h *UserHandler) SetPicture(c echo.Context) error {
	var req PictureRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if err := h.svc.SetPicture(c.Request().Context(), currentUID(c), req.URL); err != nil {
		return writeError(c, err)
	}
	return h.MyProfile(c)
}

func (h *UserHandler) RemovePicture(c echo.Context) error {
	if err := h.svc.RemovePicture(c.Request().Context(), currentUID(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if err := h.svc.ChangePassword(c.Request().Context(), currentUID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
