package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const avatarField = "avatar"

type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type updateProfileRequest struct {
	Name    string `json:"name" form:"name" validate:"max=100"`
	Phone   string `json:"phone" form:"phone" validate:"max=30"`
	Address string `json:"address" form:"address" validate:"max=300"`
}

type updateStatusRequest struct {
	Status       string    `json:"status" validate:"required,oneof=Active Away Offline"`
	LastActivity time.Time `json:"lastActivity"`
}

type notificationsRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type favoriteRequest struct {
	BookID string `json:"bookId" validate:"required"`
}

type userDataResponse struct {
	Message string       `json:"message"`
	Data    *domain.User `json:"data"`
}

type favoriteResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data"`
}

// List returns every user.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.User
// @Router       /api/user/get-all-users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Get returns a public user profile.
//
// @Summary      Get user by id
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  domain.User
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/user/get-user-by-id/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.users.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete removes an account and its listings. Callers may delete themselves;
// admins may delete anyone.
//
// @Summary      Delete user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  messageResponse
// @Failure      403  {object}  map[string]string
// @Router       /api/user/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "User deleted successfully"})
}

// UpdateProfile edits the caller's profile; accepts multipart with an
// optional avatar file.
//
// @Summary      Update profile
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        name     formData  string  false  "Display name"
// @Param        phone    formData  string  false  "Phone"
// @Param        address  formData  string  false  "Address"
// @Param        avatar   formData  file    false  "Avatar image"
// @Success      200      {object}  userDataResponse
// @Router       /api/user [patch]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	avatar, err := readUpload(c, avatarField)
	if err != nil {
		return err
	}

	user, err := h.users.UpdateProfile(c.Request().Context(), actor, ports.UpdateProfileInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		Avatar:  avatar,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userDataResponse{Message: "User updated successfully", Data: user})
}

// UpdateStatus sets a user's presence.
//
// @Summary      Update presence status
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "User id"
// @Param        body  body      updateStatusRequest  true  "Presence"
// @Success      200   {object}  domain.User
// @Router       /api/user/{id}/status [patch]
func (h *UserHandler) UpdateStatus(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateStatus(c.Request().Context(), actor, c.Param("id"), domain.UserStatus(req.Status), req.LastActivity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// SetNotifications toggles the caller's notification preference.
//
// @Summary      Toggle notifications
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      notificationsRequest  true  "Preference"
// @Success      200   {object}  domain.User
// @Router       /api/user/notifications [patch]
func (h *UserHandler) SetNotifications(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req notificationsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.SetNotifications(c.Request().Context(), actor, *req.Enabled)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Sidebar lists the users the caller has conversations with.
//
// @Summary      Chat sidebar users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.UserSummary
// @Router       /api/user/get-users-for-sidebar [get]
func (h *UserHandler) Sidebar(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	users, err := h.users.SidebarUsers(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// AddFavorite adds a book to the caller's favorites.
//
// @Summary      Add favorite
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      favoriteRequest  true  "Book id"
// @Success      200   {object}  favoriteResponse
// @Failure      400   {object}  map[string]string
// @Router       /api/user/add-to-favorites [post]
func (h *UserHandler) AddFavorite(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req favoriteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.AddFavorite(c.Request().Context(), actor.ID, req.BookID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, favoriteResponse{Message: "Book added to favorites", User: user})
}

// RemoveFavorite removes a book from the caller's favorites.
//
// @Summary      Remove favorite
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        bookId  path      string  true  "Book id"
// @Success      200     {object}  favoriteResponse
// @Failure      400     {object}  map[string]string
// @Router       /api/user/remove-from-favorites/{bookId} [delete]
func (h *UserHandler) RemoveFavorite(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	user, err := h.users.RemoveFavorite(c.Request().Context(), actor.ID, c.Param("bookId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, favoriteResponse{Message: "Book removed from favorites", User: user})
}

// Favorites returns the caller's favorite books.
//
// @Summary      List favorites
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.Book
// @Router       /api/user/get-favorites-books [get]
func (h *UserHandler) Favorites(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	books, err := h.users.Favorites(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

// UploadImage stores an avatar image and returns its URL.
//
// @Summary      Upload avatar image
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        avatar  formData  file  true  "Image"
// @Success      200     {object}  uploadResponse
// @Failure      400     {object}  map[string]string
// @Router       /api/user/uploadImage [post]
func (h *UserHandler) UploadImage(c echo.Context) error {
	upload, err := readUpload(c, avatarField)
	if err != nil {
		return err
	}
	if upload == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "please upload a file")
	}
	url, err := h.users.UploadAvatar(c.Request().Context(), *upload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, uploadResponse{Success: true, Data: url})
}
