package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

// UserHandler serves registration, the session lifecycle and self-service
// account updates under /users.
type UserHandler struct {
	accounts  ports.AccountService
	sessions  ports.SessionService
	cookies   CookieOptions
	maxUpload int64
}

func NewUserHandler(accounts ports.AccountService, sessions ports.SessionService, cookies CookieOptions, maxUpload int64) *UserHandler {
	return &UserHandler{
		accounts:  accounts,
		sessions:  sessions,
		cookies:   cookies,
		maxUpload: maxUpload,
	}
}

type registerRequest struct {
	FullName string `form:"fullName" json:"fullName" validate:"required"`
	Email    string `form:"email"    json:"email"    validate:"required,email"`
	Username string `form:"username" json:"username" validate:"required"`
	Password string `form:"password" json:"password" validate:"required"`
}

// loginRequest accepts username or email, or a single identifier that is
// treated as an email when it contains '@'.
type loginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Username   string `form:"username"   json:"username"`
	Email      string `form:"email"      json:"email"`
	Password   string `form:"password"   json:"password" validate:"required"`
}

type loginResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `form:"refreshToken" json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
}

// Register creates a new account.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Param        fullName    formData  string  true   "Full name"
// @Param        email       formData  string  true   "Email"
// @Param        username    formData  string  true   "Username"
// @Param        password    formData  string  true   "Password"
// @Param        avatar      formData  file    true   "Avatar image"
// @Param        coverImage  formData  file    false  "Cover image"
// @Success      201  {object}  apiResponse
// @Failure      400  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /users/register [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	avatar, closeAvatar, err := h.formFile(c, "avatar")
	if err != nil {
		return err
	}
	defer closeAvatar()

	cover, closeCover, err := h.formFile(c, "coverImage")
	if err != nil {
		return err
	}
	defer closeCover()

	user, err := h.accounts.Register(c.Request().Context(), ports.RegisterInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, user, "User registered successfully")
}

// Login authenticates a user and starts a session.
//
// @Summary      Login
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "username or email, and password"
// @Success      200   {object}  apiResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Failure      404   {object}  map[string]any
// @Router       /users/login [post]
func (h *UserHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	in := ports.LoginInput{Username: req.Username, Email: req.Email, Password: req.Password}
	if id := strings.TrimSpace(req.Identifier); id != "" && in.Username == "" && in.Email == "" {
		if strings.Contains(id, "@") {
			in.Email = id
		} else {
			in.Username = id
		}
	}

	result, err := h.sessions.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}

	h.cookies.setTokens(c, result.Tokens)
	return respond(c, http.StatusOK, loginResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// Logout ends the current session.
//
// @Summary      Logout
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  map[string]any
// @Router       /users/logout [post]
func (h *UserHandler) Logout(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Logout(c.Request().Context(), user.ID); err != nil {
		return err
	}

	h.cookies.clearTokens(c)
	return respond(c, http.StatusOK, nil, "User logged out")
}

// RefreshToken rotates the refresh token and issues a new pair. The cookie
// takes precedence over the body field.
//
// @Summary      Refresh access token
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  false  "Refresh token when no cookie is sent"
// @Success      200   {object}  apiResponse
// @Failure      401   {object}  map[string]any
// @Router       /users/refresh-token [post]
func (h *UserHandler) RefreshToken(c echo.Context) error {
	token := ""
	if cookie, err := c.Cookie(RefreshTokenCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req refreshRequest
		if err := c.Bind(&req); err == nil {
			token = strings.TrimSpace(req.RefreshToken)
		}
	}

	pair, err := h.sessions.Refresh(c.Request().Context(), token)
	if err != nil {
		return err
	}

	h.cookies.setTokens(c, pair)
	return respond(c, http.StatusOK, pair, "Access token refreshed")
}

// ChangePassword replaces the password of the current user.
//
// @Summary      Change password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Old and new password"
// @Success      200   {object}  apiResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Router       /users/change-password [post]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.accounts.ChangePassword(c.Request().Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Password changed successfully")
}

// CurrentUser returns the authenticated user.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  map[string]any
// @Router       /users/current-user [get]
func (h *UserHandler) CurrentUser(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	current, err := h.accounts.CurrentUser(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, current, "User fetched successfully")
}

// UpdateAccount changes full name and email of the authenticated user.
//
// @Summary      Update account details
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateAccountRequest  true  "New details"
// @Success      200   {object}  apiResponse
// @Failure      400   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Router       /users/update-account [patch]
func (h *UserHandler) UpdateAccount(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req updateAccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := h.accounts.UpdateAccount(c.Request().Context(), user.ID, req.FullName, req.Email)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, updated, "Account details updated successfully")
}

// UpdateAvatar replaces the avatar of the authenticated user.
//
// @Summary      Update avatar
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        avatar  formData  file  true  "Avatar image"
// @Success      200     {object}  apiResponse
// @Failure      400     {object}  map[string]any
// @Router       /users/avatar [patch]
func (h *UserHandler) UpdateAvatar(c echo.Context) error {
	return h.updateImage(c, "avatar", h.accounts.UpdateAvatar, "Avatar image updated successfully")
}

// UpdateCoverImage replaces the cover image of the authenticated user.
//
// @Summary      Update cover image
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        coverImage  formData  file  true  "Cover image"
// @Success      200         {object}  apiResponse
// @Failure      400         {object}  map[string]any
// @Router       /users/cover-image [patch]
func (h *UserHandler) UpdateCoverImage(c echo.Context) error {
	return h.updateImage(c, "coverImage", h.accounts.UpdateCoverImage, "Cover image updated successfully")
}

type imageUpdater func(ctx context.Context, userID string, file *domain.Upload) (*domain.User, error)

func (h *UserHandler) updateImage(c echo.Context, field string, update imageUpdater, message string) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	file, closeFile, err := h.formFile(c, field)
	if err != nil {
		return err
	}
	defer closeFile()
	if file == nil {
		return domain.NewValidationError(field + " file is required")
	}

	updated, err := update(c.Request().Context(), user.ID, file)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, updated, message)
}

// formFile opens an optional multipart file. A missing field yields a nil
// upload; the returned close func is always safe to call.
func (h *UserHandler) formFile(c echo.Context, field string) (*domain.Upload, func(), error) {
	noop := func() {}

	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart payload")
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		return nil, noop, domain.NewValidationError(fmt.Sprintf("%s exceeds %d bytes", field, h.maxUpload))
	}

	f, err := header.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("open %s: %w", field, err)
	}

	return &domain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get(echo.HeaderContentType),
		Size:        header.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
