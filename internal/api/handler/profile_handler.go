package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/videotube/account-service/internal/core/ports"
)

// ProfileHandler serves the read-side channel and history queries.
type ProfileHandler struct {
	profiles ports.ProfileService
}

func NewProfileHandler(profiles ports.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Channel returns the public profile of a channel.
//
// @Summary      Channel profile
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Param        username  path      string  true  "Channel username"
// @Success      200       {object}  apiResponse
// @Failure      400       {object}  map[string]any
// @Failure      404       {object}  map[string]any
// @Router       /users/channel/{username} [get]
func (h *ProfileHandler) Channel(c echo.Context) error {
	viewer, err := ctxUser(c)
	if err != nil {
		return err
	}

	profile, err := h.profiles.GetChannelProfile(c.Request().Context(), viewer.ID, c.Param("username"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, profile, "User channel fetched successfully")
}

// WatchHistory returns the authenticated user's watched videos in order.
//
// @Summary      Watch history
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  map[string]any
// @Router       /users/watch-history [get]
func (h *ProfileHandler) WatchHistory(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	videos, err := h.profiles.GetWatchHistory(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, videos, "Watch history fetched successfully")
}
