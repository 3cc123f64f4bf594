package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/videotube/account-service/internal/api/middleware"
	"github.com/videotube/account-service/internal/core/domain"
)

// ctxUser returns the user the Auth middleware resolved for this request.
// A missing user means the route was mounted without the middleware.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, _ := c.Get(middleware.ContextUserKey).(*domain.User)
	if user == nil || user.ID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return user, nil
}
