package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/videotube/account-service/internal/core/domain"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieOptions controls how the token cookies are written. Clearing uses the
// same attributes so browsers match and drop the cookies.
type CookieOptions struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (o CookieOptions) setTokens(c echo.Context, pair domain.TokenPair) {
	c.SetCookie(o.cookie(AccessTokenCookie, pair.AccessToken, int(o.AccessTTL.Seconds())))
	c.SetCookie(o.cookie(RefreshTokenCookie, pair.RefreshToken, int(o.RefreshTTL.Seconds())))
}

func (o CookieOptions) clearTokens(c echo.Context) {
	c.SetCookie(o.cookie(AccessTokenCookie, "", -1))
	c.SetCookie(o.cookie(RefreshTokenCookie, "", -1))
}

func (o CookieOptions) cookie(name, value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}
	return cookie
}
