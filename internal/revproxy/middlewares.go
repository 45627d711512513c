package revproxy

import (
	"github.com/labstack/echo/v4"
)

// noCookies removes all cookies from a request before it is proxied.
// The gateway's own session cookie must never reach the backend.
func noCookies(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Request().Header.Set("cookie", "")
		return next(c)
	}
}

// setHost sets the host field and header of a request. Needed to make
// proxying to the backend work when it lives on another host.
func setHost(host string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Request().Host = host
			return next(c)
		}
	}
}
