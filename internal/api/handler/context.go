package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/youthcouncil/portal/internal/api/middleware"
	"github.com/youthcouncil/portal/internal/core/ports"
)

// ctxClaims returns the claims injected by the Auth middleware. A missing
// user id means the middleware did not run for this route.
func ctxClaims(c echo.Context) (*ports.TokenClaims, error) {
	claims, _ := c.Get(middleware.CtxClaims).(*ports.TokenClaims)
	if claims == nil || claims.UserID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return claims, nil
}
