package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/api/metrics"
	"github.com/youthcouncil/portal/internal/core/ports"
)

// Context keys set by Auth.
const (
	CtxClaims     = "claims"
	CtxUserID     = "user_id"
	CtxUserType   = "user_type"
	CtxRoles      = "roles"
	CtxActiveRole = "active_role"
)

// HeaderActiveRole lets a multi-role official pick which role a request acts as.
const HeaderActiveRole = "X-Active-Role"

// Auth validates the bearer token and injects the claims into context. Every
// rejection carries the same body so callers cannot tell why a token failed.
func Auth(tokens ports.TokenParser, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized()
			}

			claims, err := tokens.ParseToken(c.Request().Context(), raw)
			if err != nil {
				log.Debug().Err(err).Str("path", c.Path()).Msg("bearer token rejected")
				return unauthorized()
			}

			principal := claims.Principal()
			active := c.Request().Header.Get(HeaderActiveRole)
			if !principal.Permits(active) {
				active = principal.DefaultActiveRole()
			}

			c.Set(CtxClaims, claims)
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxUserType, string(principal.UserType))
			c.Set(CtxRoles, principal.Roles)
			c.Set(CtxActiveRole, active)

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

func unauthorized() error {
	metrics.TokenRejectionsTotal.Inc()
	return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
}
