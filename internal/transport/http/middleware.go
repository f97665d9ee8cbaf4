package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openspotter/openspotter-server/internal/auth"
	"github.com/openspotter/openspotter-server/internal/store"
)

// ContextKeyUser is the gin context key holding the authenticated *store.User.
const ContextKeyUser = "user"

// AuthMiddleware validates the bearer access token and loads the account.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := bearerUser(c, authService, logger)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or missing token"})
			c.Abort()
			return
		}
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// OptionalAuthMiddleware loads the account when a valid token is supplied
// and proceeds anonymously otherwise. Used by the public active-spotters
// view, which widens with the viewer's role.
func OptionalAuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := bearerUser(c, authService, logger); ok {
			c.Set(ContextKeyUser, user)
		}
		c.Next()
	}
}

func bearerUser(c *gin.Context, authService *auth.Service, logger *zerolog.Logger) (*store.User, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		logger.Debug().Msg("invalid authorization header format")
		return nil, false
	}

	user, err := authService.VerifyAccess(c.Request.Context(), parts[1])
	if err != nil {
		logger.Debug().Err(err).Msg("invalid token")
		return nil, false
	}
	return user, true
}

// currentUser returns the authenticated user set by the middleware.
func currentUser(c *gin.Context) (*store.User, bool) {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*store.User)
	return user, ok
}

// LoggerMiddleware logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
