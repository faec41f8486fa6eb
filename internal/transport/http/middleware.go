package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-fanout/internal/auth"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyUserName is the context key for storing the display name.
	ContextKeyUserName = "user_name"

	// SessionCookie carries the token for browser clients.
	SessionCookie = "session"
)

// AuthMiddleware resolves the session token to a user before the request
// reaches any handler, including the websocket upgrade.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := tokenFromRequest(c.Request)
		if !ok {
			logger.Debug().Str("path", c.Request.URL.Path).Msg("missing session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing session token"})
			return
		}

		identity, err := authService.Resolve(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		c.Set(ContextKeyUserID, identity.UserID)
		c.Set(ContextKeyUserName, identity.Name)

		c.Next()
	}
}

// tokenFromRequest checks the Authorization header, the token query
// parameter and the session cookie, in that order.
func tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1], true
		}
		return "", false
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// currentUser returns the authenticated user id stored by AuthMiddleware.
func currentUser(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return 0, false
	}
	uid, ok := v.(int64)
	return uid, ok
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
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
