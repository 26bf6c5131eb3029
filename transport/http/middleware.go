package http

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/service"
)

const (
	contextUserKey    = "user"
	contextSessionKey = "session"
	contextTokenKey   = "access_token"
)

// AuthMiddleware rejects requests without a bearer token bound to a live session
func AuthMiddleware(sessions *service.SessionManager, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, logger, core.ErrUnauthorized)
			return
		}

		user, session, err := sessions.ResolveAccessToken(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, logger, err)
			return
		}

		setPrincipal(c, token, user, session)
		c.Next()
	}
}

// OptionalAuth attaches the user when the bearer token is valid and otherwise
// lets the request through anonymously.
func OptionalAuth(sessions *service.SessionManager, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		user, session, err := sessions.ResolveAccessToken(c.Request.Context(), token)
		if err != nil {
			// storage failures degrade to anonymous here, only logged
			if !errors.Is(err, core.ErrUnauthorized) {
				logger.Warn("optional auth failed", "path", c.FullPath(), "err", err)
			}
			c.Next()
			return
		}

		setPrincipal(c, token, user, session)
		c.Next()
	}
}

// AdminMiddleware requires the authenticated user to hold the admin role.
// It must run after AuthMiddleware.
func AdminMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortWithError(c, logger, core.ErrUnauthorized)
			return
		}
		if !user.IsAdmin() {
			abortWithError(c, logger, core.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		}
		if user, ok := CurrentUser(c); ok {
			attrs = append(attrs, "user_id", user.ID)
		}
		logger.Info("http request", attrs...)
	}
}

// CurrentUser returns the user attached by the auth middlewares
func CurrentUser(c *gin.Context) (*core.User, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*core.User)
	return user, ok
}

// CurrentSession returns the session attached by the auth middlewares
func CurrentSession(c *gin.Context) (*core.Session, bool) {
	v, ok := c.Get(contextSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*core.Session)
	return session, ok
}

func setPrincipal(c *gin.Context, token string, user *core.User, session *core.Session) {
	c.Set(contextTokenKey, token)
	c.Set(contextUserKey, user)
	c.Set(contextSessionKey, session)
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
