package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/service"
)

const sessionContextKey = "session"

// SessionMiddleware resolves the session cookie, if any, and stores the
// session in the context. Stale cookies are cleared.
func SessionMiddleware(bridge *service.SessionBridge, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.Next()
			return
		}

		session, err := bridge.CurrentSession(c.Request.Context(), token)
		if err != nil {
			if !isStaleSession(err) {
				logger.Warnw("failed to resolve session", "err", err)
			}
			clearCookie(c, SessionCookie, secure)
			c.Next()
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// RequireSession rejects requests without a session
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
			return
		}
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *core.Session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, _ := value.(*core.Session)
	return session
}

func isStaleSession(err error) bool {
	return errors.Is(err, core.ErrSessionNotFound) ||
		errors.Is(err, core.ErrTokenExpired) ||
		errors.Is(err, core.ErrTokenInvalidated) ||
		errors.Is(err, core.ErrInvalidToken)
}
