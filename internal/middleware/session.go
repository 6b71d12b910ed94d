package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-dashboard/internal/session"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/logger"
	"github.com/noah-isme/sma-adp-dashboard/pkg/response"
)

// ContextSessionKey is the gin context key storing the *session.Authenticated.
const ContextSessionKey = "currentSession"

// LoginPath is where HTML requests without a session are sent.
const LoginPath = "/login"

// SessionResolver maps a request to its session state.
type SessionResolver interface {
	Resolve(r *http.Request) session.State
}

// Rejecter answers a request a guard refused. It must abort the chain.
type Rejecter func(c *gin.Context, err error)

// RedirectToLogin sends browsers to the login page.
func RedirectToLogin(c *gin.Context, _ error) {
	c.Redirect(http.StatusSeeOther, LoginPath)
	c.Abort()
}

// JSONError answers with the response envelope.
func JSONError(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}

// PlainError answers with the error status and message as text.
func PlainError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	_ = c.Error(err)
	c.String(appErr.Status, appErr.Message)
	c.Abort()
}

// RequireSession protects routes by requiring a live authenticated session.
func RequireSession(resolver SessionResolver, reject Rejecter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := session.AuthenticatedFrom(resolver.Resolve(c.Request))
		if !ok {
			reject(c, appErrors.ErrNotAuthenticated)
			return
		}
		attach(c, sess)
		c.Next()
	}
}

// OptionalSession attaches the session when present but does not block.
func OptionalSession(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess, ok := session.AuthenticatedFrom(resolver.Resolve(c.Request)); ok {
			attach(c, sess)
		}
		c.Next()
	}
}

// RequireAdmin rejects sessions that are not the admin account. It must run
// after RequireSession.
func RequireAdmin(reject Rejecter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := CurrentSession(c)
		if !ok {
			reject(c, appErrors.ErrNotAuthenticated)
			return
		}
		if !sess.IsAdmin {
			reject(c, appErrors.Clone(appErrors.ErrForbidden, "only administrators can add or delete records"))
			return
		}
		c.Next()
	}
}

// CurrentSession returns the session attached by the guards.
func CurrentSession(c *gin.Context) (*session.Authenticated, bool) {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := value.(*session.Authenticated)
	return sess, ok && sess != nil
}

func attach(c *gin.Context, sess *session.Authenticated) {
	c.Set(ContextSessionKey, sess)
	c.Set(logger.UserKey, sess.Username())
}
