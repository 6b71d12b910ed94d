package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-dashboard/internal/middleware"
	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/session"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
)

// SessionManager is the session surface the handlers use.
type SessionManager interface {
	Login(ctx context.Context, username, password string) (*session.Authenticated, error)
	Attach(w http.ResponseWriter, r *http.Request, sess *session.Authenticated, toasts ...models.Toast) error
	Resolve(r *http.Request) session.State
	Logout(w http.ResponseWriter, r *http.Request, toasts ...models.Toast) error
	AddFlash(w http.ResponseWriter, r *http.Request, toasts ...models.Toast) error
	Flashes(w http.ResponseWriter, r *http.Request) []models.Toast
}

func credentialsFromContext(c *gin.Context) models.Credentials {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return models.Credentials{}
	}
	return sess.Credentials
}

func roleFromContext(c *gin.Context) view.Role {
	sess, ok := middleware.CurrentSession(c)
	return view.RoleFor(ok && sess.IsAdmin)
}

func usernameFromContext(c *gin.Context) string {
	if sess, ok := middleware.CurrentSession(c); ok {
		return sess.Username()
	}
	return ""
}
