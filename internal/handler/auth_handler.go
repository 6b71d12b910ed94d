package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-dashboard/internal/middleware"
	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/response"
)

const (
	dashboardPath = "/dashboard"
	loggedOutText = "Logged out successfully"
)

// AuthHandler serves the login page and the session API.
type AuthHandler struct {
	sessions SessionManager
	logger   *zap.Logger
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(sessions SessionManager, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{sessions: sessions, logger: logger}
}

// Index sends the browser to the dashboard or the login page.
func (h *AuthHandler) Index(c *gin.Context) {
	if _, ok := middleware.CurrentSession(c); ok {
		c.Redirect(http.StatusSeeOther, dashboardPath)
		return
	}
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// LoginPage renders the login form.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if _, ok := middleware.CurrentSession(c); ok {
		c.Redirect(http.StatusSeeOther, dashboardPath)
		return
	}
	response.HTML(c, http.StatusOK, view.LoginTemplate, view.LoginData{
		Toasts:    h.sessions.Flashes(c.Writer, c.Request),
		CSRFToken: middleware.CSRFToken(c),
	})
}

// Login checks the submitted credentials against the upstream. Failures
// re-render the form with an inline error and no session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.loginFailed(c, req.Username, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login form"))
		return
	}

	sess, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.loginFailed(c, req.Username, err)
		return
	}

	welcome := models.SuccessToast(fmt.Sprintf("Welcome %s!", sess.Username()))
	if err := h.sessions.Attach(c.Writer, c.Request, sess, welcome); err != nil {
		h.loginFailed(c, req.Username, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start session"))
		return
	}
	c.Redirect(http.StatusSeeOther, dashboardPath)
}

// Logout ends the session and returns to the login page.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Writer, c.Request, models.SuccessToast(loggedOutText)); err != nil {
		h.logger.Warn("logout cookie update failed", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

func (h *AuthHandler) loginFailed(c *gin.Context, username string, err error) {
	appErr := appErrors.FromError(err)
	_ = c.Error(err)
	response.HTML(c, appErr.Status, view.LoginTemplate, view.LoginData{
		Username:  username,
		Error:     appErr.Message,
		CSRFToken: middleware.CSRFToken(c),
	})
}

// CreateSession godoc
// @Summary Log in
// @Description Verify credentials against the school API and start a cookie session
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /session [post]
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	sess, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.sessions.Attach(c.Writer, c.Request, sess); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start session"))
		return
	}

	response.Created(c, models.SessionInfo{Username: sess.Username(), IsAdmin: sess.IsAdmin, ExpiresAt: sess.ExpiresAt})
}

// CurrentSession godoc
// @Summary Current session
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session [get]
func (h *AuthHandler) CurrentSession(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		response.Error(c, appErrors.ErrNotAuthenticated)
		return
	}
	response.JSON(c, http.StatusOK, models.SessionInfo{Username: sess.Username(), IsAdmin: sess.IsAdmin, ExpiresAt: sess.ExpiresAt})
}

// DeleteSession godoc
// @Summary Log out
// @Tags Session
// @Success 204
// @Router /session [delete]
func (h *AuthHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Logout(c.Writer, c.Request); err != nil {
		h.logger.Warn("logout cookie update failed", zap.Error(err))
	}
	response.NoContent(c)
}
