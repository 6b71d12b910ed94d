package handler

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-dashboard/internal/dashboard"
	"github.com/noah-isme/sma-adp-dashboard/internal/middleware"
	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/resource"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/export"
	"github.com/noah-isme/sma-adp-dashboard/pkg/response"
)

const confirmValue = "yes"

var exportFormats = []export.Format{export.FormatCSV, export.FormatXLSX, export.FormatPDF}

// DashboardHandler renders the tabbed dashboard and its create and delete flows.
type DashboardHandler struct {
	tabs      *dashboard.Router
	resources *resource.Registry
	renderer  *view.Renderer
	sessions  SessionManager
	logger    *zap.Logger
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(tabs *dashboard.Router, resources *resource.Registry, renderer *view.Renderer, sessions SessionManager, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{tabs: tabs, resources: resources, renderer: renderer, sessions: sessions, logger: logger}
}

type pageOptions struct {
	status  int
	form    *view.FormState
	confirm *view.ConfirmDialog
	toasts  []models.Toast
}

// Home opens the initial tab.
func (h *DashboardHandler) Home(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, tabPath(h.tabs.Initial()))
}

// Tab selects a tab and renders the page.
func (h *DashboardHandler) Tab(c *gin.Context) {
	h.render(c, pageOptions{})
}

// Panel renders only the list of a tab.
func (h *DashboardHandler) Panel(c *gin.Context) {
	state, err := h.tabs.Select(c.Request.Context(), credentialsFromContext(c), c.Param("tab"), c.Query("teacher"))
	if err != nil {
		middleware.PlainError(c, err)
		return
	}
	panel, status := h.panel(c, state)
	c.Header("Cache-Control", "no-store")
	c.Data(status, "text/html; charset=utf-8", []byte(panel))
}

// NewForm opens the create modal.
func (h *DashboardHandler) NewForm(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.render(c, pageOptions{form: ctrl.NewForm(c.Request.Context(), credentialsFromContext(c))})
}

// Create submits the create modal. Success redirects back to the tab with a
// toast; failure re-renders the modal with the entered values.
func (h *DashboardHandler) Create(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		middleware.PlainError(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form"))
		return
	}

	outcome, err := ctrl.Create(c.Request.Context(), credentialsFromContext(c), c.Request.PostForm)
	if err != nil {
		_ = c.Error(err)
		opts := pageOptions{
			status: appErrors.FromError(err).Status,
			form:   ctrl.RefillForm(c.Request.Context(), credentialsFromContext(c), outcome),
		}
		if outcome.Toast.Text != "" {
			opts.toasts = []models.Toast{outcome.Toast}
		}
		h.render(c, opts)
		return
	}

	h.flash(c, outcome.Toast)
	c.Redirect(http.StatusSeeOther, tabPath(c.Param("tab")))
}

// ConfirmDelete renders the confirmation dialog for a delete.
func (h *DashboardHandler) ConfirmDelete(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	tab := c.Param("tab")
	h.render(c, pageOptions{confirm: &view.ConfirmDialog{
		Prompt: ctrl.ConfirmPrompt(),
		Action: deletePath(tab, c.Param("id")),
		Cancel: tabPath(tab),
	}})
}

// Delete removes a record once the dialog was confirmed. Without the
// confirmation the browser is sent to the dialog and nothing is deleted.
func (h *DashboardHandler) Delete(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	tab, id := c.Param("tab"), c.Param("id")
	if c.PostForm("confirm") != confirmValue {
		c.Redirect(http.StatusSeeOther, deletePath(tab, id))
		return
	}

	toast, err := ctrl.Delete(c.Request.Context(), credentialsFromContext(c), id)
	if err != nil {
		_ = c.Error(err)
		if toast.Text == "" {
			toast = models.ErrorToast(appErrors.FromError(err).Message)
		}
	}
	h.flash(c, toast)
	c.Redirect(http.StatusSeeOther, tabPath(tab))
}

// Export downloads the tab's records as CSV, XLSX or PDF.
func (h *DashboardHandler) Export(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		middleware.PlainError(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}

	file, err := ctrl.Export(c.Request.Context(), credentialsFromContext(c), format)
	if err != nil {
		_ = c.Error(err)
		h.flash(c, models.ErrorToast("Failed to export "+ctrl.Meta().Kind))
		c.Redirect(http.StatusSeeOther, tabPath(c.Param("tab")))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}

func (h *DashboardHandler) render(c *gin.Context, opts pageOptions) {
	tab := c.Param("tab")
	parent := c.Query("teacher")
	state, err := h.tabs.Select(c.Request.Context(), credentialsFromContext(c), tab, parent)
	if err != nil {
		middleware.PlainError(c, err)
		return
	}
	ctrl, _ := h.resources.Get(tab)

	panel, _ := h.panel(c, state)
	role := roleFromContext(c)
	data := view.PageData{
		Username: usernameFromContext(c),
		Role:     role,
		Tabs:     state.Tabs,
		Active:   state.Panel.Meta,
		AddLabel: "Add " + ctrl.Title(),
		AddHref:  tabPath(tab) + "/new",
		Panel:    panel,
		Form:     opts.form,
		Confirm:  opts.confirm,
		Toasts:   append(h.sessions.Flashes(c.Writer, c.Request), opts.toasts...),

		CSRFToken: middleware.CSRFToken(c),
	}
	if parent != "" && ctrl.Scoped() {
		data.Filter = &view.Filter{TeacherID: parent, ClearHref: tabPath(tab)}
	}
	for _, f := range exportFormats {
		data.Exports = append(data.Exports, view.ExportLink{
			Label: strings.ToUpper(string(f)),
			Href:  tabPath(tab) + "/export?format=" + string(f),
		})
	}

	status := opts.status
	if status == 0 {
		status = http.StatusOK
	}
	response.HTML(c, status, view.DashboardTemplate, data)
}

// panel renders the list or, when the list call failed, the inline error.
func (h *DashboardHandler) panel(c *gin.Context, state *dashboard.State) (template.HTML, int) {
	if state.Panel.Err != nil {
		_ = c.Error(state.Panel.Err)
		h.logger.Warn("list failed", zap.String("resource", state.Active), zap.Error(state.Panel.Err))
		status := appErrors.FromError(state.Panel.Err).Status
		html, err := h.renderer.ListError(state.Panel.Meta)
		if err != nil {
			h.logger.Error("render list error", zap.Error(err))
		}
		return html, status
	}
	html, err := h.renderer.List(state.Panel.Meta, state.Panel.Rows, roleFromContext(c))
	if err != nil {
		h.logger.Error("render list", zap.Error(err))
		return "", http.StatusInternalServerError
	}
	return html, http.StatusOK
}

func (h *DashboardHandler) controller(c *gin.Context) (resource.Controller, bool) {
	ctrl, ok := h.resources.Get(c.Param("tab"))
	if !ok {
		middleware.PlainError(c, appErrors.Clone(appErrors.ErrNotFound, "unknown tab "+c.Param("tab")))
		return nil, false
	}
	return ctrl, true
}

func (h *DashboardHandler) flash(c *gin.Context, toasts ...models.Toast) {
	if err := h.sessions.AddFlash(c.Writer, c.Request, toasts...); err != nil {
		h.logger.Warn("flash write failed", zap.Error(err))
	}
}

func tabPath(tab string) string {
	return dashboardPath + "/" + tab
}

func deletePath(tab, id string) string {
	return tabPath(tab) + "/delete/" + id
}
