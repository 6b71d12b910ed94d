package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-dashboard/internal/middleware"
	"github.com/noah-isme/sma-adp-dashboard/internal/resource"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/response"
)

// ResourceHandler exposes the resource controllers as JSON.
type ResourceHandler struct {
	resources *resource.Registry
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(resources *resource.Registry) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

// List godoc
// @Summary List records
// @Description List teachers, students or courses from the school API
// @Tags Resources
// @Produce json
// @Param resource path string true "teachers, students or courses"
// @Param teacher query string false "Only records owned by this teacher (students, courses)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /resources/{resource} [get]
func (h *ResourceHandler) List(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	records, err := ctrl.Records(c.Request.Context(), credentialsFromContext(c), c.Query("teacher"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "resource", ctrl.Meta().Kind)
	response.JSON(c, http.StatusOK, records, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create a record
// @Description Students and courses need a teacherId field
// @Tags Resources
// @Accept json
// @Produce json
// @Param resource path string true "teachers, students or courses"
// @Param payload body object true "Form fields"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /resources/{resource} [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	outcome, err := ctrl.Create(c.Request.Context(), credentialsFromContext(c), formValues(payload))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": outcome.Toast.Text})
}

// Delete godoc
// @Summary Delete a record
// @Description Requires confirm=true; deleting a teacher also deletes their students and courses
// @Tags Resources
// @Produce json
// @Param resource path string true "teachers, students or courses"
// @Param id path int true "Record id"
// @Param confirm query bool true "Must be true"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /resources/{resource}/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if confirmed, _ := strconv.ParseBool(c.Query("confirm")); !confirmed {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, ctrl.ConfirmPrompt()+" Repeat the request with confirm=true."))
		return
	}

	toast, err := ctrl.Delete(c.Request.Context(), credentialsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": toast.Text})
}

func (h *ResourceHandler) controller(c *gin.Context) (resource.Controller, bool) {
	ctrl, ok := h.resources.Get(c.Param("resource"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown resource "+c.Param("resource")))
		return nil, false
	}
	return ctrl, true
}

// formValues flattens a JSON object into form values so both surfaces share
// one validation path.
func formValues(payload map[string]interface{}) url.Values {
	values := make(url.Values, len(payload))
	for key, raw := range payload {
		switch v := raw.(type) {
		case nil:
		case string:
			values.Set(key, v)
		case float64:
			values.Set(key, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			values.Set(key, strconv.FormatBool(v))
		default:
			values.Set(key, strings.TrimSpace(fmt.Sprint(v)))
		}
	}
	return values
}
