// Package resource implements list, create, delete and export for the
// upstream's resource types behind a single generic controller.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/upstream"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/export"
)

const (
	teachersPath   = "/teachers"
	parentField    = "teacherId"
	parentSegment  = "/teacher/"
	selectTeacher  = "Select Teacher"
	dashboardRoute = "/dashboard/"
)

// Upstream is the subset of the REST client the controller needs.
type Upstream interface {
	Get(ctx context.Context, creds models.Credentials, path string, out interface{}) error
	Post(ctx context.Context, creds models.Credentials, path string, body, out interface{}) error
	Delete(ctx context.Context, creds models.Credentials, path string) error
}

// Controller is the non-generic view of a resource controller used by handlers.
type Controller interface {
	Meta() view.ListMeta
	Title() string
	Scoped() bool
	ConfirmPrompt() string
	List(ctx context.Context, creds models.Credentials) ([]view.Row, error)
	ListByParent(ctx context.Context, creds models.Credentials, parentID string) ([]view.Row, error)
	Records(ctx context.Context, creds models.Credentials, parentID string) (interface{}, error)
	TeacherOptions(ctx context.Context, creds models.Credentials, selected string) []view.Option
	NewForm(ctx context.Context, creds models.Credentials) *view.FormState
	RefillForm(ctx context.Context, creds models.Credentials, outcome Outcome) *view.FormState
	Create(ctx context.Context, creds models.Credentials, values url.Values) (Outcome, error)
	Delete(ctx context.Context, creds models.Credentials, id string) (models.Toast, error)
	Export(ctx context.Context, creds models.Credentials, format export.Format) (*export.File, error)
}

// Outcome describes a finished create. A failed create carries the submitted
// Values and the validation Errors; RefillForm turns them back into the modal.
type Outcome struct {
	Toast  models.Toast
	Values url.Values
	Errors []string
}

// FieldSpec declares one create-form input.
type FieldSpec struct {
	Name        string
	Label       string
	Type        string
	Placeholder string
	Min         string
}

// Descriptor declares everything that differs between resource types.
type Descriptor[T any, F any] struct {
	Kind     string
	Singular string
	Title    string
	Heading  string
	Path     string
	Icon     string
	Empty    string
	Confirm  string
	// Scoped resources are created under {Path}/teacher/{teacherId}.
	Scoped        bool
	Fields        []FieldSpec
	Row           func(T) view.Row
	Payload       func(F) (interface{}, error)
	Parent        func(F) string
	ExportHeaders []string
	Record        func(T) map[string]string
}

// GenericController drives one resource type from its Descriptor.
type GenericController[T any, F any] struct {
	desc      Descriptor[T, F]
	client    Upstream
	validator *validator.Validate
	exports   *export.Registry
	logger    *zap.Logger
}

// New constructs a controller for desc.
func New[T any, F any](desc Descriptor[T, F], client Upstream, validate *validator.Validate, exports *export.Registry, logger *zap.Logger) *GenericController[T, F] {
	if validate == nil {
		validate = NewValidator()
	}
	if exports == nil {
		exports = export.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenericController[T, F]{desc: desc, client: client, validator: validate, exports: exports, logger: logger}
}

// Meta describes the list for the renderer.
func (c *GenericController[T, F]) Meta() view.ListMeta {
	return view.ListMeta{
		Kind:     c.desc.Kind,
		Singular: c.desc.Singular,
		Plural:   c.desc.Kind,
		Heading:  c.desc.Heading,
		Icon:     c.desc.Icon,
		Empty:    c.desc.Empty,
	}
}

// Title is the capitalised singular, e.g. "Teacher".
func (c *GenericController[T, F]) Title() string { return c.desc.Title }

// Scoped reports whether records belong to a teacher.
func (c *GenericController[T, F]) Scoped() bool { return c.desc.Scoped }

// ConfirmPrompt is the question asked before a delete.
func (c *GenericController[T, F]) ConfirmPrompt() string { return c.desc.Confirm }

// List fetches every record and projects it to rows in upstream order.
func (c *GenericController[T, F]) List(ctx context.Context, creds models.Credentials) ([]view.Row, error) {
	records, err := c.fetch(ctx, creds, c.desc.Path)
	if err != nil {
		return nil, err
	}
	return c.rows(records), nil
}

// ListByParent lists the records owned by one teacher.
func (c *GenericController[T, F]) ListByParent(ctx context.Context, creds models.Credentials, parentID string) ([]view.Row, error) {
	path, err := c.parentPath(parentID)
	if err != nil {
		return nil, err
	}
	records, err := c.fetch(ctx, creds, path)
	if err != nil {
		return nil, err
	}
	return c.rows(records), nil
}

// Records returns the raw upstream records, filtered by parent when parentID is set.
func (c *GenericController[T, F]) Records(ctx context.Context, creds models.Credentials, parentID string) (interface{}, error) {
	path := c.desc.Path
	if parentID != "" {
		var err error
		if path, err = c.parentPath(parentID); err != nil {
			return nil, err
		}
	}
	return c.fetch(ctx, creds, path)
}

// TeacherOptions lists teachers for a select input. The first option is the
// empty placeholder. Failures are logged and leave only the placeholder.
func (c *GenericController[T, F]) TeacherOptions(ctx context.Context, creds models.Credentials, selected string) []view.Option {
	options := []view.Option{{Value: "", Label: selectTeacher, Selected: selected == ""}}
	var teachers []models.Teacher
	if err := c.client.Get(ctx, creds, teachersPath, &teachers); err != nil {
		c.logger.Warn("load teachers for select failed", zap.String("resource", c.desc.Kind), zap.Error(err))
		return options
	}
	for _, t := range teachers {
		id := strconv.FormatInt(t.ID, 10)
		options = append(options, view.Option{Value: id, Label: t.Name, Selected: id == selected})
	}
	return options
}

// NewForm returns an empty create form.
func (c *GenericController[T, F]) NewForm(ctx context.Context, creds models.Credentials) *view.FormState {
	return c.form(ctx, creds, nil)
}

// RefillForm rebuilds the create modal after a failed Create, keeping what
// the user typed.
func (c *GenericController[T, F]) RefillForm(ctx context.Context, creds models.Credentials, outcome Outcome) *view.FormState {
	state := c.form(ctx, creds, outcome.Values)
	state.Errors = outcome.Errors
	return state
}

// Create validates the submitted values and posts the record upstream.
func (c *GenericController[T, F]) Create(ctx context.Context, creds models.Credentials, values url.Values) (Outcome, error) {
	var form F
	if err := binding.MapFormWithTag(&form, trimValues(values), "form"); err != nil {
		return Outcome{Values: values, Errors: []string{"The form could not be read"}}, appErrors.CloneWrap(appErrors.ErrValidation, "invalid form", err)
	}

	if err := c.validator.Struct(form); err != nil {
		messages := c.describe(err)
		return Outcome{Values: values, Errors: messages}, appErrors.CloneWrap(appErrors.ErrValidation, strings.Join(messages, "; "), err)
	}

	payload, err := c.desc.Payload(form)
	if err != nil {
		return Outcome{Values: values, Errors: []string{appErrors.FromError(err).Message}}, err
	}

	path := c.desc.Path
	if c.desc.Scoped {
		path = c.desc.Path + parentSegment + url.PathEscape(c.desc.Parent(form))
	}

	if err := c.client.Post(ctx, creds, path, payload, nil); err != nil {
		failure := c.failure(err, "Failed to add "+c.desc.Singular, "Error adding "+c.desc.Singular)
		return Outcome{Toast: models.ErrorToast(failure.Message), Values: values}, failure
	}

	c.logger.Info("resource created", zap.String("resource", c.desc.Kind), zap.String("user", creds.Username))
	return Outcome{Toast: models.SuccessToast(c.desc.Title + " added successfully")}, nil
}

// Delete removes one record. Callers must have confirmed the action.
func (c *GenericController[T, F]) Delete(ctx context.Context, creds models.Credentials, id string) (models.Toast, error) {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return models.Toast{}, appErrors.Clone(appErrors.ErrNotFound, c.desc.Singular+" not found")
	}
	if err := c.client.Delete(ctx, creds, c.desc.Path+"/"+id); err != nil {
		failure := c.failure(err, "Failed to delete "+c.desc.Singular, "Error deleting "+c.desc.Singular)
		return models.ErrorToast(failure.Message), failure
	}
	c.logger.Info("resource deleted", zap.String("resource", c.desc.Kind), zap.String("id", id), zap.String("user", creds.Username))
	return models.SuccessToast(c.desc.Title + " deleted successfully"), nil
}

// Export re-lists the resource and renders it in format.
func (c *GenericController[T, F]) Export(ctx context.Context, creds models.Credentials, format export.Format) (*export.File, error) {
	records, err := c.fetch(ctx, creds, c.desc.Path)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{Headers: c.desc.ExportHeaders}
	for _, record := range records {
		data.Rows = append(data.Rows, c.desc.Record(record))
	}
	file, err := c.exports.Render(format, data, c.desc.Kind, c.desc.Heading)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export "+c.desc.Kind)
	}
	return file, nil
}

func (c *GenericController[T, F]) fetch(ctx context.Context, creds models.Credentials, path string) ([]T, error) {
	var records []T
	if err := c.client.Get(ctx, creds, path, &records); err != nil {
		return nil, c.failure(err, "Error loading "+c.desc.Kind, "Error loading "+c.desc.Kind)
	}
	return records, nil
}

func (c *GenericController[T, F]) rows(records []T) []view.Row {
	rows := make([]view.Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, c.desc.Row(record))
	}
	return rows
}

func (c *GenericController[T, F]) parentPath(parentID string) (string, error) {
	if !c.desc.Scoped {
		return "", appErrors.Clone(appErrors.ErrNotFound, c.desc.Kind+" cannot be filtered by teacher")
	}
	if _, err := strconv.ParseUint(parentID, 10, 64); err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "teacher id must be numeric")
	}
	return c.desc.Path + parentSegment + parentID, nil
}

// failure keeps authentication errors as they are and maps everything else to
// a connection error carrying the user-facing text.
func (c *GenericController[T, F]) failure(err error, rejected, unreachable string) *appErrors.Error {
	if errors.Is(err, appErrors.ErrNotAuthenticated) {
		return appErrors.FromError(err)
	}
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		return appErrors.CloneWrap(appErrors.ErrConnection, rejected, err)
	}
	return appErrors.CloneWrap(appErrors.ErrConnection, unreachable, err)
}

func (c *GenericController[T, F]) form(ctx context.Context, creds models.Credentials, values url.Values) *view.FormState {
	state := &view.FormState{
		Kind:   c.desc.Kind,
		Title:  "Add " + c.desc.Title,
		Action: dashboardRoute + c.desc.Kind,
	}
	for _, spec := range c.desc.Fields {
		state.Fields = append(state.Fields, view.Field{
			Name:        spec.Name,
			Label:       spec.Label,
			Type:        spec.Type,
			Value:       values.Get(spec.Name),
			Placeholder: spec.Placeholder,
			Min:         spec.Min,
			Required:    true,
		})
	}
	if c.desc.Scoped {
		state.Fields = append(state.Fields, view.Field{
			Name:     parentField,
			Label:    "Teacher",
			Type:     "select",
			Value:    values.Get(parentField),
			Required: true,
			Options:  c.TeacherOptions(ctx, creds, values.Get(parentField)),
		})
	}
	return state
}

func (c *GenericController[T, F]) describe(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"Please check the form and try again"}
	}
	labels := map[string]string{parentField: "Teacher"}
	for _, spec := range c.desc.Fields {
		labels[spec.Name] = spec.Label
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label := labels[fe.Field()]
		if label == "" {
			label = fe.Field()
		}
		messages = append(messages, describeField(fe, label))
	}
	return messages
}

func describeField(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == parentField {
			return "Please select a teacher"
		}
		return label + " is required"
	case "email":
		return label + " must be a valid email address"
	case "number", "numeric":
		return label + " must be a whole number"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	default:
		return label + " is invalid"
	}
}

func trimValues(values url.Values) map[string][]string {
	out := make(map[string][]string, len(values))
	for key, vals := range values {
		trimmed := make([]string, len(vals))
		for i, v := range vals {
			trimmed[i] = strings.TrimSpace(v)
		}
		out[key] = trimmed
	}
	return out
}
