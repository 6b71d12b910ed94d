// Package view turns dashboard view models into HTML. Every user-supplied
// string passes through html/template escaping.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/noah-isme/sma-adp-dashboard/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names registered on the gin engine.
const (
	LoginTemplate     = "login.html"
	DashboardTemplate = "dashboard.html"
)

// Role toggles admin-only affordances.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// RoleFor maps the session admin flag to a Role.
func RoleFor(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// CanManage reports whether add and delete controls are rendered.
func (r Role) CanManage() bool { return r == RoleAdmin }

// DisplayName is the sidebar label for the role.
func (r Role) DisplayName() string {
	if r == RoleAdmin {
		return "Admin User"
	}
	return "Student User"
}

// Badge is a small label under a row's subtitle.
type Badge struct {
	Text  string
	Icon  string
	Href  string
	Muted bool
}

// Row is one projected record.
type Row struct {
	ID       int64
	Title    string
	Subtitle string
	Badges   []Badge
}

// ListMeta describes the resource a list belongs to.
type ListMeta struct {
	Kind     string
	Singular string
	Plural   string
	Heading  string
	Icon     string
	Empty    string
}

// Option is one entry of a select input.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Field is one form input.
type Field struct {
	Name        string
	Label       string
	Type        string
	Value       string
	Placeholder string
	Required    bool
	Min         string
	Options     []Option
}

// FormState is the create modal. A rejected submission keeps Fields' values.
type FormState struct {
	Kind   string
	Title  string
	Action string
	Fields []Field
	Errors []string
}

// Values returns the current field values by name.
func (f *FormState) Values() map[string]string {
	out := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		out[field.Name] = field.Value
	}
	return out
}

// ConfirmDialog asks before a delete is sent.
type ConfirmDialog struct {
	Prompt string
	Action string
	Cancel string
}

// Tab is one navigation entry.
type Tab struct {
	Kind   string
	Label  string
	Icon   string
	Href   string
	Active bool
}

// ExportLink points at one export format of the active list.
type ExportLink struct {
	Label string
	Href  string
}

// Filter notes that a scoped list is narrowed to one teacher.
type Filter struct {
	TeacherID string
	ClearHref string
}

// PageData feeds the dashboard document.
type PageData struct {
	Username  string
	Role      Role
	Tabs      []Tab
	Active    ListMeta
	AddLabel  string
	AddHref   string
	Panel     template.HTML
	Filter    *Filter
	Exports   []ExportLink
	Form      *FormState
	Confirm   *ConfirmDialog
	Toasts    []models.Toast
	CSRFToken string
}

// LoginData feeds the login document.
type LoginData struct {
	Username  string
	Error     string
	Toasts    []models.Toast
	CSRFToken string
}

type listData struct {
	Meta ListMeta
	Rows []Row
	Role Role
}

// Renderer holds the parsed template set.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("view").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Template exposes the set for gin's HTML renderer.
func (r *Renderer) Template() *template.Template {
	return r.tmpl
}

// List renders the rows of one resource in upstream order. Zero rows yield the
// empty-state message; delete buttons appear only for roles that can manage.
func (r *Renderer) List(meta ListMeta, rows []Row, role Role) (template.HTML, error) {
	return r.fragment("list", listData{Meta: meta, Rows: rows, Role: role})
}

// ListError renders the inline placeholder shown when a list call fails.
func (r *Renderer) ListError(meta ListMeta) (template.HTML, error) {
	return r.fragment("list_error", meta)
}

// Render executes a named document into w.
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

func (r *Renderer) fragment(name string, data interface{}) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
