package resource

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/export"
)

// Resource kinds, also used as URL segments.
const (
	KindTeachers = "teachers"
	KindStudents = "students"
	KindCourses  = "courses"
)

// Teachers describes the teacher resource.
var Teachers = Descriptor[models.Teacher, models.CreateTeacherForm]{
	Kind:     KindTeachers,
	Singular: "teacher",
	Title:    "Teacher",
	Heading:  "Teachers",
	Path:     "/teachers",
	Icon:     "school",
	Empty:    `No teachers found. Click "Add Teacher" to create one!`,
	Confirm:  "Are you sure you want to delete this teacher? This will also delete all associated students and courses.",
	Fields: []FieldSpec{
		{Name: "name", Label: "Full Name", Type: "text", Placeholder: "Jane Doe"},
		{Name: "email", Label: "Email", Type: "email", Placeholder: "jane@school.edu"},
		{Name: "department", Label: "Department", Type: "text", Placeholder: "Mathematics"},
	},
	Row: func(t models.Teacher) view.Row {
		row := view.Row{
			ID:       t.ID,
			Title:    t.Name,
			Subtitle: t.Email,
			Badges:   []view.Badge{{Text: t.Department}},
		}
		if t.Students != nil {
			row.Badges = append(row.Badges, view.Badge{Text: strconv.Itoa(len(t.Students)) + " Students", Icon: "groups", Href: filterHref(KindStudents, t.ID), Muted: true})
		}
		if t.Courses != nil {
			row.Badges = append(row.Badges, view.Badge{Text: strconv.Itoa(len(t.Courses)) + " Courses", Icon: "menu_book", Href: filterHref(KindCourses, t.ID), Muted: true})
		}
		return row
	},
	Payload: func(f models.CreateTeacherForm) (interface{}, error) {
		return f, nil
	},
	ExportHeaders: []string{"ID", "Name", "Email", "Department"},
	Record: func(t models.Teacher) map[string]string {
		return map[string]string{
			"ID":         strconv.FormatInt(t.ID, 10),
			"Name":       t.Name,
			"Email":      t.Email,
			"Department": t.Department,
		}
	},
}

// Students describes the student resource.
var Students = Descriptor[models.Student, models.CreateStudentForm]{
	Kind:     KindStudents,
	Singular: "student",
	Title:    "Student",
	Heading:  "Students",
	Path:     "/students",
	Icon:     "person",
	Empty:    `No students found. Click "Add Student" to enroll one!`,
	Confirm:  "Are you sure you want to delete this student?",
	Scoped:   true,
	Fields: []FieldSpec{
		{Name: "name", Label: "Full Name", Type: "text", Placeholder: "John Smith"},
		{Name: "email", Label: "Email", Type: "email", Placeholder: "john@student.edu"},
		{Name: "studentId", Label: "Student ID", Type: "text", Placeholder: "STU001"},
	},
	Row: func(s models.Student) view.Row {
		return view.Row{
			ID:       s.ID,
			Title:    s.Name,
			Subtitle: s.Email,
			Badges:   []view.Badge{{Text: "ID: " + s.StudentID}},
		}
	},
	Payload: func(f models.CreateStudentForm) (interface{}, error) {
		return f, nil
	},
	Parent:        func(f models.CreateStudentForm) string { return f.TeacherID },
	ExportHeaders: []string{"ID", "Name", "Email", "Student ID"},
	Record: func(s models.Student) map[string]string {
		return map[string]string{
			"ID":         strconv.FormatInt(s.ID, 10),
			"Name":       s.Name,
			"Email":      s.Email,
			"Student ID": s.StudentID,
		}
	},
}

// Courses describes the course resource.
var Courses = Descriptor[models.Course, models.CreateCourseForm]{
	Kind:     KindCourses,
	Singular: "course",
	Title:    "Course",
	Heading:  "Courses",
	Path:     "/courses",
	Icon:     "menu_book",
	Empty:    `No courses found. Click "Add Course" to create one!`,
	Confirm:  "Are you sure you want to delete this course?",
	Scoped:   true,
	Fields: []FieldSpec{
		{Name: "title", Label: "Course Title", Type: "text", Placeholder: "Algebra I"},
		{Name: "courseCode", Label: "Course Code", Type: "text", Placeholder: "MATH101"},
		{Name: "credits", Label: "Credits", Type: "number", Placeholder: "3", Min: "1"},
	},
	Row: func(c models.Course) view.Row {
		return view.Row{
			ID:       c.ID,
			Title:    c.Title,
			Subtitle: "Code: " + c.CourseCode,
			Badges:   []view.Badge{{Text: strconv.Itoa(c.Credits) + " Credits"}},
		}
	},
	Payload: func(f models.CreateCourseForm) (interface{}, error) {
		credits, err := strconv.Atoi(f.Credits)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Credits must be a whole number")
		}
		if credits < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Credits must be at least 1")
		}
		return models.CreateCoursePayload{Title: f.Title, CourseCode: f.CourseCode, Credits: credits}, nil
	},
	Parent:        func(f models.CreateCourseForm) string { return f.TeacherID },
	ExportHeaders: []string{"ID", "Title", "Code", "Credits"},
	Record: func(c models.Course) map[string]string {
		return map[string]string{
			"ID":      strconv.FormatInt(c.ID, 10),
			"Title":   c.Title,
			"Code":    c.CourseCode,
			"Credits": strconv.Itoa(c.Credits),
		}
	},
}

func filterHref(kind string, teacherID int64) string {
	return dashboardRoute + kind + "?teacher=" + strconv.FormatInt(teacherID, 10)
}

// Registry holds one controller per resource kind in tab order.
type Registry struct {
	order       []string
	controllers map[string]Controller
}

// NewRegistry builds the teacher, student and course controllers.
func NewRegistry(client Upstream, validate *validator.Validate, exports *export.Registry, logger *zap.Logger) *Registry {
	if validate == nil {
		validate = NewValidator()
	}
	return NewRegistryOf(
		New(Teachers, client, validate, exports, logger),
		New(Students, client, validate, exports, logger),
		New(Courses, client, validate, exports, logger),
	)
}

// NewRegistryOf wraps arbitrary controllers, keeping the given order.
func NewRegistryOf(controllers ...Controller) *Registry {
	r := &Registry{controllers: make(map[string]Controller, len(controllers))}
	for _, c := range controllers {
		kind := c.Meta().Kind
		r.order = append(r.order, kind)
		r.controllers[kind] = c
	}
	return r
}

// Get returns the controller for kind.
func (r *Registry) Get(kind string) (Controller, bool) {
	c, ok := r.controllers[kind]
	return c, ok
}

// Kinds returns the registered kinds in order.
func (r *Registry) Kinds() []string {
	return append([]string(nil), r.order...)
}

var (
	_ Controller = (*GenericController[models.Teacher, models.CreateTeacherForm])(nil)
	_ Controller = (*GenericController[models.Student, models.CreateStudentForm])(nil)
	_ Controller = (*GenericController[models.Course, models.CreateCourseForm])(nil)
)
