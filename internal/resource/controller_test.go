package resource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/upstream"
	"github.com/noah-isme/sma-adp-dashboard/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
	"github.com/noah-isme/sma-adp-dashboard/pkg/export"
)

var adminCreds = models.Credentials{Username: "admin", Password: "admin123"}

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter)
}

func newFakeAPI(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*fakeAPI, *upstream.Client) {
	t.Helper()
	api := &fakeAPI{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.requests = append(api.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		api.mu.Unlock()
		if handler, ok := api.routes[r.Method+" "+r.URL.Path]; ok {
			handler(w)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return api, upstream.NewClient(config.UpstreamConfig{BaseURL: srv.URL}, nil, nil)
}

func (a *fakeAPI) calls(method string) []recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []recordedRequest
	for _, r := range a.requests {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

func jsonReply(status int, v interface{}) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func TestTeacherListProjection(t *testing.T) {
	_, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /teachers": jsonReply(http.StatusOK, []models.Teacher{
			{ID: 1, Name: "Ada", Email: "ada@school.test", Department: "Math", Students: []models.Student{{ID: 1}, {ID: 2}}, Courses: []models.Course{{ID: 3}}},
			{ID: 2, Name: "Grace", Email: "grace@school.test", Department: "CS"},
		}),
	})
	ctrl := New(Teachers, client, nil, nil, nil)

	rows, err := ctrl.List(context.Background(), adminCreds)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ada", rows[0].Title)
	assert.Equal(t, "ada@school.test", rows[0].Subtitle)
	require.Len(t, rows[0].Badges, 3)
	assert.Equal(t, "Math", rows[0].Badges[0].Text)
	assert.Equal(t, "2 Students", rows[0].Badges[1].Text)
	assert.Equal(t, "1 Courses", rows[0].Badges[2].Text)
	assert.Len(t, rows[1].Badges, 1)
}

func TestStudentAndCourseProjection(t *testing.T) {
	assert.Equal(t, "ID: STU001", Students.Row(models.Student{StudentID: "STU001"}).Badges[0].Text)

	row := Courses.Row(models.Course{Title: "Algebra", CourseCode: "MATH101", Credits: 3})
	assert.Equal(t, "Algebra", row.Title)
	assert.Equal(t, "Code: MATH101", row.Subtitle)
	assert.Equal(t, "3 Credits", row.Badges[0].Text)
}

func TestListFailureIsConnectionError(t *testing.T) {
	_, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /students": jsonReply(http.StatusInternalServerError, map[string]string{"error": "boom"}),
	})
	ctrl := New(Students, client, nil, nil, nil)

	rows, err := ctrl.List(context.Background(), adminCreds)

	assert.Nil(t, rows)
	assert.ErrorIs(t, err, appErrors.ErrConnection)
}

func TestListByParentUsesTeacherEndpoint(t *testing.T) {
	api, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /courses/teacher/4": jsonReply(http.StatusOK, []models.Course{{ID: 1, Title: "Physics", CourseCode: "PHY1", Credits: 2}}),
	})
	ctrl := New(Courses, client, nil, nil, nil)

	rows, err := ctrl.ListByParent(context.Background(), adminCreds, "4")

	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, api.calls(http.MethodGet), 1)

	_, err = New(Teachers, client, nil, nil, nil).ListByParent(context.Background(), adminCreds, "4")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestNewFormScopedListsTeachers(t *testing.T) {
	_, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /teachers": jsonReply(http.StatusOK, []models.Teacher{{ID: 7, Name: "Ada"}}),
	})
	ctrl := New(Students, client, nil, nil, nil)

	form := ctrl.NewForm(context.Background(), adminCreds)

	require.Len(t, form.Fields, 4)
	teacher := form.Fields[3]
	assert.Equal(t, "select", teacher.Type)
	require.Len(t, teacher.Options, 2)
	assert.Equal(t, "Select Teacher", teacher.Options[0].Label)
	assert.Equal(t, "", teacher.Options[0].Value)
	assert.Equal(t, "7", teacher.Options[1].Value)
	assert.Equal(t, "Add Student", form.Title)
}

func TestCreateStudentPostsScopedPayload(t *testing.T) {
	api, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /students/teacher/7": jsonReply(http.StatusCreated, models.Student{ID: 10}),
	})
	ctrl := New(Students, client, nil, nil, nil)

	outcome, err := ctrl.Create(context.Background(), adminCreds, url.Values{
		"name":      {"  John "},
		"email":     {"john@student.test"},
		"studentId": {"STU001"},
		"teacherId": {"7"},
	})

	require.NoError(t, err)
	assert.Empty(t, outcome.Errors)
	assert.Equal(t, models.SuccessToast("Student added successfully"), outcome.Toast)

	posts := api.calls(http.MethodPost)
	require.Len(t, posts, 1)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(posts[0].Body), &body))
	assert.Equal(t, map[string]interface{}{"name": "John", "email": "john@student.test", "studentId": "STU001"}, body)
}

func TestCreateCourseSendsIntegerCredits(t *testing.T) {
	api, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /courses/teacher/2": jsonReply(http.StatusCreated, models.Course{ID: 5}),
	})
	ctrl := New(Courses, client, nil, nil, nil)

	_, err := ctrl.Create(context.Background(), adminCreds, url.Values{
		"title": {"Algebra"}, "courseCode": {"MATH101"}, "credits": {"3"}, "teacherId": {"2"},
	})

	require.NoError(t, err)
	posts := api.calls(http.MethodPost)
	require.Len(t, posts, 1)
	assert.JSONEq(t, `{"title":"Algebra","courseCode":"MATH101","credits":3}`, posts[0].Body)
}

func TestCreateValidationKeepsValuesAndSkipsUpstream(t *testing.T) {
	api, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /teachers": jsonReply(http.StatusOK, []models.Teacher{{ID: 2, Name: "Ada"}}),
	})
	ctrl := New(Courses, client, nil, nil, nil)

	outcome, err := ctrl.Create(context.Background(), adminCreds, url.Values{
		"title": {"Algebra"}, "courseCode": {"MATH101"}, "credits": {"0"}, "teacherId": {"2"},
	})

	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, outcome.Errors, "Credits must be at least 1")
	assert.Empty(t, api.calls(http.MethodPost))
	assert.Empty(t, api.calls(http.MethodGet))

	form := ctrl.RefillForm(context.Background(), adminCreds, outcome)
	assert.Equal(t, "Algebra", form.Values()["title"])
	assert.Equal(t, "0", form.Values()["credits"])
	assert.Equal(t, outcome.Errors, form.Errors)
	selected := form.Fields[3].Options[1]
	assert.True(t, selected.Selected)
	assert.Len(t, api.calls(http.MethodGet), 1)
}

func TestCreateRejectsSignedAndDecimalNumbers(t *testing.T) {
	api, client := newFakeAPI(t, nil)
	ctrl := New(Courses, client, nil, nil, nil)

	cases := []struct {
		name      string
		credits   string
		teacherID string
		message   string
	}{
		{name: "decimal teacher", credits: "3", teacherID: "1.5", message: "Teacher must be a whole number"},
		{name: "negative teacher", credits: "3", teacherID: "-4", message: "Teacher must be a whole number"},
		{name: "decimal credits", credits: "2.5", teacherID: "2", message: "Credits must be a whole number"},
		{name: "negative credits", credits: "-1", teacherID: "2", message: "Credits must be a whole number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := ctrl.Create(context.Background(), adminCreds, url.Values{
				"title": {"Algebra"}, "courseCode": {"MATH101"}, "credits": {tc.credits}, "teacherId": {tc.teacherID},
			})

			require.ErrorIs(t, err, appErrors.ErrValidation)
			assert.Contains(t, outcome.Errors, tc.message)
		})
	}
	assert.Empty(t, api.calls(http.MethodPost))
}

func TestCreateMissingFieldsDescribed(t *testing.T) {
	api, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /teachers": jsonReply(http.StatusOK, []models.Teacher{}),
	})
	ctrl := New(Students, client, nil, nil, nil)

	outcome, err := ctrl.Create(context.Background(), adminCreds, url.Values{"name": {"John"}, "email": {"not-an-email"}})

	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, outcome.Errors, "Email must be a valid email address")
	assert.Contains(t, outcome.Errors, "Student ID is required")
	assert.Contains(t, outcome.Errors, "Please select a teacher")
	assert.Empty(t, api.calls(http.MethodPost))
}

func TestCreateRejectedAndUnreachable(t *testing.T) {
	_, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /teachers": jsonReply(http.StatusConflict, map[string]string{"error": "duplicate email"}),
	})
	ctrl := New(Teachers, client, nil, nil, nil)
	values := url.Values{"name": {"Ada"}, "email": {"ada@school.test"}, "department": {"Math"}}

	outcome, err := ctrl.Create(context.Background(), adminCreds, values)

	require.ErrorIs(t, err, appErrors.ErrConnection)
	assert.Equal(t, models.ErrorToast("Failed to add teacher"), outcome.Toast)
	assert.Equal(t, "Ada", outcome.Values.Get("name"))
	assert.NotContains(t, outcome.Toast.Text, "duplicate")

	offline := New(Teachers, upstream.NewClient(config.UpstreamConfig{BaseURL: "http://127.0.0.1:1"}, nil, nil), nil, nil, nil)
	outcome, err = offline.Create(context.Background(), adminCreds, values)

	require.ErrorIs(t, err, appErrors.ErrConnection)
	assert.Equal(t, models.ErrorToast("Error adding teacher"), outcome.Toast)
}

func TestDelete(t *testing.T) {
	api, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"DELETE /teachers/3": func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) },
		"DELETE /teachers/4": jsonReply(http.StatusInternalServerError, nil),
	})
	ctrl := New(Teachers, client, nil, nil, nil)

	toast, err := ctrl.Delete(context.Background(), adminCreds, "3")
	require.NoError(t, err)
	assert.Equal(t, models.SuccessToast("Teacher deleted successfully"), toast)

	toast, err = ctrl.Delete(context.Background(), adminCreds, "4")
	require.ErrorIs(t, err, appErrors.ErrConnection)
	assert.Equal(t, models.ErrorToast("Failed to delete teacher"), toast)

	_, err = ctrl.Delete(context.Background(), adminCreds, "../students")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = ctrl.Delete(context.Background(), adminCreds, "-3")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Len(t, api.calls(http.MethodDelete), 2)
}

func TestEmptyCredentialsNeverReachUpstream(t *testing.T) {
	api, client := newFakeAPI(t, nil)
	ctrl := New(Teachers, client, nil, nil, nil)

	_, err := ctrl.List(context.Background(), models.Credentials{})

	assert.ErrorIs(t, err, appErrors.ErrNotAuthenticated)
	assert.Empty(t, api.calls(http.MethodGet))
}

func TestExportCSV(t *testing.T) {
	_, client := newFakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /courses": jsonReply(http.StatusOK, []models.Course{{ID: 1, Title: "Algebra", CourseCode: "MATH101", Credits: 3}}),
	})
	ctrl := New(Courses, client, nil, nil, nil)

	file, err := ctrl.Export(context.Background(), adminCreds, export.FormatCSV)

	require.NoError(t, err)
	assert.Equal(t, "courses.csv", file.Name)
	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	assert.Equal(t, "ID,Title,Code,Credits", lines[0])
	assert.Equal(t, "1,Algebra,MATH101,3", lines[1])
}

func TestRegistryOrder(t *testing.T) {
	reg := NewRegistry(nil, nil, nil, nil)

	assert.Equal(t, []string{KindTeachers, KindStudents, KindCourses}, reg.Kinds())
	ctrl, ok := reg.Get(KindCourses)
	require.True(t, ok)
	assert.Equal(t, "Courses", ctrl.Meta().Heading)
	_, ok = reg.Get("grades")
	assert.False(t, ok)
}
