package handler

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-dashboard/internal/middleware"
	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/resource"
	"github.com/noah-isme/sma-adp-dashboard/internal/service"
	"github.com/noah-isme/sma-adp-dashboard/internal/session"
	"github.com/noah-isme/sma-adp-dashboard/internal/upstream"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
	"github.com/noah-isme/sma-adp-dashboard/pkg/config"
)

// schoolAPI is an in-memory stand-in for the school REST API.
type schoolAPI struct {
	mu        sync.Mutex
	teachers  []models.Teacher
	students  []models.Student
	courses   []models.Course
	calls     map[string]int
	failPosts bool
	failList  string
}

func newSchoolAPI() *schoolAPI {
	return &schoolAPI{
		teachers: []models.Teacher{{ID: 1, Name: "Ada Lovelace", Email: "ada@school.test", Department: "Mathematics"}},
		calls:    map[string]int{},
	}
}

func (s *schoolAPI) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *schoolAPI) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
}

func (s *schoolAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || !((user == "admin" && pass == "admin123") || (user == "student" && pass == "student123")) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[r.Method+" "+r.URL.Path]++

	write := func(v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if s.failList != "" && r.Method == http.MethodGet && segments[0] == s.failList {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/teachers":
		write(s.teachers)
	case r.Method == http.MethodGet && r.URL.Path == "/students":
		write(s.students)
	case r.Method == http.MethodGet && r.URL.Path == "/courses":
		write(s.courses)
	case r.Method == http.MethodPost && r.URL.Path == "/teachers":
		if s.failPosts {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var t models.Teacher
		_ = json.NewDecoder(r.Body).Decode(&t)
		t.ID = int64(len(s.teachers) + 10)
		s.teachers = append(s.teachers, t)
		w.WriteHeader(http.StatusCreated)
		write(t)
	case r.Method == http.MethodDelete && len(segments) == 2 && segments[0] == "teachers":
		id, _ := strconv.ParseInt(segments[1], 10, 64)
		for i, t := range s.teachers {
			if t.ID == id {
				s.teachers = append(s.teachers[:i], s.teachers[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

var csrfInput = regexp.MustCompile(`name="` + middleware.CSRFField + `" value="([^"]+)"`)

type testApp struct {
	api    *schoolAPI
	engine *gin.Engine
	store  *session.MemoryStore
	jar    map[string]*http.Cookie
	token  string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := newSchoolAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		Upstream:  config.UpstreamConfig{BaseURL: srv.URL, Timeout: 5 * time.Second},
		Auth:      config.AuthConfig{AdminUsername: "admin"},
		Session:   config.SessionConfig{Secret: "test-secret", TTL: time.Hour, CookieName: "sma_dashboard"},
		Metrics:   config.MetricsConfig{Enabled: true},
	}

	store := session.NewMemoryStore()
	metrics := service.NewMetricsService(store.Len)
	client := upstream.NewClient(cfg.Upstream, metrics, nil)
	manager := session.NewManager(store, client, cfg.Session, cfg.Auth, metrics, nil)
	renderer, err := view.New()
	require.NoError(t, err)

	engine := NewRouter(Deps{
		Config:    cfg,
		Sessions:  manager,
		Resources: resource.NewRegistry(client, nil, nil, nil),
		Renderer:  renderer,
		Metrics:   metrics,
	})
	app := &testApp{api: api, engine: engine, store: store, jar: map[string]*http.Cookie{}}
	require.Equal(t, http.StatusOK, app.do(http.MethodGet, "/login", nil).Code)
	require.NotEmpty(t, app.token)
	return app
}

// do sends a browser-style request. POSTs carry the last rendered form token
// unless form sets the token field itself.
func (a *testApp) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	if method == http.MethodPost {
		withToken := url.Values{middleware.CSRFField: {a.token}}
		for key, vals := range form {
			withToken[key] = vals
		}
		form = withToken
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range a.jar {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(a.jar, c.Name)
			continue
		}
		a.jar[c.Name] = c
	}
	if m := csrfInput.FindStringSubmatch(rec.Body.String()); m != nil {
		a.token = html.UnescapeString(m[1])
	}
	return rec
}

func (a *testApp) doJSON(method, target, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range a.jar {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		a.jar[c.Name] = c
	}
	return rec
}

func (a *testApp) login(t *testing.T, username, password string) {
	t.Helper()
	rec := a.do(http.MethodPost, "/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestAdminLoginShowsAdminControls(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")

	rec := app.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/teachers", rec.Header().Get("Location"))

	rec = app.do(http.MethodGet, "/dashboard/teachers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Admin User")
	assert.Contains(t, body, "Welcome admin!")
	assert.Contains(t, body, "Add Teacher")
	assert.Contains(t, body, "Ada Lovelace")
	assert.Contains(t, body, `href="/dashboard/teachers/delete/1"`)

	rec = app.do(http.MethodGet, "/dashboard/teachers", nil)
	assert.NotContains(t, rec.Body.String(), "Welcome admin!")
}

func TestNonAdminSeesNoManagementControls(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "student", "student123")

	rec := app.do(http.MethodGet, "/dashboard/teachers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Student User")
	assert.Contains(t, body, "Ada Lovelace")
	assert.NotContains(t, body, "Add Teacher")
	assert.NotContains(t, body, `class="row-delete"`)
	assert.NotContains(t, body, "/delete/")

	app.api.reset()
	rec = app.do(http.MethodPost, "/dashboard/teachers", url.Values{"name": {"X"}, "email": {"x@school.test"}, "department": {"Y"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(http.MethodPost, "/dashboard/teachers/delete/1", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, app.api.count("POST /teachers"))
	assert.Zero(t, app.api.count("DELETE /teachers/1"))
}

func TestWrongPasswordShowsInlineErrorAndNoSession(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/login", url.Values{"username": {"admin"}, "password": {"nope"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password. Please try again.")
	assert.Equal(t, 0, app.store.Len())

	rec = app.do(http.MethodGet, "/dashboard/teachers", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLoginRequiresBothFields(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/login", url.Values{"username": {"admin"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter both username and password")
	assert.Zero(t, app.api.count("GET /teachers"))
}

func TestTabSwitchListsOnlySelectedResource(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")
	app.api.reset()

	rec := app.do(http.MethodGet, "/dashboard/students", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, app.api.count("GET /students"))
	assert.Zero(t, app.api.count("GET /teachers"))
	assert.Zero(t, app.api.count("GET /courses"))
	assert.Contains(t, rec.Body.String(), `No students found. Click &#34;Add Student&#34; to enroll one!`)
	assert.Contains(t, rec.Body.String(), `class="tab active" data-tab="students"`)
}

func TestListFailureShowsInlineError(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")
	app.api.failList = "courses"

	rec := app.do(http.MethodGet, "/dashboard/courses", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error loading courses")

	rec = app.do(http.MethodGet, "/dashboard/courses/panel", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error loading courses")
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")
	app.api.reset()

	rec := app.do(http.MethodPost, "/dashboard/teachers/delete/1", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/teachers/delete/1", rec.Header().Get("Location"))
	assert.Zero(t, app.api.count("DELETE /teachers/1"))

	rec = app.do(http.MethodGet, "/dashboard/teachers/delete/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This will also delete all associated students and courses.")
	assert.Zero(t, app.api.count("DELETE /teachers/1"))

	rec = app.do(http.MethodPost, "/dashboard/teachers/delete/1", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, app.api.count("DELETE /teachers/1"))

	rec = app.do(http.MethodGet, "/dashboard/teachers", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "Teacher deleted successfully")
	assert.NotContains(t, body, "Ada Lovelace")
	assert.Contains(t, body, "No teachers found.")
}

func TestFormPostWithoutTokenIsRejected(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")
	app.api.reset()

	rec := app.do(http.MethodGet, "/dashboard/teachers/delete/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="confirm" value="yes"`)
	assert.Contains(t, rec.Body.String(), `name="`+middleware.CSRFField+`"`)

	rec = app.do(http.MethodPost, "/dashboard/teachers/delete/1", url.Values{"confirm": {"yes"}, middleware.CSRFField: {""}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	forged := httptest.NewRequest(http.MethodPost, "/dashboard/teachers/delete/1", strings.NewReader("confirm=yes"))
	forged.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	forged.Header.Set("Origin", "https://evil.example")
	for _, c := range app.jar {
		forged.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	app.engine.ServeHTTP(rec, forged)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, app.api.count("DELETE /teachers/1"))

	rec = app.do(http.MethodPost, "/logout", url.Values{middleware.CSRFField: {"bogus"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, app.store.Len())

	rec = app.do(http.MethodPost, "/dashboard/teachers/delete/1", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, app.api.count("DELETE /teachers/1"))
}

func TestCreateTeacherSuccess(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")

	rec := app.do(http.MethodGet, "/dashboard/teachers/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="modal-teachers"`)

	rec = app.do(http.MethodPost, "/dashboard/teachers", url.Values{"name": {"Grace Hopper"}, "email": {"grace@school.test"}, "department": {"CS"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.do(http.MethodGet, "/dashboard/teachers", nil)
	assert.Contains(t, rec.Body.String(), "Teacher added successfully")
	assert.Contains(t, rec.Body.String(), "Grace Hopper")
}

func TestRejectedCreateKeepsModalValues(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")
	app.api.failPosts = true

	rec := app.do(http.MethodPost, "/dashboard/teachers", url.Values{"name": {"Grace Hopper"}, "email": {"grace@school.test"}, "department": {"CS"}})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Failed to add teacher")
	assert.Contains(t, body, `value="Grace Hopper"`)
	assert.Contains(t, body, `id="modal-teachers"`)

	rec = app.do(http.MethodGet, "/dashboard/teachers", nil)
	assert.NotContains(t, rec.Body.String(), "Grace Hopper")
}

func TestInvalidCreateSkipsUpstream(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")
	app.api.reset()

	rec := app.do(http.MethodPost, "/dashboard/teachers", url.Values{"name": {"Grace"}, "email": {"not-an-email"}, "department": {"CS"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email must be a valid email address")
	assert.Zero(t, app.api.count("POST /teachers"))
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")
	require.Equal(t, 1, app.store.Len())

	rec := app.do(http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 0, app.store.Len())

	rec = app.do(http.MethodGet, "/login", nil)
	assert.Contains(t, rec.Body.String(), "Logged out successfully")

	rec = app.do(http.MethodGet, "/dashboard/teachers", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestExportCSV(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "student", "student123")

	rec := app.do(http.MethodGet, "/dashboard/teachers/export?format=csv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="teachers.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "1,Ada Lovelace,ada@school.test,Mathematics")

	rec = app.do(http.MethodGet, "/dashboard/teachers/export?format=doc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownTab(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")

	rec := app.do(http.MethodGet, "/dashboard/grades", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJSONSessionAndResources(t *testing.T) {
	app := newTestApp(t)

	rec := app.doJSON(http.MethodGet, "/api/v1/resources/teachers", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.doJSON(http.MethodPost, "/api/v1/session", `{"username":"admin","password":"admin123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data models.SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Data.IsAdmin)

	rec = app.doJSON(http.MethodGet, "/api/v1/resources/teachers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []models.Teacher       `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, "teachers", listed.Meta["resource"])

	app.api.reset()
	rec = app.doJSON(http.MethodDelete, "/api/v1/resources/teachers/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, app.api.count("DELETE /teachers/1"))

	rec = app.doJSON(http.MethodDelete, "/api/v1/resources/teachers/1?confirm=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, app.api.count("DELETE /teachers/1"))

	rec = app.doJSON(http.MethodPost, "/api/v1/resources/teachers", `{"name":"Grace","email":"grace@school.test","department":"CS"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = app.doJSON(http.MethodGet, "/api/v1/resources/grades", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJSONCreateFailureSkipsTeacherLookup(t *testing.T) {
	app := newTestApp(t)
	rec := app.doJSON(http.MethodPost, "/api/v1/session", `{"username":"admin","password":"admin123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	app.api.reset()

	rec = app.doJSON(http.MethodPost, "/api/v1/resources/students", `{"name":"John","email":"not-an-email"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please select a teacher")
	assert.Zero(t, app.api.count("GET /teachers"))
}

func TestAPIRequiresJSONBody(t *testing.T) {
	app := newTestApp(t)
	rec := app.doJSON(http.MethodPost, "/api/v1/session", `{"username":"admin","password":"admin123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	app.api.reset()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources/teachers", strings.NewReader(`{"name":"Grace","email":"grace@school.test","department":"CS"}`))
	req.Header.Set("Content-Type", "text/plain")
	for _, c := range app.jar {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNSUPPORTED_MEDIA_TYPE")
	assert.Zero(t, app.api.count("POST /teachers"))
}

func TestJSONLoginFailure(t *testing.T) {
	app := newTestApp(t)

	rec := app.doJSON(http.MethodPost, "/api/v1/session", `{"username":"admin","password":"bad"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")
}

func TestOperationalEndpoints(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "admin", "admin123")

	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/ready", nil).Code)

	rec := app.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`dashboard_logins_total{outcome=%q} 1`, "success"))
	assert.Contains(t, rec.Body.String(), "dashboard_active_sessions 1")
}

func TestFormValues(t *testing.T) {
	values := formValues(map[string]interface{}{"title": "Algebra", "credits": float64(3), "teacherId": float64(7), "skip": nil})

	assert.Equal(t, "Algebra", values.Get("title"))
	assert.Equal(t, "3", values.Get("credits"))
	assert.Equal(t, "7", values.Get("teacherId"))
	_, present := values["skip"]
	assert.False(t, present)
}
