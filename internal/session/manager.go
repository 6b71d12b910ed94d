package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/upstream"
	"github.com/noah-isme/sma-adp-dashboard/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
)

const sidKey = "sid"

// Login outcomes reported to the LoginObserver.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeConnectionError    = "connection_error"
	OutcomeRejected           = "rejected"
)

// Prober checks a credential pair against the upstream API.
type Prober interface {
	Probe(ctx context.Context, creds models.Credentials) error
}

// LoginObserver receives login outcomes.
type LoginObserver interface {
	ObserveLogin(outcome string)
}

// Manager ties the browser cookie to server-side session records. The cookie
// only carries the opaque session id and pending flash messages.
type Manager struct {
	store         Store
	cookies       *sessions.CookieStore
	cookieName    string
	prober        Prober
	adminUsername string
	ttl           time.Duration
	observer      LoginObserver
	logger        *zap.Logger
	now           func() time.Time
}

// NewManager constructs a session Manager.
func NewManager(store Store, prober Prober, cfg config.SessionConfig, auth config.AuthConfig, observer LoginObserver, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	name := cfg.CookieName
	if name == "" {
		name = "sma_dashboard"
	}
	admin := auth.AdminUsername
	if admin == "" {
		admin = "admin"
	}

	hashKey, blockKey := deriveKeys(cfg.Secret)
	cookies := sessions.NewCookieStore(hashKey, blockKey)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   cfg.SecureCookie,
	}

	return &Manager{
		store:         store,
		cookies:       cookies,
		cookieName:    name,
		prober:        prober,
		adminUsername: admin,
		ttl:           ttl,
		observer:      observer,
		logger:        logger,
		now:           time.Now,
	}
}

// Login probes the upstream with the candidate credentials and, on success,
// stores a new session. On failure nothing is stored.
func (m *Manager) Login(ctx context.Context, username, password string) (*Authenticated, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		m.observe(OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrValidation, "Please enter both username and password")
	}

	creds := models.Credentials{Username: username, Password: password}
	if err := m.prober.Probe(ctx, creds); err != nil {
		return nil, m.loginError(username, err)
	}

	now := m.now().UTC()
	sess := &Authenticated{
		ID:          uuid.NewString(),
		Credentials: creds,
		IsAdmin:     username == m.adminUsername,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session")
	}

	m.observe(OutcomeSuccess)
	m.logger.Info("login succeeded", zap.String("user", username), zap.Bool("admin", sess.IsAdmin))
	return sess, nil
}

func (m *Manager) loginError(username string, err error) error {
	var statusErr *upstream.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Unauthorized():
		m.observe(OutcomeInvalidCredentials)
		m.logger.Info("login rejected", zap.String("user", username), zap.Int("status", statusErr.Status))
		return appErrors.CloneWrap(appErrors.ErrInvalidCredentials, "", err)
	case errors.As(err, &statusErr):
		m.observe(OutcomeConnectionError)
		m.logger.Warn("login probe failed", zap.String("user", username), zap.Int("status", statusErr.Status))
		return appErrors.CloneWrap(appErrors.ErrConnection, "Login failed. Please try again.", err)
	default:
		m.observe(OutcomeConnectionError)
		m.logger.Warn("login probe unreachable", zap.String("user", username), zap.Error(err))
		return appErrors.CloneWrap(appErrors.ErrConnection, "", err)
	}
}

// Attach binds sess to the browser cookie and queues optional toasts. A
// session the cookie pointed at before is deleted from the store.
func (m *Manager) Attach(w http.ResponseWriter, r *http.Request, sess *Authenticated, toasts ...models.Toast) error {
	cookie, _ := m.cookies.Get(r, m.cookieName)
	if previous, ok := cookie.Values[sidKey].(string); ok && previous != "" && previous != sess.ID {
		if err := m.store.Delete(r.Context(), previous); err != nil {
			m.logger.Warn("previous session delete failed", zap.Error(err))
		}
	}
	cookie.Values[sidKey] = sess.ID
	addFlashes(cookie, toasts)
	return cookie.Save(r, w)
}

// Resolve returns the current session state. Unknown, expired or tampered
// cookies resolve to Anonymous.
func (m *Manager) Resolve(r *http.Request) State {
	cookie, err := m.cookies.Get(r, m.cookieName)
	if err != nil {
		return Anonymous{}
	}
	sid, _ := cookie.Values[sidKey].(string)
	if sid == "" {
		return Anonymous{}
	}
	sess, err := m.store.Load(r.Context(), sid)
	if err != nil {
		if !errors.Is(err, appErrors.ErrSessionNotFound) {
			m.logger.Warn("session lookup failed", zap.Error(err))
		}
		return Anonymous{}
	}
	return sess
}

// Logout deletes the server-side record and clears the id from the cookie. It
// is unconditional: logging out an anonymous browser is a no-op.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request, toasts ...models.Toast) error {
	cookie, _ := m.cookies.Get(r, m.cookieName)
	if sid, ok := cookie.Values[sidKey].(string); ok && sid != "" {
		if err := m.store.Delete(r.Context(), sid); err != nil {
			m.logger.Warn("session delete failed", zap.Error(err))
		}
	}
	delete(cookie.Values, sidKey)
	addFlashes(cookie, toasts)
	return cookie.Save(r, w)
}

// AddFlash queues toasts for the next rendered page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, toasts ...models.Toast) error {
	cookie, _ := m.cookies.Get(r, m.cookieName)
	addFlashes(cookie, toasts)
	return cookie.Save(r, w)
}

// Flashes consumes pending toasts, success first.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []models.Toast {
	cookie, err := m.cookies.Get(r, m.cookieName)
	if err != nil {
		return nil
	}
	var toasts []models.Toast
	for _, kind := range []models.ToastKind{models.ToastSuccess, models.ToastError} {
		for _, v := range cookie.Flashes(string(kind)) {
			if text, ok := v.(string); ok {
				toasts = append(toasts, models.Toast{Kind: kind, Text: text})
			}
		}
	}
	if len(toasts) > 0 {
		if err := cookie.Save(r, w); err != nil {
			m.logger.Warn("flash consume failed", zap.Error(err))
		}
	}
	return toasts
}

func (m *Manager) observe(outcome string) {
	if m.observer != nil {
		m.observer.ObserveLogin(outcome)
	}
}

func addFlashes(cookie *sessions.Session, toasts []models.Toast) {
	for _, t := range toasts {
		cookie.AddFlash(t.Text, string(t.Kind))
	}
}
