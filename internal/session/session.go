package session

import (
	"crypto/sha256"
	"time"

	"github.com/noah-isme/sma-adp-dashboard/internal/models"
)

// State is either Anonymous or *Authenticated.
type State interface {
	state()
}

// Anonymous is the logged-out state.
type Anonymous struct{}

func (Anonymous) state() {}

// Authenticated is a logged-in session. The password only ever lives here.
type Authenticated struct {
	ID          string             `json:"id"`
	Credentials models.Credentials `json:"credentials"`
	IsAdmin     bool               `json:"is_admin"`
	CreatedAt   time.Time          `json:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

func (*Authenticated) state() {}

// Username returns the session's login name.
func (a *Authenticated) Username() string {
	return a.Credentials.Username
}

// Expired reports whether the session is past its expiry at now.
func (a *Authenticated) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// AuthenticatedFrom unwraps a State.
func AuthenticatedFrom(s State) (*Authenticated, bool) {
	a, ok := s.(*Authenticated)
	return a, ok && a != nil
}

// deriveKeys splits one secret into independent HMAC and AES keys.
func deriveKeys(secret string) (hashKey, blockKey []byte) {
	h := sha256.Sum256([]byte("auth:" + secret))
	e := sha256.Sum256([]byte("enc:" + secret))
	return h[:], e[:]
}

// CSRFKey derives the form token key from the session secret.
func CSRFKey(secret string) []byte {
	k := sha256.Sum256([]byte("csrf:" + secret))
	return k[:]
}
