package models

import (
	"encoding/base64"
	"time"
)

// Credentials are the Basic-Auth username/password pair forwarded to the upstream API.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Empty reports whether either half of the pair is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// BasicAuth returns the Authorization header value.
func (c Credentials) BasicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password))
}

// LoginRequest is the login form and the JSON session payload.
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// SessionInfo describes the current session without its secret half.
type SessionInfo struct {
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}
