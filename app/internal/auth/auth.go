package auth

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const realm = `Basic realm="uptimedock"`

// Auth guards handlers with HTTP basic auth against a bcrypt hash.
// A zero Auth (no user) lets every request through.
type Auth struct {
	User string
	Hash []byte
}

// NewAuth creates a new Auth instance
func NewAuth(user string, hash []byte) *Auth {
	return &Auth{User: user, Hash: hash}
}

// Enabled reports whether credentials are required.
func (a *Auth) Enabled() bool {
	return a != nil && a.User != "" && len(a.Hash) > 0
}

// CheckCredentials compares a username and password against the configured pair.
func (a *Auth) CheckCredentials(user, password string) bool {
	if !a.Enabled() || user == "" || password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.User)) == 1
	// always run bcrypt so a wrong user takes as long as a wrong password
	pwOK := bcrypt.CompareHashAndPassword(a.Hash, []byte(password)) == nil
	return userOK && pwOK
}

// Require is middleware that demands basic auth when it is enabled.
func (a *Auth) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next(w, r)
			return
		}
		user, pw, ok := r.BasicAuth()
		if !ok || !a.CheckCredentials(user, pw) {
			w.Header().Set("WWW-Authenticate", realm)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
