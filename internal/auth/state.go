// Package auth implements the owner's Spotify login: the authorization
// redirect, the callback that stores the first token, and the endpoints
// that report, refresh and clear it.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"
)

const (
	// StateCookieName carries the OAuth state between login and callback.
	StateCookieName = "spotify_auth_state"

	// stateBytes is the number of random bytes in a state value
	// (hex-encoded to twice this length).
	stateBytes = 16

	// stateExpiry bounds how long a login may take to come back.
	stateExpiry = 10 * time.Minute

	// stateCookiePath scopes the cookie to the auth endpoints.
	stateCookiePath = "/spotify/auth"
)

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}

// StateCookie binds the OAuth state parameter to the browser that
// started the login. The value lives in an HttpOnly cookie rather than
// process memory so the callback may land on a different instance.
type StateCookie struct {
	// Secure marks the cookie HTTPS only.
	Secure bool
}

// Issue creates a new state, sets it as a cookie on w and returns it.
func (s StateCookie) Issue(w http.ResponseWriter) string {
	state := RandomHex(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     stateCookiePath,
		MaxAge:   int(stateExpiry.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		// Lax is required: the callback is a top-level navigation from
		// the accounts site.
		SameSite: http.SameSiteLaxMode,
	})

	return state
}

// Consume reports whether state matches the cookie on r and clears the
// cookie either way. Empty values never match.
func (s StateCookie) Consume(w http.ResponseWriter, r *http.Request, state string) bool {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	if state == "" {
		return false
	}

	c, err := r.Cookie(StateCookieName)
	if err != nil || c.Value == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) == 1
}
