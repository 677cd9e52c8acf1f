package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"
)

const (
	// StateCookieName holds the pending OAuth state between the login redirect and the callback.
	StateCookieName = "roster_oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// NewState returns a fresh, unguessable OAuth state value.
func NewState() string {
	return xid.New().String()
}

// WriteStateCookie stores the state for verification on callback.
func WriteStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ConsumeState compares the callback state with the stored cookie and always clears the cookie.
func ConsumeState(w http.ResponseWriter, r *http.Request, secure bool) bool {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	cookie, err := r.Cookie(StateCookieName)
	if err != nil || cookie == nil {
		return false
	}
	expected := strings.TrimSpace(cookie.Value)
	received := strings.TrimSpace(r.URL.Query().Get("state"))
	if expected == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
