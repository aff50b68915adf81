package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CookieName is the name of the session cookie
const CookieName = "voucher_session"

// Manager validates the shared login password and issues signed, expiring
// session tokens. There is no server-side session store: the signed expiry
// is the whole session state.
type Manager struct {
	sitePassword []byte
	secret       []byte
	ttl          time.Duration
}

// NewManager creates a session manager for one shared password
func NewManager(sitePassword, secret string, ttl time.Duration) *Manager {
	return &Manager{
		sitePassword: []byte(sitePassword),
		secret:       []byte(secret),
		ttl:          ttl,
	}
}

// Login checks the submitted password and, on match, sets the session cookie.
// The comparison is constant-time.
func (m *Manager) Login(w http.ResponseWriter, password string) bool {
	if !hmac.Equal([]byte(password), m.sitePassword) {
		return false
	}

	expiry := time.Now().Add(m.ttl)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.Token(expiry),
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

// Logout expires the session cookie
func (m *Manager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// IsLoggedIn reports whether the request carries a valid, unexpired session token
func (m *Manager) IsLoggedIn(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return m.Verify(cookie.Value, time.Now())
}

// RequireLogin redirects unauthenticated requests to the login page
func (m *Manager) RequireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.IsLoggedIn(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// Token builds a signed token carrying the given expiry
func (m *Manager) Token(expiry time.Time) string {
	payload := strconv.FormatInt(expiry.Unix(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + m.sign(payload)
}

// Verify checks a token's signature and expiry against the given time.
// Malformed, tampered or expired tokens all read as logged-out.
func (m *Manager) Verify(token string, now time.Time) bool {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	payload := string(raw)

	if !hmac.Equal([]byte(parts[1]), []byte(m.sign(payload))) {
		return false
	}

	expiry, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return false
	}
	return now.Unix() < expiry
}

// sign computes the URL-safe HMAC signature of a payload
func (m *Manager) sign(payload string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(payload))
	return strings.TrimRight(base64.URLEncoding.EncodeToString(h.Sum(nil)), "=")
}
