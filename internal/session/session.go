// Package session implements the web session check. The session token is
// a deterministic hash of the stored web password, so there is no server
// side session state: changing the password invalidates every cookie.
package session

import (
	"encoding/hex"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/HenriMatthijssen/ePaper/internal/record"
)

const (
	CookieName = "EPAPERSESSIONID"
	MaxAge     = 86400
)

// Source gives read access to the current record.
type Source interface {
	Snapshot() record.Record
}

type Outcome int

const (
	Rejected Outcome = iota
	Authenticated
)

func (o Outcome) String() string {
	if o == Authenticated {
		return "authenticated"
	}
	return "rejected"
}

// Token derives the session token from a web password.
func Token(password string) string {
	sum := blake2b.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

type Authenticator struct {
	src Source
}

func New(src Source) *Authenticator { return &Authenticator{src: src} }

// Check reports whether the request's Cookie header carries the current
// token. On success with refresh set, the cookie lifetime is renewed.
func (a *Authenticator) Check(w http.ResponseWriter, r *http.Request, refresh bool) bool {
	want := CookieName + "=" + Token(a.src.Snapshot().WebPassword)
	header := strings.Join(r.Header.Values("Cookie"), "; ")
	if !strings.Contains(header, want) {
		return false
	}
	if refresh {
		setCookie(w, Token(a.src.Snapshot().WebPassword))
	}
	return true
}

// Login compares user and password with the stored plaintext values. On
// success the session cookie is set, otherwise it is cleared. Redirects are
// left to the caller.
func (a *Authenticator) Login(w http.ResponseWriter, user, password string) Outcome {
	rec := a.src.Snapshot()
	if user == rec.WebUser && password == rec.WebPassword {
		setCookie(w, Token(rec.WebPassword))
		return Authenticated
	}
	Clear(w)
	return Rejected
}

// Clear expires the session cookie.
func Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "0",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   MaxAge,
	})
}
