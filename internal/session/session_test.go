package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HenriMatthijssen/ePaper/internal/record"
)

type fixed struct{ rec record.Record }

func (f *fixed) Snapshot() record.Record { return f.rec }

func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestTokenIsDeterministic(t *testing.T) {
	if Token("admin") != Token("admin") {
		t.Fatal("token must be deterministic")
	}
	if Token("admin") == Token("admin2") {
		t.Fatal("different passwords must give different tokens")
	}
	if len(Token("")) != 64 {
		t.Fatalf("token length %d", len(Token("")))
	}
}

func TestLoginSuccessSetsTokenCookie(t *testing.T) {
	a := New(&fixed{rec: record.Defaults()})
	rec := httptest.NewRecorder()
	if got := a.Login(rec, "admin", "admin"); got != Authenticated {
		t.Fatalf("outcome: %s", got)
	}
	c := cookieFrom(t, rec)
	if c.Value != Token("admin") || c.MaxAge != MaxAge {
		t.Fatalf("cookie: %+v", c)
	}
}

func TestLoginFailureClearsCookie(t *testing.T) {
	a := New(&fixed{rec: record.Defaults()})
	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"root", "admin"},
		{"", ""},
	} {
		rec := httptest.NewRecorder()
		if got := a.Login(rec, tc.user, tc.pass); got != Rejected {
			t.Fatalf("%v: outcome %s", tc, got)
		}
		if c := cookieFrom(t, rec); c.MaxAge >= 0 {
			t.Fatalf("cookie not cleared: %+v", c)
		}
	}
}

func TestCheck(t *testing.T) {
	src := &fixed{rec: record.Defaults()}
	a := New(src)
	good := CookieName + "=" + Token("admin")

	cases := []struct {
		name   string
		header string
		want   bool
	}{
		{"exact", good, true},
		{"among others", "lang=nl; " + good + "; x=y", true},
		{"wrong token", CookieName + "=" + Token("other"), false},
		{"missing", "", false},
		{"cleared", CookieName + "=0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Cookie", tc.header)
			}
			rec := httptest.NewRecorder()
			if got := a.Check(rec, req, false); got != tc.want {
				t.Fatalf("check = %v", got)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Fatal("no cookie expected without refresh")
			}
		})
	}
}

func TestCheckRefreshReissuesCookie(t *testing.T) {
	a := New(&fixed{rec: record.Defaults()})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Cookie", CookieName+"="+Token("admin"))
	rec := httptest.NewRecorder()
	if !a.Check(rec, req, true) {
		t.Fatal("check failed")
	}
	if c := cookieFrom(t, rec); c.MaxAge != MaxAge || c.Value != Token("admin") {
		t.Fatalf("refreshed cookie: %+v", c)
	}
}

func TestPasswordChangeInvalidatesCookie(t *testing.T) {
	src := &fixed{rec: record.Defaults()}
	a := New(src)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Cookie", CookieName+"="+Token("admin"))
	src.rec.WebPassword = "n3w"
	if a.Check(httptest.NewRecorder(), req, false) {
		t.Fatal("old cookie must not pass after password change")
	}
}
