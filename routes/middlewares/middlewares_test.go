package middlewares

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/oauth"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
)

func init() {
	log.SetOutput(io.Discard)
}

func withClaims(claims map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), oauth.ClaimsContext, claims)
	return req.WithContext(ctx)
}

func TestAdminExposesCompany(t *testing.T) {
	var seen string
	h := admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CompanyID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withClaims(map[string]string{
		httpx.ClaimRoles:     "viewer,admin",
		httpx.ClaimCompanyID: "C1",
	}))
	if rec.Code != http.StatusOK || seen != "C1" {
		t.Fatalf("status %d, company %q", rec.Code, seen)
	}
}

func TestAdminForbidden(t *testing.T) {
	h := admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler reached")
	}))

	for _, claims := range []map[string]string{
		nil,
		{httpx.ClaimRoles: "viewer", httpx.ClaimCompanyID: "C1"},
		{httpx.ClaimRoles: "admin"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withClaims(claims))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%v: status %d", claims, rec.Code)
		}
	}
}

func TestCookieAuthRedirectsToLogin(t *testing.T) {
	bs := oauth.NewBearerServer("secret", 0, nil, nil)
	h := CookieAuth(bs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/index.html", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status: %d", rec.Code)
	}
	if loc := rec.Header().Get("location"); loc != "/login?goto=%2Fadmin%2Findex.html" {
		t.Fatalf("location: %q", loc)
	}
}
