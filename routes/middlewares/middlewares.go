package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
)

type ctxKey int

const companyKey ctxKey = iota

// CompanyID returns the tenant of the authenticated company owner.
func CompanyID(ctx context.Context) string {
	id, _ := ctx.Value(companyKey).(string)
	return id
}

// Admin checks for a valid bearer token with the 'admin' role, and makes
// the token's company available through CompanyID.
func Admin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), admin).Handler(next)
	}
}

func admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)

		isAdmin := false
		if rolesClaim, ok := claims[httpx.ClaimRoles]; ok {
			roles := strings.Split(rolesClaim, ",")
			for _, role := range roles {
				if role == "admin" {
					isAdmin = true
					break
				}
			}
		}

		companyID := claims[httpx.ClaimCompanyID]
		if !isAdmin || companyID == "" {
			httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, "auth.admin.forbidden")
			return
		}

		ctx := context.WithValue(r.Context(), companyKey, companyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CookieAuth lets browsers reach protected pages with the tokens kept in
// cookies, refreshing the access token when it has expired.
func CookieAuth(bearerServer *oauth.BearerServer) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				h.ServeHTTP(w, r)
				return
			}

			token, err := r.Cookie("access_token")
			if err != nil && !errors.Is(err, http.ErrNoCookie) {
				httpx.LogInternalError(w, "auth.cookie.access_token", err)
				return
			}
			if err == nil {
				r.Header.Set("authorization", "Bearer "+token.Value)
				buf := httpx.NewResponseBuffer()
				h.ServeHTTP(buf, r)
				if buf.Status() != http.StatusUnauthorized {
					buf.Flush(w)
					return
				}
			}

			loginLocation := "/login?goto=" + url.QueryEscape(r.RequestURI)

			// token was empty or unauthorized
			refreshToken, err := r.Cookie("refresh_token")
			if err != nil {
				if !errors.Is(err, http.ErrNoCookie) {
					httpx.LogInternalError(w, "auth.cookie.refresh_token", err)
					return
				}
				redirect(w, loginLocation)
				return
			}

			resp, err := httpx.RefreshGrant(bearerServer, refreshToken.Value)
			if err != nil {
				httpx.LogInternalError(w, "auth.cookie.refresh", err)
				return
			}
			if resp.Status() == http.StatusUnauthorized {
				setCookie(w, "refresh_token", "", -1)
				redirect(w, loginLocation)
				return
			}
			tokens, err := httpx.DecodeTokens(resp)
			if err != nil {
				httpx.LogInternalError(w, "auth.cookie.decode_tokens", err)
				return
			}

			setCookie(w, "access_token", tokens.AccessToken, int(tokens.ExpiresIn))
			setCookie(w, "refresh_token", tokens.RefreshToken, 60*60*24*365)

			r.Header.Set("authorization", "Bearer "+tokens.AccessToken)
			h.ServeHTTP(w, r)
		})
	}
}

func redirect(w http.ResponseWriter, location string) {
	w.Header().Set("location", location)
	w.WriteHeader(http.StatusTemporaryRedirect)
}

func setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     name,
		Value:    value,
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
