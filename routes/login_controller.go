package routes

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/model"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

// Signup registers a company together with its owner account.
func Signup(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := struct {
			Company  model.Company `json:"company"`
			Username string        `json:"username"`
			Password string        `json:"password"`
		}{}
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		body.Company.Name = strings.TrimSpace(body.Company.Name)
		body.Username = strings.TrimSpace(body.Username)
		switch {
		case body.Company.Name == "":
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "signup.company_name", "company name is required")
			return
		case body.Username == "":
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "signup.username", "username is required")
			return
		case len(body.Password) < minPasswordLength:
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "signup.password", "password must be at least %d characters", minPasswordLength)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.LogInternalError(w, "signup.hash_password", err)
			return
		}

		company, err := app.CreateCompany(r.Context(), body.Company, body.Username, hash)
		if errors.Is(err, database.ErrUsernameTaken) {
			httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "signup.username_taken", "%s", err)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.insert_company", err)
			return
		}

		log.WithFields(log.Fields{"company": company.ID, "user": body.Username}).Info("company signed up")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, company)
	}
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		body := url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {pass},
		}.Encode()
		r.Body = io.NopCloser(strings.NewReader(body))
		r.Header.Set("content-type", "application/x-www-form-urlencoded")
		r.Header.Set("content-length", strconv.Itoa(len(body)))
		app.UserCredentials(w, r)
	}
}

func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefresh.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		resp, err := httpx.RefreshGrant(app.BearerServer, match[1])
		if err != nil {
			httpx.LogInternalError(w, "refresh.new_request", err)
			return
		}
		resp.Flush(w)
	}
}
