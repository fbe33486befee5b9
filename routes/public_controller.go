package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/otp"
	"github.com/mbolis/quick-survey/poll"
	"github.com/mbolis/quick-survey/survey"
)

type publicSurvey struct {
	model.Survey
	Company *model.Company `json:"company,omitempty"`
}

func PublicGetSurveyById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		sv, err := app.GetSurvey(r.Context(), surveyId)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "get_survey", surveyId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_survey", err)
			return
		}

		company, err := app.GetCompany(r.Context(), sv.CompanyID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			httpx.LogInternalError(w, "db.get_survey.company", err)
			return
		}

		// drafts are announced, not shown
		if !sv.Published {
			sv.Questions = []model.Question{}
		}
		sv.CompanyID = ""
		sv.Version = 0

		render.JSON(w, r, publicSurvey{*sv, company})
	}
}

// PublicGetSurveyStatus tells whether a survey is open. With ?wait=true it
// holds the request until the survey gets published or the poller gives up.
func PublicGetSurveyStatus(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		published, err := app.IsPublished(r.Context(), surveyId)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "survey_status", surveyId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.survey_status", err)
			return
		}

		if !published && r.URL.Query().Get("wait") == "true" {
			err = app.Poller.Until(r.Context(), func(ctx context.Context) (bool, error) {
				return app.IsPublished(ctx, surveyId)
			})
			switch {
			case err == nil:
				published = true
			case errors.Is(err, poll.ErrGaveUp):
			case errors.Is(err, context.Canceled):
				log.Debugf("survey_status.wait: client gone (%d)", surveyId)
				return
			case errors.Is(err, database.ErrNotFound):
				httpx.LogNotFound(w, "survey_status.wait", surveyId)
				return
			default:
				httpx.LogInternalError(w, "db.survey_status.wait", err)
				return
			}
		}

		render.JSON(w, r, map[string]any{
			"id":        surveyId,
			"published": published,
		})
	}
}

// openSurvey loads a survey respondents may answer, writing the error
// response itself when there is none.
func openSurvey(app app.App, w http.ResponseWriter, r *http.Request, code string, surveyId int) (*model.Survey, bool) {
	sv, err := app.GetSurvey(r.Context(), surveyId)
	if errors.Is(err, database.ErrNotFound) {
		httpx.LogNotFound(w, code, surveyId)
		return nil, false
	}
	if err != nil {
		httpx.LogInternalError(w, "db."+code, err)
		return nil, false
	}
	if !sv.Published {
		httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, code+".draft", "survey %d is not open yet", surveyId)
		return nil, false
	}
	return sv, true
}

// PublicGetVerificationState tells a returning respondent where the
// ?email= address stands in the code flow.
func PublicGetVerificationState(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		email := survey.NormalizeEmail(r.URL.Query().Get("email"))
		if !survey.ValidEmail(email) {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "otp.state.email", "%s", otp.ErrInvalidEmail)
			return
		}

		if _, ok := openSurvey(app, w, r, "verification_state", surveyId); !ok {
			return
		}

		state, err := app.Codes.State(r.Context(), email)
		if err != nil {
			httpx.LogInternalError(w, "otp.state", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"email": email,
			"state": state,
		})
	}
}

func PublicRequestCode(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		body := struct {
			Email string `json:"email"`
		}{}
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if _, ok := openSurvey(app, w, r, "request_code", surveyId); !ok {
			return
		}

		challenge, err := app.Codes.Request(r.Context(), body.Email)
		var cooldown *otp.CooldownError
		switch {
		case err == nil:
		case errors.Is(err, otp.ErrInvalidEmail):
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "otp.request.email", "%s", err)
			return
		case errors.As(err, &cooldown):
			httpx.LogTooSoon(w, "otp.request.cooldown", cooldown.RetryAfter, cooldown.Error())
			return
		default:
			log.Errorf("otp.request.send: %s", err)
			http.Error(w, "could not send the verification code, try again later", http.StatusBadGateway)
			return
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, challenge)
	}
}

func PublicConfirmCode(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		body := struct {
			Email string `json:"email"`
			Code  string `json:"code"`
		}{}
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if _, ok := openSurvey(app, w, r, "confirm_code", surveyId); !ok {
			return
		}

		err := app.Codes.Verify(r.Context(), body.Email, body.Code)
		switch {
		case err == nil:
		case errors.Is(err, otp.ErrInvalidEmail), errors.Is(err, otp.ErrInvalidCode):
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "otp.verify.format", "%s", err)
			return
		case errors.Is(err, otp.ErrCodeMismatch),
			errors.Is(err, otp.ErrCodeExpired),
			errors.Is(err, otp.ErrTooManyAttempts):
			httpx.LogStatusMsg(w, http.StatusForbidden, log.DebugLevel, "otp.verify.rejected", "%s", err)
			return
		default:
			httpx.LogInternalError(w, "otp.verify", err)
			return
		}

		email := survey.NormalizeEmail(body.Email)
		alreadySubmitted := false
		err = survey.CheckNotSubmitted(r.Context(), app.Store, surveyId, email)
		if errors.Is(err, survey.ErrAlreadySubmitted) {
			alreadySubmitted = true
		} else if err != nil {
			httpx.LogInternalError(w, "db.confirm_code.has_submitted", err)
			return
		}

		resp := map[string]any{
			"email":             email,
			"already_submitted": alreadySubmitted,
		}
		if !alreadySubmitted {
			token, err := app.Proofs.Issue(surveyId, email)
			if err != nil {
				httpx.LogInternalError(w, "otp.proof.issue", err)
				return
			}
			resp["token"] = token
		}

		render.JSON(w, r, resp)
	}
}

func PublicSubmitSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		body := struct {
			VerificationToken string                    `json:"verification_token"`
			Answers           map[int]model.AnswerInput `json:"answers"`
		}{}
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		email, err := app.Proofs.Check(body.VerificationToken, surveyId)
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusUnauthorized, log.DebugLevel, "otp.proof.check", "email not verified")
			return
		}

		sv, ok := openSurvey(app, w, r, "submit_survey", surveyId)
		if !ok {
			return
		}

		answers := survey.NormalizeAnswers(sv.Questions, body.Answers)
		if errs := survey.Validate(sv.Questions, answers); len(errs) > 0 {
			httpx.LogInvalid(w, r, "submit_survey.validate", errs)
			return
		}

		err = survey.CheckNotSubmitted(r.Context(), app.Store, surveyId, email)
		if errors.Is(err, survey.ErrAlreadySubmitted) {
			httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "submit_survey.duplicate", "%s", err)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission.has_submitted", err)
			return
		}

		submissionId, err := app.InsertSubmission(r.Context(), surveyId, email, app.Now(), answers)
		if errors.Is(err, survey.ErrAlreadySubmitted) {
			httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "submit_survey.duplicate", "%s", err)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission", err)
			return
		}

		log.WithFields(log.Fields{
			"survey":     surveyId,
			"submission": submissionId,
			"answers":    len(answers),
		}).Info("survey submitted")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": submissionId,
		})
	}
}
