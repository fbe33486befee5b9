package routes

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/routes/middlewares"
	"github.com/mbolis/quick-survey/survey"
)

// decodeSurvey reads an authored survey from the body and readies its
// question batch for storage.
func decodeSurvey(w http.ResponseWriter, r *http.Request) (model.Survey, bool) {
	sv := model.Survey{}
	if err := render.DecodeJSON(r.Body, &sv); err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
		return sv, false
	}

	sv.Title = strings.TrimSpace(sv.Title)
	if sv.Title == "" {
		httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.survey.title", "title is required")
		return sv, false
	}

	questions, err := survey.PrepareQuestions(sv.Questions)
	if err != nil {
		httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.survey.questions", "%s", err)
		return sv, false
	}
	sv.Questions = questions
	return sv, true
}

func CreateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sv, ok := decodeSurvey(w, r)
		if !ok {
			return
		}

		surveyId, err := app.CreateSurvey(r.Context(), middlewares.CompanyID(r.Context()), sv)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_survey", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": surveyId,
		})
	}
}

func ListSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveys, err := app.ListSurveys(r.Context(), middlewares.CompanyID(r.Context()))
		if err != nil {
			httpx.LogInternalError(w, "db.get_surveys", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"surveys": surveys,
		})
	}
}

// companySurvey loads one of the caller's surveys, writing the error
// response itself when it cannot.
func companySurvey(app app.App, w http.ResponseWriter, r *http.Request, code string) (*model.Survey, bool) {
	surveyId, ok := surveyIdParam(w, r)
	if !ok {
		return nil, false
	}

	sv, err := app.GetCompanySurvey(r.Context(), middlewares.CompanyID(r.Context()), surveyId)
	if errors.Is(err, database.ErrNotFound) {
		httpx.LogNotFound(w, code, surveyId)
		return nil, false
	}
	if err != nil {
		httpx.LogInternalError(w, "db."+code, err)
		return nil, false
	}
	return sv, true
}

func GetSurveyById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sv, ok := companySurvey(app, w, r, "get_survey")
		if !ok {
			return
		}
		render.JSON(w, r, sv)
	}
}

func UpdateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		sv, ok := decodeSurvey(w, r)
		if !ok {
			return
		}
		sv.ID = surveyId

		err := app.UpdateSurvey(r.Context(), middlewares.CompanyID(r.Context()), sv)
		switch {
		case err == nil:
		case errors.Is(err, database.ErrNotFound):
			httpx.LogNotFound(w, "update_survey", surveyId)
			return
		case errors.Is(err, database.ErrConflict):
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.update_survey.verify.conflict")
			return
		default:
			httpx.LogInternalError(w, "db.update_survey", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func SetSurveyPublished(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		body := struct {
			Published *bool `json:"published"`
		}{}
		if err := render.DecodeJSON(r.Body, &body); err != nil || body.Published == nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		err := app.SetPublished(r.Context(), middlewares.CompanyID(r.Context()), surveyId, *body.Published)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "publish_survey", surveyId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.publish_survey", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surveyId, ok := surveyIdParam(w, r)
		if !ok {
			return
		}

		err := app.DeleteSurvey(r.Context(), middlewares.CompanyID(r.Context()), surveyId)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "delete_survey", surveyId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_survey", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func GetSurveyAnswers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sv, ok := companySurvey(app, w, r, "get_answers")
		if !ok {
			return
		}

		answers, err := app.ListAnswers(r.Context(), sv.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.get_answers", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"answers": answers,
		})
	}
}

// location picks the ?tz= zone, falling back to the configured one.
func location(app app.App, w http.ResponseWriter, r *http.Request) (*time.Location, bool) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		return app.Location, true
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.get_query_param.tz", "unknown time zone %q", tz)
		return nil, false
	}
	return loc, true
}

func GetSurveyStats(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, ok := location(app, w, r)
		if !ok {
			return
		}

		sv, ok := companySurvey(app, w, r, "get_stats")
		if !ok {
			return
		}

		answers, err := app.ListAnswers(r.Context(), sv.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.get_stats.answers", err)
			return
		}

		render.JSON(w, r, survey.Summarize(sv.Questions, answers, app.Now(), loc))
	}
}

func ExportSurveyCSV(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, ok := location(app, w, r)
		if !ok {
			return
		}

		sv, ok := companySurvey(app, w, r, "export_csv")
		if !ok {
			return
		}

		answers, err := app.ListAnswers(r.Context(), sv.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.export_csv.answers", err)
			return
		}

		filename, data, err := survey.ExportCSV(sv.Title, sv.Questions, answers, loc)
		if err != nil {
			httpx.LogInternalError(w, "export_csv.encode", err)
			return
		}

		w.Header().Set("content-type", "text/csv; charset=utf-8")
		w.Header().Set("content-disposition", `attachment; filename="`+filename+`"`)
		w.Write(data)
	}
}
