package survey

import (
	"strings"

	"github.com/mbolis/quick-survey/model"
)

const MsgRequired = "this question is required"

// Validate maps each failing question id to an error message. Only
// required questions can fail; the inputs are left untouched.
func Validate(questions []model.Question, answers map[int]model.AnswerInput) map[int]string {
	errs := map[int]string{}
	for _, q := range questions {
		if !q.Required {
			continue
		}
		a := answers[q.ID]
		if strings.TrimSpace(a.Text) == "" {
			errs[q.ID] = MsgRequired
			continue
		}
		if q.Type == model.MultiChoice && len(model.Selections(a.Value)) == 0 {
			errs[q.ID] = MsgRequired
		}
	}
	return errs
}
