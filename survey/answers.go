package survey

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/mbolis/quick-survey/model"
)

// NormalizeAnswers prepares submitted answers for validation and storage.
// Answers to unknown questions are dropped, multi-choice text is rebuilt
// from the declared options that were selected, number values are derived
// from the text, and blank answers are removed so they leave no row behind.
func NormalizeAnswers(questions []model.Question, answers map[int]model.AnswerInput) map[int]model.AnswerInput {
	out := make(map[int]model.AnswerInput, len(answers))
	for _, q := range questions {
		a, ok := answers[q.ID]
		if !ok {
			continue
		}

		if q.Type == model.MultiChoice {
			var selected []string
			for _, sel := range model.Selections(a.Value) {
				if slices.Contains(q.Options, sel) && !slices.Contains(selected, sel) {
					selected = append(selected, sel)
				}
			}
			if len(selected) > 0 {
				out[q.ID] = model.ChoicesAnswer(selected)
			}
			continue
		}

		text := strings.TrimSpace(a.Text)
		if text == "" {
			continue
		}
		if q.Type == model.Number {
			out[q.ID] = numberAnswer(text)
			continue
		}
		out[q.ID] = model.TextAnswer(text)
	}
	return out
}

// numberAnswer stores the parsed number as the value, or keeps the text
// as a plain answer when it is not a finite number.
func numberAnswer(text string) model.AnswerInput {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return model.TextAnswer(text)
	}
	value, err := json.Marshal(v)
	if err != nil {
		return model.TextAnswer(text)
	}
	return model.AnswerInput{Text: text, Value: value}
}
