package survey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mbolis/quick-survey/model"
)

var ErrInvalidQuestion = errors.New("invalid question")

// PrepareQuestions cleans a question batch before it replaces the stored
// one: text and options are trimmed, options are dropped for types that
// don't use them, and positions become dense and zero-based in the given
// order. Ids are kept so the store can reuse them. The input slice is not
// modified.
func PrepareQuestions(questions []model.Question) ([]model.Question, error) {
	out := make([]model.Question, 0, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ErrInvalidQuestion, i+1)
		}
		if !q.Type.Valid() {
			return nil, fmt.Errorf("%w: question %d has unknown type %q", ErrInvalidQuestion, i+1, q.Type)
		}

		if q.Type.HasOptions() {
			opts := make([]string, 0, len(q.Options))
			for _, o := range q.Options {
				if o = strings.TrimSpace(o); o != "" {
					opts = append(opts, o)
				}
			}
			if len(opts) == 0 {
				return nil, fmt.Errorf("%w: question %d needs at least one option", ErrInvalidQuestion, i+1)
			}
			q.Options = opts
		} else {
			q.Options = nil
		}

		q.Position = i
		out = append(out, q)
	}
	return out, nil
}
