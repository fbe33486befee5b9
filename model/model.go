package model

import (
	"encoding/json"
	"strings"
	"time"
)

type QuestionType string

const (
	ShortText    QuestionType = "short_text"
	LongText     QuestionType = "long_text"
	SingleChoice QuestionType = "single_choice"
	MultiChoice  QuestionType = "multi_choice"
	Number       QuestionType = "number"
	Date         QuestionType = "date"
)

func (t QuestionType) Valid() bool {
	switch t {
	case ShortText, LongText, SingleChoice, MultiChoice, Number, Date:
		return true
	}
	return false
}

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	return t == SingleChoice || t == MultiChoice
}

type Company struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Domain       string    `json:"domain"`
	LogoURL      string    `json:"logo_url,omitempty"`
	PrimaryColor string    `json:"primary_color,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Survey struct {
	ID          int        `json:"id,omitempty"`
	CompanyID   string     `json:"company_id,omitempty"`
	Version     int        `json:"version,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Published   bool       `json:"published"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
	Questions   []Question `json:"questions"`
}

type Question struct {
	ID       int          `json:"id,omitempty"`
	SurveyID int          `json:"survey_id,omitempty"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Required bool         `json:"required"`
	Position int          `json:"position"`
}

// Answer is one respondent's answer to one question, as persisted.
// Value holds the JSON encoding of a string, a string array or a number.
type Answer struct {
	ID          int             `json:"id,omitempty"`
	SurveyID    int             `json:"survey_id"`
	QuestionID  int             `json:"question_id"`
	Email       string          `json:"email"`
	Text        string          `json:"answer_text"`
	Value       json.RawMessage `json:"answer_value,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// AnswerInput is an in-progress answer, before it is tied to a respondent.
type AnswerInput struct {
	Text  string          `json:"answer_text"`
	Value json.RawMessage `json:"answer_value,omitempty"`
}

// ChoicesAnswer builds a multi-choice answer whose display text is
// derived from the selected options.
func ChoicesAnswer(selected []string) AnswerInput {
	if selected == nil {
		selected = []string{}
	}
	value, _ := json.Marshal(selected)
	return AnswerInput{
		Text:  strings.Join(selected, ", "),
		Value: value,
	}
}

// TextAnswer builds a plain answer whose value is its text.
func TextAnswer(text string) AnswerInput {
	value, _ := json.Marshal(text)
	return AnswerInput{Text: text, Value: value}
}

// Selections decodes Value as a list of options. A JSON string holding an
// encoded list is accepted too. Anything else yields no selections.
func Selections(value json.RawMessage) []string {
	if len(value) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		return list
	}
	var encoded string
	if err := json.Unmarshal(value, &encoded); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return nil
	}
	return list
}

type Submission struct {
	ID          int                 `json:"id"`
	SurveyID    int                 `json:"survey_id"`
	Email       string              `json:"email"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Answers     map[int]AnswerInput `json:"answers"`
}
