package survey

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/mbolis/quick-survey/model"
)

func TestNormalizeAnswers(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Type: model.ShortText},
		{ID: 2, Type: model.MultiChoice, Options: []string{"A", "B", "C"}},
		{ID: 3, Type: model.MultiChoice, Options: []string{"A"}},
		{ID: 4, Type: model.Number},
		{ID: 5, Type: model.LongText},
	}
	answers := map[int]model.AnswerInput{
		1:  {Text: "  hello  "},
		2:  {Text: "whatever", Value: json.RawMessage(`["C","X","A","C"]`)},
		3:  {Text: "A", Value: json.RawMessage(`[]`)},
		4:  {Text: "42", Value: json.RawMessage(`42`)},
		5:  {Text: "   "},
		99: {Text: "orphan"},
	}

	got := NormalizeAnswers(questions, answers)

	if len(got) != 3 {
		t.Fatalf("expected 3 answers, got %v", got)
	}
	if got[1].Text != "hello" || string(got[1].Value) != `"hello"` {
		t.Fatalf("short text: %+v", got[1])
	}
	if got[2].Text != "C, A" || !slices.Equal(model.Selections(got[2].Value), []string{"C", "A"}) {
		t.Fatalf("multi choice: %+v", got[2])
	}
	if _, ok := got[3]; ok {
		t.Fatalf("empty selection should be dropped")
	}
	if got[4].Text != "42" || string(got[4].Value) != "42" {
		t.Fatalf("number: %+v", got[4])
	}
	if answers[1].Text != "  hello  " {
		t.Fatalf("input was modified")
	}
}

func TestNormalizeThenValidate(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Type: model.MultiChoice, Options: []string{"A", "B"}, Required: true},
	}
	answers := map[int]model.AnswerInput{
		1: {Value: json.RawMessage(`"[\"B\"]"`)},
	}
	if errs := Validate(questions, NormalizeAnswers(questions, answers)); len(errs) != 0 {
		t.Fatalf("selection should satisfy required question: %v", errs)
	}
	answers[1] = model.AnswerInput{Text: "Z", Value: json.RawMessage(`["Z"]`)}
	if errs := Validate(questions, NormalizeAnswers(questions, answers)); errs[1] != MsgRequired {
		t.Fatalf("undeclared option should not count: %v", errs)
	}
}

func TestNormalizeNumberIgnoresClientValue(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Type: model.Number},
		{ID: 2, Type: model.Number},
		{ID: 3, Type: model.Number},
		{ID: 4, Type: model.ShortText},
	}
	answers := map[int]model.AnswerInput{
		1: {Text: " 7.5 ", Value: json.RawMessage(`{"x":1}`)},
		2: {Text: "12", Value: json.RawMessage(`99`)},
		3: {Text: "a lot", Value: json.RawMessage(`3`)},
		4: {Text: "hi", Value: json.RawMessage(`["smuggled"]`)},
	}

	got := NormalizeAnswers(questions, answers)

	want := map[int]string{1: "7.5", 2: "12", 3: `"a lot"`, 4: `"hi"`}
	for id, value := range want {
		if string(got[id].Value) != value {
			t.Fatalf("question %d: value %s, want %s", id, got[id].Value, value)
		}
	}
	if got[1].Text != "7.5" {
		t.Fatalf("text not trimmed: %q", got[1].Text)
	}
}
