package survey

import (
	"encoding/json"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/mbolis/quick-survey/model"
)

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestSingleChoiceTally(t *testing.T) {
	q := model.Question{ID: 1, Type: model.SingleChoice, Options: []string{"Yes", "No"}}
	answers := []model.Answer{
		{QuestionID: 1, Email: "a", Text: "Yes"},
		{QuestionID: 1, Email: "b", Text: "Yes"},
		{QuestionID: 1, Email: "c", Text: "No"},
		{QuestionID: 1, Email: "d", Text: "Maybe"},
		{QuestionID: 2, Email: "a", Text: "Yes"},
	}
	got := ChoiceTally(q, answers)
	want := map[string]int{"Yes": 2, "No": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestMultiChoiceTallyAcceptsEncodedLists(t *testing.T) {
	q := model.Question{ID: 1, Type: model.MultiChoice, Options: []string{"A", "B", "C"}}
	asList := []model.Answer{{QuestionID: 1, Email: "x", Value: json.RawMessage(`["A","B"]`)}}
	asString := []model.Answer{{QuestionID: 1, Email: "x", Value: json.RawMessage(`"[\"A\",\"B\"]"`)}}
	if !reflect.DeepEqual(ChoiceTally(q, asList), ChoiceTally(q, asString)) {
		t.Fatalf("list and encoded list tallied differently")
	}

	mixed := []model.Answer{
		{QuestionID: 1, Email: "x", Value: json.RawMessage(`["A","B"]`)},
		{QuestionID: 1, Email: "y", Value: json.RawMessage(`"[\"B\",\"Z\"]"`)},
		{QuestionID: 1, Email: "z", Value: json.RawMessage(`"{broken"`)},
	}
	want := map[string]int{"A": 1, "B": 2, "C": 0}
	if got := ChoiceTally(q, mixed); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestNumbersSkipsUnparseable(t *testing.T) {
	q := model.Question{ID: 4, Type: model.Number}
	answers := []model.Answer{
		{QuestionID: 4, Text: "3"},
		{QuestionID: 4, Text: "abc"},
		{QuestionID: 4, Text: " 5 "},
		{QuestionID: 4, Text: "NaN"},
	}
	s := Numbers(q, answers)
	if s == nil {
		t.Fatalf("expected a summary")
	}
	if s.Average != 4 || s.Min != 3 || s.Max != 5 || s.Count != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if Numbers(q, []model.Answer{{QuestionID: 4, Text: "n/a"}}) != nil {
		t.Fatalf("expected nil summary when nothing parses")
	}
}

func TestResponseRate(t *testing.T) {
	q := model.Question{ID: 1}
	answers := []model.Answer{
		{QuestionID: 1, Email: "a"},
		{QuestionID: 1, Email: "b"},
		{QuestionID: 2, Email: "c"},
	}
	if got := ResponseRate(q, answers, 3); got != 67 {
		t.Fatalf("want 67, got %d", got)
	}
	if got := ResponseRate(q, answers, 0); got != 0 {
		t.Fatalf("want 0 with no respondents, got %d", got)
	}
}

func TestRespondentCounts(t *testing.T) {
	now := at(10, 12)
	answers := []model.Answer{
		{QuestionID: 1, Email: "a", SubmittedAt: at(9, 13)},
		{QuestionID: 2, Email: "a", SubmittedAt: at(9, 13)},
		{QuestionID: 1, Email: "b", SubmittedAt: at(8, 0)},
		{QuestionID: 1, Email: "c", SubmittedAt: at(9, 11)},
		{QuestionID: 2, Email: "c", SubmittedAt: at(10, 1)},
	}
	if got := UniqueRespondents(answers); got != 3 {
		t.Fatalf("unique: %d", got)
	}
	if got := RecentRespondents(answers, now); got != 2 {
		t.Fatalf("recent: %d", got)
	}
}

func TestDailyHistogram(t *testing.T) {
	answers := []model.Answer{
		{QuestionID: 1, Email: "a", SubmittedAt: at(9, 23)},
		{QuestionID: 2, Email: "a", SubmittedAt: at(9, 23)},
		{QuestionID: 1, Email: "b", SubmittedAt: at(8, 10)},
		{QuestionID: 1, Email: "c", SubmittedAt: at(9, 2)},
	}
	seq := DailyHistogram(answers, time.UTC)
	want := []DayCount{{"2025-03-08", 1}, {"2025-03-09", 2}}
	if got := slices.Collect(seq); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	if got := slices.Collect(seq); !reflect.DeepEqual(got, want) {
		t.Fatalf("second pass differs: %v", got)
	}

	// 23:00 UTC on the 9th is already the 10th two hours east
	east := time.FixedZone("UTC+2", 2*60*60)
	want = []DayCount{{"2025-03-08", 1}, {"2025-03-09", 1}, {"2025-03-10", 1}}
	if got := slices.Collect(DailyHistogram(answers, east)); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}

	for d := range seq {
		if d.Date != "2025-03-08" {
			t.Fatalf("unexpected first day %v", d)
		}
		break
	}
}

func TestSummarizeIsIdempotent(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Text: "Happy?", Type: model.SingleChoice, Options: []string{"Yes", "No"}},
		{ID: 2, Text: "Pick", Type: model.MultiChoice, Options: []string{"A", "B"}},
		{ID: 3, Text: "Age", Type: model.Number},
		{ID: 4, Text: "Notes", Type: model.LongText},
	}
	answers := []model.Answer{
		{QuestionID: 1, Email: "a", Text: "Yes", SubmittedAt: at(1, 10)},
		{QuestionID: 2, Email: "a", Text: "A, B", Value: json.RawMessage(`["A","B"]`), SubmittedAt: at(1, 10)},
		{QuestionID: 3, Email: "a", Text: "30", SubmittedAt: at(1, 10)},
		{QuestionID: 1, Email: "b", Text: "No", SubmittedAt: at(2, 10)},
		{QuestionID: 3, Email: "b", Text: "40", SubmittedAt: at(2, 10)},
	}
	qCopy := slices.Clone(questions)
	aCopy := slices.Clone(answers)

	first := Summarize(questions, answers, at(2, 12), time.UTC)
	second := Summarize(questions, answers, at(2, 12), time.UTC)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("summaries differ:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(questions, qCopy) || !reflect.DeepEqual(answers, aCopy) {
		t.Fatalf("inputs were modified")
	}

	if first.TotalRespondents != 2 || first.RecentRespondents != 1 || len(first.Daily) != 2 {
		t.Fatalf("unexpected totals: %+v", first)
	}
	if first.Questions[0].ResponseRate != 100 || first.Questions[1].ResponseRate != 50 {
		t.Fatalf("unexpected rates: %+v", first.Questions)
	}
	if !reflect.DeepEqual(first.Questions[1].Tally, []OptionCount{{"A", 1}, {"B", 1}}) {
		t.Fatalf("tally: %+v", first.Questions[1].Tally)
	}
	if n := first.Questions[2].Numbers; n == nil || n.Average != 35 {
		t.Fatalf("numbers: %+v", n)
	}
	if first.Questions[3].Numbers != nil || first.Questions[3].Tally != nil || first.Questions[3].Responses != 0 {
		t.Fatalf("text question: %+v", first.Questions[3])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize([]model.Question{{ID: 1, Type: model.Number}}, nil, at(1, 0), nil)
	if s.TotalRespondents != 0 || s.Daily == nil || len(s.Daily) != 0 {
		t.Fatalf("unexpected: %+v", s)
	}
	if s.Questions[0].ResponseRate != 0 || s.Questions[0].Numbers != nil {
		t.Fatalf("unexpected question stats: %+v", s.Questions[0])
	}
}
