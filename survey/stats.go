package survey

import (
	"iter"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mbolis/quick-survey/model"
)

const recentWindow = 24 * time.Hour

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type OptionCount struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}

type NumericSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

type QuestionStats struct {
	QuestionID   int                `json:"question_id"`
	Text         string             `json:"text"`
	Type         model.QuestionType `json:"type"`
	Responses    int                `json:"responses"`
	ResponseRate int                `json:"response_rate"`
	Tally        []OptionCount      `json:"tally,omitempty"`
	Numbers      *NumericSummary    `json:"numbers,omitempty"`
}

type Summary struct {
	TotalRespondents  int             `json:"total_respondents"`
	RecentRespondents int             `json:"recent_respondents"`
	Daily             []DayCount      `json:"daily"`
	Questions         []QuestionStats `json:"questions"`
}

// Summarize derives the whole statistics payload of a survey. It never
// modifies its inputs, so calling it twice yields the same result.
func Summarize(questions []model.Question, answers []model.Answer, now time.Time, loc *time.Location) Summary {
	total := UniqueRespondents(answers)
	summary := Summary{
		TotalRespondents:  total,
		RecentRespondents: RecentRespondents(answers, now),
		Daily:             slices.Collect(DailyHistogram(answers, loc)),
		Questions:         make([]QuestionStats, 0, len(questions)),
	}
	if summary.Daily == nil {
		summary.Daily = []DayCount{}
	}

	for _, q := range questions {
		qs := QuestionStats{
			QuestionID:   q.ID,
			Text:         q.Text,
			Type:         q.Type,
			Responses:    countFor(q.ID, answers),
			ResponseRate: ResponseRate(q, answers, total),
		}
		switch q.Type {
		case model.SingleChoice, model.MultiChoice:
			tally := ChoiceTally(q, answers)
			seen := map[string]bool{}
			for _, opt := range q.Options {
				if seen[opt] {
					continue
				}
				seen[opt] = true
				qs.Tally = append(qs.Tally, OptionCount{Option: opt, Count: tally[opt]})
			}
		case model.Number:
			qs.Numbers = Numbers(q, answers)
		}
		summary.Questions = append(summary.Questions, qs)
	}
	return summary
}

// UniqueRespondents counts distinct respondent emails, not answer rows.
func UniqueRespondents(answers []model.Answer) int {
	seen := map[string]struct{}{}
	for _, a := range answers {
		seen[a.Email] = struct{}{}
	}
	return len(seen)
}

// RecentRespondents counts respondents whose latest answer is less than
// 24 hours older than now.
func RecentRespondents(answers []model.Answer, now time.Time) int {
	latest := map[string]time.Time{}
	for _, a := range answers {
		if t, ok := latest[a.Email]; !ok || a.SubmittedAt.After(t) {
			latest[a.Email] = a.SubmittedAt
		}
	}
	cutoff := now.Add(-recentWindow)
	n := 0
	for _, t := range latest {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// DailyHistogram yields the number of distinct respondents per calendar
// day in loc, oldest day first. Nothing is computed until the sequence is
// ranged over, and every range starts from scratch.
func DailyHistogram(answers []model.Answer, loc *time.Location) iter.Seq[DayCount] {
	if loc == nil {
		loc = time.Local
	}
	return func(yield func(DayCount) bool) {
		byDay := map[string]map[string]struct{}{}
		for _, a := range answers {
			day := a.SubmittedAt.In(loc).Format(time.DateOnly)
			if byDay[day] == nil {
				byDay[day] = map[string]struct{}{}
			}
			byDay[day][a.Email] = struct{}{}
		}

		days := make([]string, 0, len(byDay))
		for d := range byDay {
			days = append(days, d)
		}
		sort.Strings(days)

		for _, d := range days {
			if !yield(DayCount{Date: d, Count: len(byDay[d])}) {
				return
			}
		}
	}
}

// ResponseRate is the rounded percentage of respondents who answered q.
// It is 0 when there are no respondents at all.
func ResponseRate(q model.Question, answers []model.Answer, totalRespondents int) int {
	if totalRespondents <= 0 {
		return 0
	}
	n := countFor(q.ID, answers)
	return int(math.Round(float64(n) / float64(totalRespondents) * 100))
}

// ChoiceTally counts selections per declared option. Answers naming an
// option that is not declared (anymore) are ignored.
func ChoiceTally(q model.Question, answers []model.Answer) map[string]int {
	tally := make(map[string]int, len(q.Options))
	for _, opt := range q.Options {
		tally[opt] = 0
	}

	for _, a := range answers {
		if a.QuestionID != q.ID {
			continue
		}
		switch q.Type {
		case model.SingleChoice:
			if _, ok := tally[a.Text]; ok {
				tally[a.Text]++
			}
		case model.MultiChoice:
			for _, sel := range model.Selections(a.Value) {
				if _, ok := tally[sel]; ok {
					tally[sel]++
				}
			}
		}
	}
	return tally
}

// Numbers summarizes the numeric answers to q. Answers that don't parse as
// a finite number are left out entirely; nil means nothing parsed.
func Numbers(q model.Question, answers []model.Answer) *NumericSummary {
	var s *NumericSummary
	var sum float64
	for _, a := range answers {
		if a.QuestionID != q.ID {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(a.Text), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if s == nil {
			s = &NumericSummary{Min: v, Max: v}
		}
		s.Count++
		sum += v
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	if s != nil {
		s.Average = sum / float64(s.Count)
	}
	return s
}

func countFor(questionID int, answers []model.Answer) int {
	n := 0
	for _, a := range answers {
		if a.QuestionID == questionID {
			n++
		}
	}
	return n
}
