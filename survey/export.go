package survey

import (
	"bytes"
	"encoding/csv"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mbolis/quick-survey/model"
)

const DateLayout = time.DateTime

var reNoIdent = regexp.MustCompile(`\W+`)

type respondentRow struct {
	email string
	first time.Time
	cells map[int]string
}

// ExportCSV renders one row per respondent and one column per question,
// in the order the questions are given, and names the file after title.
// Missing answers are empty cells.
func ExportCSV(title string, questions []model.Question, answers []model.Answer, loc *time.Location) (filename string, data []byte, err error) {
	data, err = encodeCSV(questions, answers, loc)
	if err != nil {
		return "", nil, err
	}
	return ExportFilename(title), data, nil
}

func encodeCSV(questions []model.Question, answers []model.Answer, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}

	byEmail := map[string]*respondentRow{}
	for _, a := range answers {
		row := byEmail[a.Email]
		if row == nil {
			row = &respondentRow{email: a.Email, first: a.SubmittedAt, cells: map[int]string{}}
			byEmail[a.Email] = row
		}
		if a.SubmittedAt.Before(row.first) {
			row.first = a.SubmittedAt
		}
		if _, ok := row.cells[a.QuestionID]; !ok {
			row.cells[a.QuestionID] = a.Text
		}
	}

	rows := make([]*respondentRow, 0, len(byEmail))
	for _, row := range byEmail {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].first.Equal(rows[j].first) {
			return rows[i].email < rows[j].email
		}
		return rows[i].first.Before(rows[j].first)
	})

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := make([]string, 0, 2+len(questions))
	header = append(header, "Respondent", "Date")
	for _, q := range questions {
		header = append(header, q.Text)
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, row := range rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, row.email, row.first.In(loc).Format(DateLayout))
		for _, q := range questions {
			rec = append(rec, row.cells[q.ID])
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportFilename turns a survey title into a safe download name.
func ExportFilename(title string) string {
	name := strings.ToLower(title)
	name = reNoIdent.ReplaceAllLiteralString(name, " ")
	name = strings.Join(strings.Fields(name), "_")
	if name == "" {
		name = "survey"
	}
	return name + "_responses.csv"
}
