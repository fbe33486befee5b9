package model

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestSelectionsAcceptsListAndEncodedList(t *testing.T) {
	list := Selections(json.RawMessage(`["A","B"]`))
	encoded := Selections(json.RawMessage(`"[\"A\",\"B\"]"`))
	if !slices.Equal(list, []string{"A", "B"}) {
		t.Fatalf("list: %v", list)
	}
	if !slices.Equal(list, encoded) {
		t.Fatalf("encoded list decoded differently: %v vs %v", list, encoded)
	}
}

func TestSelectionsMalformed(t *testing.T) {
	for _, raw := range []string{``, `42`, `"not a list"`, `{"a":1}`, `[1,2]`, `"[oops"`} {
		if got := Selections(json.RawMessage(raw)); len(got) != 0 {
			t.Fatalf("%q: expected no selections, got %v", raw, got)
		}
	}
}

func TestChoicesAnswerKeepsTextInSync(t *testing.T) {
	a := ChoicesAnswer([]string{"Red", "Blue"})
	if a.Text != "Red, Blue" {
		t.Fatalf("text: %q", a.Text)
	}
	if !slices.Equal(Selections(a.Value), []string{"Red", "Blue"}) {
		t.Fatalf("value: %s", a.Value)
	}
	empty := ChoicesAnswer(nil)
	if string(empty.Value) != "[]" || empty.Text != "" {
		t.Fatalf("empty: %+v", empty)
	}
}

func TestQuestionType(t *testing.T) {
	if !SingleChoice.HasOptions() || !MultiChoice.HasOptions() || Number.HasOptions() {
		t.Fatalf("HasOptions mismatch")
	}
	if QuestionType("rating").Valid() {
		t.Fatalf("unknown type reported valid")
	}
}
