package parse

import (
	"strconv"
	"strings"
	"testing"

	"github.com/pavelanni/revision/internal/model"
)

func TestNormalizeFallbackNotConsultedWhenStructuredSucceeds(t *testing.T) {
	raw := `{"questions":[{"question":"2+2?","type":"short-answer","correctAnswer":"4"}]}`
	called := false
	spy := func(string) []model.Question {
		called = true
		return nil
	}

	got, source := Normalize(raw, "Algebra", spy)
	if called {
		t.Error("fallback should not be called when the structured parser succeeds")
	}
	if source != SourceStructured {
		t.Errorf("source = %q, want %q", source, SourceStructured)
	}
	if len(got) != 1 {
		t.Fatalf("len(questions) = %d, want 1", len(got))
	}
}

func TestNormalizeUsesFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid JSON", "Q-1: What is 2+2?\nA-1: 4"},
		{"no usable entries", `{"questions":[{"question":"x","type":"essay","correctAnswer":""}]}`},
		{"questions not an array", `{"questions":"nope"}`},
		{"missing questions field", `{"items":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			spy := func(raw string) []model.Question {
				called = true
				if raw != tt.raw {
					t.Errorf("fallback got %q, want the original text", raw)
				}
				return nil
			}
			got, source := Normalize(tt.raw, "", spy)
			if !called {
				t.Error("fallback should be called")
			}
			if len(got) != 0 || source != SourceNone {
				t.Errorf("Normalize() = %d questions from %q, want none", len(got), source)
			}
		})
	}
}

func TestQuestionsFallbackEndToEnd(t *testing.T) {
	got := Questions("Q-1: What is 2+2?\nA-1: 4", "Arithmetic")
	if len(got) != 1 {
		t.Fatalf("len(questions) = %d, want 1", len(got))
	}
	if got[0].Type != model.TypeShortAnswer || got[0].CorrectAnswer.Primary() != "4" {
		t.Errorf("got %+v, want short-answer with answer 4", got[0])
	}
}

func TestParseStructuredDefaults(t *testing.T) {
	raw := `{"questions":[
		{"question":"Explain photosynthesis","type":"essay","correctAnswer":"Light to chemical energy"},
		{"question":"Name the powerhouse of the cell","type":"short-answer","correctAnswer":"mitochondria"},
		{"question":"Water boils at 100C at sea level","type":"true-false","correctAnswer":"true"},
		{"question":"Pick one","type":"multiple-choice","correctAnswer":"A","options":["A","B","C"]},
		{"question":"The ___ is red","type":"fill-blank","correctAnswer":"apple","options":["x"]}
	]}`

	got := ParseStructured(raw, "Cell Biology")
	if len(got) != 5 {
		t.Fatalf("len(questions) = %d, want 5", len(got))
	}

	wantMarks := []int{5, 2, 1, 1, 1}
	for i, q := range got {
		if q.Marks != wantMarks[i] {
			t.Errorf("question %d marks = %d, want %d", i, q.Marks, wantMarks[i])
		}
		if q.ID != strconv.Itoa(i+1) {
			t.Errorf("question %d id = %q, want %d", i, q.ID, i+1)
		}
		if q.TopicID != model.GeneratedTopicID {
			t.Errorf("question %d topicId = %q, want %q", i, q.TopicID, model.GeneratedTopicID)
		}
		if len(q.Tags) != 1 || q.Tags[0] != "Cell Biology" {
			t.Errorf("question %d tags = %v, want [Cell Biology]", i, q.Tags)
		}
		if q.Difficulty != model.DifficultyMedium {
			t.Errorf("question %d difficulty = %q, want medium", i, q.Difficulty)
		}
	}
	if len(got[3].Options) != 3 {
		t.Errorf("multiple-choice options = %v, want 3", got[3].Options)
	}
	if got[4].Options != nil {
		t.Errorf("fill-blank options = %v, want none", got[4].Options)
	}
}

func TestParseStructuredKeepsProvidedFields(t *testing.T) {
	raw := `{"questions":[{"id":"q-7","question":"Q","type":"short-answer","correctAnswer":["a","b"],
		"marks":4,"tags":[],"difficulty":"hard","explanation":"because"},
		{"id":12,"question":"R","type":"essay","correctAnswer":"x"}]}`

	got := ParseStructured(raw, "Topic")
	if len(got) != 2 {
		t.Fatalf("len(questions) = %d, want 2", len(got))
	}
	q := got[0]
	if q.ID != "q-7" || q.Marks != 4 || q.Difficulty != model.DifficultyHard || q.Explanation != "because" {
		t.Errorf("got %+v, want provided fields kept", q)
	}
	if q.Tags == nil || len(q.Tags) != 0 {
		t.Errorf("tags = %#v, want empty list kept", q.Tags)
	}
	if !q.CorrectAnswer.List || q.CorrectAnswer.Primary() != "a" {
		t.Errorf("correctAnswer = %+v, want list with primary a", q.CorrectAnswer)
	}
	if got[1].ID != "12" {
		t.Errorf("numeric id = %q, want 12", got[1].ID)
	}
}

func TestParseStructuredUniqueIDs(t *testing.T) {
	raw := `{"questions":[
		{"id":"2","question":"First","type":"essay","correctAnswer":"a"},
		{"id":"2","question":"Second","type":"essay","correctAnswer":"b"},
		{"id":"q","question":"Third","type":"essay","correctAnswer":"c"},
		{"id":"q","question":"Fourth","type":"essay","correctAnswer":"d"},
		{"id":" ","question":"Fifth","type":"essay","correctAnswer":"e"}
	]}`

	// A repeated id falls back to the position, suffixed when that is taken.
	got := ParseStructured(raw, "")
	want := []string{"2", "2-2", "q", "4", "5"}
	if len(got) != len(want) {
		t.Fatalf("len(questions) = %d, want %d", len(got), len(want))
	}
	for i, q := range got {
		if q.ID != want[i] {
			t.Errorf("question %d id = %q, want %q", i, q.ID, want[i])
		}
	}
}

func TestParseStructuredScalarAnswers(t *testing.T) {
	raw := `{"questions":[
		{"question":"2+2?","type":"short-answer","correctAnswer":4},
		{"question":"Half of 3?","type":"short-answer","correctAnswer":1.5},
		{"question":"Ice floats","type":"true-false","correctAnswer":true},
		{"question":"Primes below 5","type":"short-answer","correctAnswer":[2,3]},
		{"question":"Object answer","type":"short-answer","correctAnswer":{"value":4}}
	]}`

	got := ParseStructured(raw, "")
	if len(got) != 4 {
		t.Fatalf("len(questions) = %d, want 4: %+v", len(got), got)
	}
	for i, want := range []string{"4", "1.5", "true", "2"} {
		if p := got[i].CorrectAnswer.Primary(); p != want {
			t.Errorf("question %d answer = %q, want %q", i, p, want)
		}
	}
	if !got[3].CorrectAnswer.List || len(got[3].CorrectAnswer.Values) != 2 {
		t.Errorf("list answer = %+v, want two values", got[3].CorrectAnswer)
	}
}

func TestParseStructuredDropsInvalidEntries(t *testing.T) {
	raw := `{"questions":[
		"not an object",
		{"question":5,"type":"essay","correctAnswer":"x"},
		{"question":"no type","correctAnswer":"x"},
		{"question":"bad type","type":"matching","correctAnswer":"x"},
		{"question":"","type":"essay","correctAnswer":"x"},
		{"question":"no answer","type":"essay"},
		{"question":"empty list","type":"essay","correctAnswer":[]},
		{"question":"mc without options","type":"multiple-choice","correctAnswer":"A"},
		{"question":"kept","type":"essay","correctAnswer":"x"}
	]}`

	got := ParseStructured(raw, "")
	if len(got) != 1 {
		t.Fatalf("len(questions) = %d, want 1: %+v", len(got), got)
	}
	if got[0].Text != "kept" {
		t.Errorf("kept question = %q, want %q", got[0].Text, "kept")
	}
	// id counts every entry that passed the shape check.
	if got[0].ID != "6" {
		t.Errorf("id = %q, want 6", got[0].ID)
	}
}

func TestParseStructuredCodeFence(t *testing.T) {
	raw := "```json\n{\"questions\":[{\"question\":\"Q\",\"type\":\"essay\",\"correctAnswer\":\"A\"}]}\n```"
	if got := ParseStructured(raw, ""); len(got) != 1 {
		t.Errorf("len(questions) = %d, want 1", len(got))
	}
}

func TestParseFallbackClassification(t *testing.T) {
	longAnswer := strings.Repeat("word ", 25)
	tests := []struct {
		name        string
		raw         string
		wantType    model.QuestionType
		wantAnswer  string
		wantOptions []string
		wantMarks   int
	}{
		{"true-false", "Q-1: Is the sky blue?\nA-1: True", model.TypeTrueFalse, "true", nil, 1},
		{"false", "Q-1: Is ice hot?\nA-1: That is FALSE", model.TypeTrueFalse, "false", nil, 1},
		{"true takes precedence", "Q-1: Both?\nA-1: false, no wait, true", model.TypeTrueFalse, "true", nil, 1},
		{"not a whole word", "Q-1: Interpret\nA-1: construe", model.TypeShortAnswer, "construe", nil, 2},
		{"colon split", "Q-1: Capital of France?\nA-1: Paris : London : Rome", model.TypeMultipleChoice, "Paris",
			[]string{"Paris", "London", "Rome"}, 1},
		{"long answer", "Q-1: Discuss\nA-1: " + longAnswer, model.TypeEssay, strings.TrimSpace(longAnswer), nil, 5},
		{"short answer", "Q-1: 2+2?\nA-1: 4", model.TypeShortAnswer, "4", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFallback(tt.raw)
			if len(got) != 1 {
				t.Fatalf("len(questions) = %d, want 1", len(got))
			}
			q := got[0]
			if q.Type != tt.wantType {
				t.Errorf("type = %q, want %q", q.Type, tt.wantType)
			}
			if q.CorrectAnswer.Primary() != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", q.CorrectAnswer.Primary(), tt.wantAnswer)
			}
			if strings.Join(q.Options, "|") != strings.Join(tt.wantOptions, "|") {
				t.Errorf("options = %v, want %v", q.Options, tt.wantOptions)
			}
			if q.Marks != tt.wantMarks {
				t.Errorf("marks = %d, want %d", q.Marks, tt.wantMarks)
			}
			if q.TopicID != model.GeneratedTopicID {
				t.Errorf("topicId = %q, want %q", q.TopicID, model.GeneratedTopicID)
			}
		})
	}
}

func TestParseFallbackExplanation(t *testing.T) {
	raw := "Q-[1]: What is a cell?\nA-[1]: unit of life\nIt is the smallest unit.\n\nAll organisms have them.\nQ-[2]: Next?\nA-[2]: yes"
	got := ParseFallback(raw)
	if len(got) != 2 {
		t.Fatalf("len(questions) = %d, want 2", len(got))
	}
	if got[0].Text != "What is a cell?" {
		t.Errorf("text = %q, want marker stripped", got[0].Text)
	}
	want := "It is the smallest unit. All organisms have them."
	if got[0].Explanation != want {
		t.Errorf("explanation = %q, want %q", got[0].Explanation, want)
	}
	if got[1].Explanation != "" {
		t.Errorf("second explanation = %q, want empty", got[1].Explanation)
	}

	long := "Q-1: Q\nA-1: a\n" + strings.Repeat("x", 300)
	got = ParseFallback(long)
	if n := len([]rune(got[0].Explanation)); n != 200 {
		t.Errorf("explanation length = %d, want 200", n)
	}
}

func TestParseFallbackDifficulty(t *testing.T) {
	tests := []struct {
		text string
		want model.Difficulty
	}{
		{"What is an atom?", model.DifficultyEasy},
		{"A simple sum", model.DifficultyEasy},
		{"Analyze the poem", model.DifficultyHard},
		{"Evaluate the policy", model.DifficultyHard},
		{"Describe mitosis", model.DifficultyMedium},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ParseFallback("Q-1: " + tt.text + "\nA-1: answer")
			if len(got) != 1 {
				t.Fatalf("len(questions) = %d, want 1", len(got))
			}
			if got[0].Difficulty != tt.want {
				t.Errorf("difficulty = %q, want %q", got[0].Difficulty, tt.want)
			}
		})
	}
}

func TestParseFallbackEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"empty input", "", 0},
		{"answer before question", "A-1: orphan\nQ-1: Real?\nA-1: yes", 1},
		{"question without answer", "Q-1: Dangling?", 0},
		{"empty question text", "Q-1:\nA-1: 4", 0},
		{"trailing empty marker", "Q-1: One?\nA-1: 1\nQ-2:", 1},
		{"prose only", "Here are some questions about algebra.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseFallback(tt.raw); len(got) != tt.want {
				t.Errorf("len(questions) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseStructuredEmitsOnlyValidQuestions(t *testing.T) {
	inputs := []string{
		`{"questions":[{"question":"a","type":"essay","correctAnswer":"b"},{"question":"c","type":"x","correctAnswer":"d"}]}`,
		`{"questions":[{"question":"a","type":"multiple-choice","correctAnswer":"b","options":["b","c"]}]}`,
		"Q-1: a\nA-1: b : c\nQ-2: d\nA-2: true",
	}
	for _, raw := range inputs {
		for _, q := range Questions(raw, "t") {
			if !q.Valid() {
				t.Errorf("Questions(%q) emitted invalid %+v", raw, q)
			}
			if q.Type == model.TypeMultipleChoice && len(q.Options) == 0 {
				t.Errorf("multiple-choice without options: %+v", q)
			}
			if q.Type != model.TypeMultipleChoice && q.Options != nil {
				t.Errorf("%s question carries options: %+v", q.Type, q)
			}
		}
	}
}

func TestParseFallbackMarkerExample(t *testing.T) {
	raw := `Q-[1]: What is 2+2?
A-[1]: 4
Explanation text here.
Q-[2]: The sky is blue.
A-[2]: true`

	got := ParseFallback(raw)
	if len(got) != 2 {
		t.Fatalf("len(questions) = %d, want 2", len(got))
	}
	if got[0].Type != model.TypeShortAnswer || got[0].CorrectAnswer.Primary() != "4" {
		t.Errorf("question 1 = %+v, want short-answer 4", got[0])
	}
	if got[0].Explanation != "Explanation text here." {
		t.Errorf("question 1 explanation = %q", got[0].Explanation)
	}
	if got[1].Type != model.TypeTrueFalse || got[1].CorrectAnswer.Primary() != "true" {
		t.Errorf("question 2 = %+v, want true-false true", got[1])
	}
	if got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("ids = %q, %q, want 1, 2", got[0].ID, got[1].ID)
	}
}
