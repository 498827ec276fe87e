package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// QuestionType is the kind of a quiz question.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeShortAnswer    QuestionType = "short-answer"
	TypeEssay          QuestionType = "essay"
	TypeTrueFalse      QuestionType = "true-false"
	TypeFillBlank      QuestionType = "fill-blank"
)

// QuestionTypes lists every known question type in display order.
var QuestionTypes = []QuestionType{
	TypeMultipleChoice,
	TypeShortAnswer,
	TypeEssay,
	TypeTrueFalse,
	TypeFillBlank,
}

// Valid reports whether t is one of the five known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeShortAnswer, TypeEssay, TypeTrueFalse, TypeFillBlank:
		return true
	}
	return false
}

// ClosedForm reports whether answers to t can be checked by string comparison.
func (t QuestionType) ClosedForm() bool {
	return t == TypeMultipleChoice || t == TypeTrueFalse
}

// OpenEnded reports whether answers to t need an external judge.
func (t QuestionType) OpenEnded() bool {
	return t.Valid() && !t.ClosedForm()
}

// DefaultMarks returns the marks a question of type t is worth when the source omits them.
func DefaultMarks(t QuestionType) int {
	switch t {
	case TypeEssay:
		return 5
	case TypeShortAnswer:
		return 2
	default:
		return 1
	}
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// GeneratedTopicID is the topicId carried by every AI-produced question.
const GeneratedTopicID = "generated"

// CorrectAnswer holds either a single accepted answer or an ordered list of
// acceptable phrasings. It round-trips through JSON in the form it was given.
type CorrectAnswer struct {
	Values []string
	List   bool
}

// SingleAnswer returns a CorrectAnswer holding one string.
func SingleAnswer(s string) CorrectAnswer {
	return CorrectAnswer{Values: []string{s}}
}

// AnswerList returns a CorrectAnswer holding several acceptable strings.
func AnswerList(values ...string) CorrectAnswer {
	return CorrectAnswer{Values: values, List: true}
}

// Primary returns the answer used for comparison and display: the string
// itself, or the first element of a list.
func (a CorrectAnswer) Primary() string {
	if len(a.Values) == 0 {
		return ""
	}
	return a.Values[0]
}

// Empty reports whether the answer carries nothing usable.
func (a CorrectAnswer) Empty() bool {
	if a.List {
		return len(a.Values) == 0
	}
	return strings.TrimSpace(a.Primary()) == ""
}

// MarshalJSON implements json.Marshaler.
func (a CorrectAnswer) MarshalJSON() ([]byte, error) {
	if a.List {
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.Primary())
}

// UnmarshalJSON implements json.Unmarshaler. It accepts a string, a number,
// a boolean or an array of those; numbers and booleans keep their JSON text.
func (a *CorrectAnswer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = CorrectAnswer{}
		return nil
	}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			v, err := scalarText(item)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		*a = CorrectAnswer{Values: values, List: true}
		return nil
	}
	s, err := scalarText(data)
	if err != nil {
		return err
	}
	*a = SingleAnswer(s)
	return nil
}

var errAnswerShape = errors.New("correctAnswer must be a string, number, boolean or an array of them")

// scalarText returns a JSON string's value, or the literal text of a number
// or boolean.
func scalarText(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", errAnswerShape
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", errAnswerShape
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return "", errAnswerShape
		}
		return strconv.FormatBool(b), nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil || n == "" {
			return "", errAnswerShape
		}
		return n.String(), nil
	}
}

// Question is a canonical quiz question. It is not modified after creation.
type Question struct {
	ID            string        `json:"id"`
	Type          QuestionType  `json:"type"`
	Text          string        `json:"question"`
	Options       []string      `json:"options,omitempty"`
	CorrectAnswer CorrectAnswer `json:"correctAnswer"`
	Explanation   string        `json:"explanation"`
	Difficulty    Difficulty    `json:"difficulty"`
	TopicID       string        `json:"topicId"`
	Marks         int           `json:"marks"`
	Tags          []string      `json:"tags"`
}

// Valid reports whether q is structurally usable: known type, non-empty
// prompt and non-empty correct answer. Multiple-choice questions also need options.
func (q Question) Valid() bool {
	if !q.Type.Valid() || strings.TrimSpace(q.Text) == "" || q.CorrectAnswer.Empty() {
		return false
	}
	return q.Type != TypeMultipleChoice || len(q.Options) > 0
}

// Evaluation is the verdict on one submitted answer.
type Evaluation struct {
	IsCorrect bool    `json:"isCorrect"`
	Feedback  string  `json:"feedback"`
	Score     float64 `json:"score"`
}

// Score is the aggregate result of a session. It is computed, never stored.
type Score struct {
	TotalScore float64 `json:"totalScore"`
	MaxScore   int     `json:"maxScore"`
	Percentage int     `json:"percentage"`
}

// Preference values shared by the question type and difficulty selectors.
const PreferenceMixed = "mixed"

// QuizConfig is the user's selection that a question set is generated from.
type QuizConfig struct {
	Board         string `json:"board" yaml:"board"`
	Level         string `json:"level" yaml:"level"`
	Subject       string `json:"subject" yaml:"subject"`
	Topic         string `json:"topic" yaml:"topic"`
	Subtopic      string `json:"subtopic,omitempty" yaml:"subtopic,omitempty"`
	QuestionCount int    `json:"questionCount" yaml:"questionCount"`
	QuestionType  string `json:"questionType,omitempty" yaml:"questionType,omitempty"`
	Difficulty    string `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
}

// DefaultQuestionCount is used when a config does not set QuestionCount.
const DefaultQuestionCount = 5

// Missing returns the names of the required fields that are blank.
func (c QuizConfig) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"board", c.Board},
		{"level", c.Level},
		{"subject", c.Subject},
		{"topic", c.Topic},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Normalized returns a copy of c with whitespace trimmed and defaults applied.
func (c QuizConfig) Normalized() QuizConfig {
	c.Board = strings.TrimSpace(c.Board)
	c.Level = strings.TrimSpace(c.Level)
	c.Subject = strings.TrimSpace(c.Subject)
	c.Topic = strings.TrimSpace(c.Topic)
	c.Subtopic = strings.TrimSpace(c.Subtopic)
	if c.QuestionCount <= 0 {
		c.QuestionCount = DefaultQuestionCount
	}
	if c.QuestionType == "" {
		c.QuestionType = PreferenceMixed
	}
	if c.Difficulty == "" {
		c.Difficulty = PreferenceMixed
	}
	return c
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	Lang          string   // UI message language
	CORSOrigins   []string // allowed browser origins for the JSON API
	RateLimit     float64  // generation/check requests per second per client, 0 disables
	RateBurst     int
	SessionSecret string        // key for the session cookie
	SecureCookies bool          // Set Secure flag on cookies (disable for local dev)
	SessionTTL    time.Duration // cookie lifetime, matching the idle session sweep
}

// Exchange kinds.
const (
	ExchangeGenerate = "generate"
	ExchangeJudge    = "judge"
)

// Exchange is one prompt/reply round trip with the LLM provider.
type Exchange struct {
	ID        int64         `json:"id"`
	Kind      string        `json:"kind"`
	Model     string        `json:"model"`
	Prompt    string        `json:"prompt"`
	Response  string        `json:"response"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}
