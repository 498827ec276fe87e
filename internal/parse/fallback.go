package parse

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/revision/internal/model"
)

const (
	questionPrefix = "Q-"
	answerPrefix   = "A-"

	essayMinLength      = 100
	maxExplanationRunes = 200
)

var (
	markerLabel  = regexp.MustCompile(`^[QA]-[^:]*:\s*`)
	trueWord     = regexp.MustCompile(`(?i)\btrue\b`)
	falseWord    = regexp.MustCompile(`(?i)\bfalse\b`)
	easyKeywords = []string{"basic", "simple", "what is"}
	hardKeywords = []string{"complex", "analyze", "evaluate"}
)

// record is a question being assembled by the fallback parser.
type record struct {
	id          string
	text        string
	qtype       model.QuestionType
	options     []string
	answer      string
	explanation string
	difficulty  model.Difficulty
	marks       int
}

// ParseFallback extracts questions from loosely formatted "Q-n: ... / A-n: ..."
// text. The classification rules are heuristics, not a grammar.
func ParseFallback(raw string) []model.Question {
	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	var (
		questions []model.Question
		current   *record
		number    int
	)
	flush := func() {
		if current == nil || current.text == "" {
			return
		}
		q := current.question()
		if q.Valid() {
			questions = append(questions, q)
		}
	}

	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, questionPrefix):
			flush()
			number++
			text := stripMarker(line)
			current = &record{
				id:         strconv.Itoa(number),
				text:       text,
				qtype:      model.TypeShortAnswer,
				difficulty: inferDifficulty(text),
				marks:      1,
			}
		case strings.HasPrefix(line, answerPrefix) && current != nil:
			current.classify(stripMarker(line))
			current.explanation = collectExplanation(lines[i+1:])
		}
	}
	flush()
	return questions
}

func stripMarker(line string) string {
	return strings.TrimSpace(markerLabel.ReplaceAllString(line, ""))
}

// classify sets the record's type and answer from the answer line, in order:
// true/false, colon-delimited choices, long free text, short answer.
func (r *record) classify(answer string) {
	r.options = nil
	switch {
	case trueWord.MatchString(answer) || falseWord.MatchString(answer):
		r.qtype = model.TypeTrueFalse
		r.answer = "false"
		if trueWord.MatchString(answer) {
			r.answer = "true"
		}
	case strings.Contains(answer, ":"):
		parts := strings.Split(answer, ":")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		r.qtype = model.TypeMultipleChoice
		r.answer = parts[0]
		r.options = parts
	case utf8.RuneCountInString(answer) > essayMinLength:
		r.qtype = model.TypeEssay
		r.answer = answer
	default:
		r.qtype = model.TypeShortAnswer
		r.answer = answer
	}
	r.marks = model.DefaultMarks(r.qtype)
}

func (r *record) question() model.Question {
	q := model.Question{
		ID:            r.id,
		Type:          r.qtype,
		Text:          r.text,
		CorrectAnswer: model.SingleAnswer(r.answer),
		Explanation:   r.explanation,
		Difficulty:    r.difficulty,
		TopicID:       model.GeneratedTopicID,
		Marks:         r.marks,
		Tags:          []string{},
	}
	if r.qtype == model.TypeMultipleChoice {
		q.Options = r.options
	}
	return q
}

// collectExplanation joins the non-empty lines up to the next marker.
func collectExplanation(lines []string) string {
	var parts []string
	for _, line := range lines {
		if strings.HasPrefix(line, questionPrefix) || strings.HasPrefix(line, answerPrefix) {
			break
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return truncateRunes(strings.Join(parts, " "), maxExplanationRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func inferDifficulty(text string) model.Difficulty {
	lower := strings.ToLower(text)
	for _, kw := range easyKeywords {
		if strings.Contains(lower, kw) {
			return model.DifficultyEasy
		}
	}
	for _, kw := range hardKeywords {
		if strings.Contains(lower, kw) {
			return model.DifficultyHard
		}
	}
	return model.DifficultyMedium
}
