package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/revision/internal/model"
)

// Templates holds the default prompt templates.
//
//go:embed templates/*.tmpl
var Templates embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// Variant is a judge prompt variant.
type Variant string

const (
	// VariantStrict grades like an exam.
	VariantStrict Variant = "strict"
	// VariantStandard is the default judge prompt.
	VariantStandard Variant = "standard"
	// VariantLenient grades like a practice tutor.
	VariantLenient Variant = "lenient"
)

var validVariants = map[Variant]bool{
	VariantStrict:   true,
	VariantStandard: true,
	VariantLenient:  true,
}

var (
	loadOnce       sync.Once
	loadErr        error
	generateTmpl   *template.Template
	judgeTemplates map[Variant]*template.Template
)

// IsValidVariant checks if a judge variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// GenerateData holds template data for the question generation prompt.
// QuestionType and Difficulty are empty when the user asked for a mix.
type GenerateData struct {
	Board         string
	Level         string
	Subject       string
	Topic         string
	Subtopic      string
	QuestionCount int
	QuestionType  string
	Difficulty    string
}

// JudgeData holds template data for judge prompts.
type JudgeData struct {
	Question      string
	Answer        string
	CorrectAnswer string
	QuestionType  string
	MaxScore      int
}

// Load loads prompt templates from fsys.
// It uses sync.Once to ensure templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		judgeTemplates = make(map[Variant]*template.Template)

		generateTmpl, loadErr = parseFile(fsys, "templates/generate.tmpl")
		if loadErr != nil {
			return
		}
		for _, v := range []Variant{VariantStrict, VariantStandard, VariantLenient} {
			tmpl, err := parseFile(fsys, "templates/judge_"+string(v)+".tmpl")
			if err != nil {
				loadErr = err
				return
			}
			judgeTemplates[v] = tmpl
		}
	})
	return loadErr
}

func parseFile(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// BuildGeneratePrompt renders the question generation prompt for cfg.
func BuildGeneratePrompt(cfg model.QuizConfig) (string, error) {
	if generateTmpl == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	cfg = cfg.Normalized()
	data := GenerateData{
		Board:         cfg.Board,
		Level:         cfg.Level,
		Subject:       cfg.Subject,
		Topic:         cfg.Topic,
		Subtopic:      cfg.Subtopic,
		QuestionCount: cfg.QuestionCount,
		QuestionType:  preference(cfg.QuestionType),
		Difficulty:    preference(cfg.Difficulty),
	}
	return execute(generateTmpl, data)
}

// BuildJudgePrompt renders the judge prompt for one open-ended answer.
func BuildJudgePrompt(variant Variant, question, answer, correctAnswer string, qtype model.QuestionType) (string, error) {
	if judgeTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := judgeTemplates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	return execute(tmpl, JudgeData{
		Question:      question,
		Answer:        sanitizeAnswer(answer),
		CorrectAnswer: correctAnswer,
		QuestionType:  string(qtype),
		MaxScore:      5,
	})
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// preference maps the "mixed" selector value to an empty string.
func preference(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, model.PreferenceMixed) {
		return ""
	}
	return v
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
