// Package evaluate scores a user's answer to a single question.
package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pavelanni/revision/internal/model"
)

const (
	// DefaultTimeout bounds a single judge call.
	DefaultTimeout = 10 * time.Second

	// MaxJudgeScore is the top of the judge's 0-5 scale.
	MaxJudgeScore = 5

	DegradedScore    = 2
	DegradedFeedback = "Unable to evaluate answer automatically. Please review manually."

	correctFeedback = "Correct!"
)

// Outcome says how a verdict was reached.
type Outcome string

const (
	OutcomeLocal    Outcome = "local"
	OutcomeJudge    Outcome = "judge"
	OutcomeDegraded Outcome = "degraded"
)

// Request is what the judge sees for one open-ended answer.
type Request struct {
	Question      string             `json:"question"`
	UserAnswer    string             `json:"userAnswer"`
	CorrectAnswer string             `json:"correctAnswer"`
	QuestionType  model.QuestionType `json:"questionType"`
}

// Judge returns the raw reply of an external grader for req. The reply is
// expected to hold a JSON object {"score", "feedback", "isCorrect"}.
type Judge interface {
	Judge(ctx context.Context, req Request) (string, error)
}

// Evaluator scores answers locally for closed-form questions and through a
// Judge for open-ended ones. It never returns an error.
type Evaluator struct {
	judge   Judge
	timeout time.Duration
	observe func(Outcome)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithObserver registers a callback invoked once per verdict.
func WithObserver(fn func(Outcome)) Option {
	return func(e *Evaluator) { e.observe = fn }
}

// New creates an Evaluator. A non-positive timeout means DefaultTimeout.
// A nil judge makes every open-ended verdict degraded.
func New(judge Judge, timeout time.Duration, opts ...Option) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &Evaluator{judge: judge, timeout: timeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores answer against q.
func (e *Evaluator) Evaluate(ctx context.Context, q model.Question, answer string) model.Evaluation {
	return e.EvaluateRequest(ctx, Request{
		Question:      q.Text,
		UserAnswer:    answer,
		CorrectAnswer: q.CorrectAnswer.Primary(),
		QuestionType:  q.Type,
	})
}

// EvaluateRequest scores a request that is not tied to a stored question.
func (e *Evaluator) EvaluateRequest(ctx context.Context, req Request) model.Evaluation {
	if req.QuestionType.ClosedForm() {
		e.record(OutcomeLocal)
		return ClosedForm(req.UserAnswer, req.CorrectAnswer)
	}

	verdict, err := e.judgeAnswer(ctx, req)
	if err != nil {
		slog.Warn("answer evaluation degraded", "type", req.QuestionType, "error", err)
		e.record(OutcomeDegraded)
		return Degraded()
	}
	e.record(OutcomeJudge)
	return verdict
}

func (e *Evaluator) judgeAnswer(ctx context.Context, req Request) (model.Evaluation, error) {
	if e.judge == nil {
		return model.Evaluation{}, errors.New("no judge configured")
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.judge.Judge(ctx, req)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("judge call: %w", err)
	}
	slog.Debug("judge response", "raw", raw)
	return ParseVerdict(raw)
}

func (e *Evaluator) record(o Outcome) {
	if e.observe != nil {
		e.observe(o)
	}
}

// ClosedForm compares answer with correct after trimming and case-folding.
func ClosedForm(answer, correct string) model.Evaluation {
	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct)) {
		return model.Evaluation{IsCorrect: true, Feedback: correctFeedback, Score: 1}
	}
	return model.Evaluation{
		IsCorrect: false,
		Feedback:  "Incorrect. The correct answer is: " + correct,
		Score:     0,
	}
}

// Degraded is the verdict used when an open-ended answer cannot be judged.
func Degraded() model.Evaluation {
	return model.Evaluation{IsCorrect: false, Feedback: DegradedFeedback, Score: DegradedScore}
}

type verdict struct {
	Score     *float64 `json:"score"`
	Feedback  string   `json:"feedback"`
	IsCorrect bool     `json:"isCorrect"`
}

// ParseVerdict decodes a judge reply. The score is required and is clamped
// to the 0-5 scale.
func ParseVerdict(raw string) (model.Evaluation, error) {
	body := strings.TrimSpace(raw)
	if start, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); start >= 0 && end > start {
		body = body[start : end+1]
	}
	var v verdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return model.Evaluation{}, fmt.Errorf("parse judge reply: %w", err)
	}
	if v.Score == nil {
		return model.Evaluation{}, errors.New("parse judge reply: missing score")
	}
	score := math.Max(0, math.Min(MaxJudgeScore, *v.Score))
	return model.Evaluation{IsCorrect: v.IsCorrect, Feedback: v.Feedback, Score: score}, nil
}
