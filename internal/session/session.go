// Package session models one practice run as an explicit, serializable
// value. Every transition returns a new Session and leaves the receiver
// untouched.
package session

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/revision/internal/evaluate"
	"github.com/pavelanni/revision/internal/model"
)

// Phase is the coarse state of a session.
type Phase string

const (
	PhaseConfiguring Phase = "configuring"
	PhaseActive      Phase = "active"
	PhaseResults     Phase = "results"
)

var (
	ErrInvalidConfig    = errors.New("configuration incomplete")
	ErrNoQuestions      = errors.New("no questions generated")
	ErrFeedbackRequired = errors.New("check the answer before moving on")
	ErrWrongPhase       = errors.New("action not allowed in current phase")
	ErrNoAnswer         = errors.New("no answer for current question")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrIntegrity        = errors.New("session has no questions to show")
)

// Session is the state of one practice run.
type Session struct {
	ID           string                      `json:"id"`
	Config       model.QuizConfig            `json:"config"`
	Questions    []model.Question            `json:"questions"`
	CurrentIndex int                         `json:"currentIndex"`
	Answers      map[string]string           `json:"answers"`
	Feedback     map[string]model.Evaluation `json:"feedback"`
	Phase        Phase                       `json:"phase"`
}

// New returns an empty session in the configuring phase.
func New() Session {
	return Session{
		ID:       uuid.NewString(),
		Answers:  map[string]string{},
		Feedback: map[string]model.Evaluation{},
		Phase:    PhaseConfiguring,
	}
}

// clone returns a copy of s that shares no mutable state with it.
func (s Session) clone() Session {
	s.Questions = slices.Clone(s.Questions)
	s.Answers = maps.Clone(s.Answers)
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	s.Feedback = maps.Clone(s.Feedback)
	if s.Feedback == nil {
		s.Feedback = map[string]model.Evaluation{}
	}
	return s
}

// ValidateConfig reports ErrInvalidConfig if a required selection is blank.
func ValidateConfig(cfg model.QuizConfig) error {
	if missing := cfg.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Start moves a configuring session to active with the generated questions.
// On any error the session stays in configuring.
func (s Session) Start(cfg model.QuizConfig, questions []model.Question) (Session, error) {
	if s.Phase != PhaseConfiguring {
		return s, fmt.Errorf("start: %w", ErrWrongPhase)
	}
	if err := ValidateConfig(cfg); err != nil {
		return s, err
	}
	// Answers and feedback are keyed by id, so a repeated id keeps only its
	// first question.
	valid := make([]model.Question, 0, len(questions))
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		if !q.Valid() || seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return s, ErrNoQuestions
	}

	next := s.clone()
	next.Config = cfg.Normalized()
	next.Questions = valid
	next.CurrentIndex = 0
	next.Answers = map[string]string{}
	next.Feedback = map[string]model.Evaluation{}
	next.Phase = PhaseActive
	return next, nil
}

// Current returns the question under the cursor.
func (s Session) Current() (model.Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return model.Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// CurrentAnswer returns the stored answer to the current question.
func (s Session) CurrentAnswer() string {
	q, ok := s.Current()
	if !ok {
		return ""
	}
	return s.Answers[q.ID]
}

// CurrentFeedback returns the stored verdict for the current question.
func (s Session) CurrentFeedback() (model.Evaluation, bool) {
	q, ok := s.Current()
	if !ok {
		return model.Evaluation{}, false
	}
	ev, ok := s.Feedback[q.ID]
	return ev, ok
}

// CheckIntegrity reports ErrIntegrity for an active or results session that
// has nothing to show. The only safe recovery is Reset.
func (s Session) CheckIntegrity() error {
	if s.Phase == PhaseConfiguring {
		return nil
	}
	if _, ok := s.Current(); !ok {
		return ErrIntegrity
	}
	return nil
}

func (s Session) requireActive(action string) error {
	if s.Phase != PhaseActive {
		return fmt.Errorf("%s: %w", action, ErrWrongPhase)
	}
	if err := s.CheckIntegrity(); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// Answer stores text as the answer to the current question.
func (s Session) Answer(text string) (Session, error) {
	if err := s.requireActive("answer"); err != nil {
		return s, err
	}
	q, _ := s.Current()
	next := s.clone()
	next.Answers[q.ID] = text
	return next, nil
}

// RecordFeedback stores the verdict for question id.
func (s Session) RecordFeedback(id string, ev model.Evaluation) (Session, error) {
	if err := s.requireActive("record feedback"); err != nil {
		return s, err
	}
	if !slices.ContainsFunc(s.Questions, func(q model.Question) bool { return q.ID == id }) {
		return s, fmt.Errorf("record feedback for %q: %w", id, ErrUnknownQuestion)
	}
	next := s.clone()
	next.Feedback[id] = ev
	return next, nil
}

// NeedsCheck reports whether the current question must be checked before
// the user may move forward.
func (s Session) NeedsCheck() bool {
	q, ok := s.Current()
	if !ok || !q.Type.OpenEnded() {
		return false
	}
	_, has := s.Feedback[q.ID]
	return !has
}

// Next advances the cursor, or moves to results from the last question.
// Open-ended questions must have feedback first.
func (s Session) Next() (Session, error) {
	if err := s.requireActive("next"); err != nil {
		return s, err
	}
	if s.NeedsCheck() {
		return s, ErrFeedbackRequired
	}
	if s.CurrentIndex < len(s.Questions)-1 {
		next := s.clone()
		next.CurrentIndex++
		return next, nil
	}
	return s.finish(), nil
}

// Previous moves the cursor back one question, stopping at the first.
func (s Session) Previous() (Session, error) {
	if err := s.requireActive("previous"); err != nil {
		return s, err
	}
	next := s.clone()
	if next.CurrentIndex > 0 {
		next.CurrentIndex--
	}
	return next, nil
}

// ShowResults ends the active run from any question.
func (s Session) ShowResults() (Session, error) {
	if err := s.requireActive("show results"); err != nil {
		return s, err
	}
	return s.finish(), nil
}

// finish enters results. Answered closed-form questions without a verdict
// are checked locally so they count towards the score.
func (s Session) finish() Session {
	next := s.clone()
	for _, q := range next.Questions {
		if !q.Type.ClosedForm() {
			continue
		}
		if _, has := next.Feedback[q.ID]; has {
			continue
		}
		answer, answered := next.Answers[q.ID]
		if !answered || strings.TrimSpace(answer) == "" {
			continue
		}
		next.Feedback[q.ID] = evaluate.ClosedForm(answer, q.CorrectAnswer.Primary())
	}
	next.Phase = PhaseResults
	return next
}

// Review returns from results to the question view. No data changes.
func (s Session) Review() (Session, error) {
	if s.Phase != PhaseResults {
		return s, fmt.Errorf("review: %w", ErrWrongPhase)
	}
	if err := s.CheckIntegrity(); err != nil {
		return s, fmt.Errorf("review: %w", err)
	}
	next := s.clone()
	next.Phase = PhaseActive
	return next, nil
}

// Reset discards the run and returns to configuring. The identity and the
// last configuration are kept so the form can be pre-filled.
func (s Session) Reset() Session {
	return Session{
		ID:       s.ID,
		Config:   s.Config,
		Answers:  map[string]string{},
		Feedback: map[string]model.Evaluation{},
		Phase:    PhaseConfiguring,
	}
}

// Score aggregates stored feedback. It is computed on demand and never stored.
func (s Session) Score() model.Score {
	var total float64
	maxScore := 0
	for _, q := range s.Questions {
		if ev, ok := s.Feedback[q.ID]; ok {
			total += ev.Score
		}
		maxScore += q.Marks
	}
	percentage := 0
	if maxScore > 0 {
		percentage = int(math.Round(total / float64(maxScore) * 100))
	}
	return model.Score{TotalScore: total, MaxScore: maxScore, Percentage: percentage}
}

// Results builds the per-question results view.
func (s Session) Results() model.SessionResults {
	rows := make([]model.QuestionResult, 0, len(s.Questions))
	for i, q := range s.Questions {
		answer, answered := s.Answers[q.ID]
		row := model.QuestionResult{
			Number:     i + 1,
			QuestionID: q.ID,
			Text:       q.Text,
			Type:       q.Type,
			Marks:      q.Marks,
			Answer:     answer,
			Answered:   answered && strings.TrimSpace(answer) != "",
		}
		if ev, ok := s.Feedback[q.ID]; ok {
			row.Score = ev.Score
			row.IsCorrect = ev.IsCorrect
			row.Feedback = ev.Feedback
		}
		rows = append(rows, row)
	}
	return model.SessionResults{Score: s.Score(), Questions: rows}
}
