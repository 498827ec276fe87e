//go:build cucumber

package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/pavelanni/revision/internal/model"
)

// TestSessionFeatures runs the session lifecycle scenarios via godog.
func TestSessionFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "session",
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("..", "..", "features", "session.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeScenario wires the step definitions for the session feature.
func InitializeScenario(ctx *godog.ScenarioContext) {
	state := &sessionState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^a quiz for "([^"]*)" "([^"]*)" "([^"]*)" "([^"]*)"$`, state.givenQuiz)
	ctx.Step(`^the generated questions are:$`, state.givenQuestions)
	ctx.Step(`^the topic is cleared$`, state.clearTopic)
	ctx.Step(`^no questions were generated$`, state.noQuestions)
	ctx.Step(`^the session has started$`, state.mustStart)
	ctx.Step(`^the session starts$`, state.start)
	ctx.Step(`^I answer "([^"]*)"$`, state.answer)
	ctx.Step(`^the judge awards (\d+) marks$`, state.judge)
	ctx.Step(`^I move to the next question$`, state.transition(Session.Next))
	ctx.Step(`^I show the results$`, state.transition(Session.ShowResults))
	ctx.Step(`^I review the questions$`, state.transition(Session.Review))
	ctx.Step(`^I reset the session$`, state.resetSession)
	ctx.Step(`^the phase is "([^"]*)"$`, state.phaseIs)
	ctx.Step(`^the current question is "([^"]*)"$`, state.currentIs)
	ctx.Step(`^the action fails with "([^"]*)"$`, state.failsWith)
	ctx.Step(`^the score is (\d+) out of (\d+) with (\d+) percent$`, state.scoreIs)
	ctx.Step(`^the session keeps its id and topic "([^"]*)"$`, state.keepsIdentity)
	ctx.Step(`^no answers are stored$`, state.noAnswers)
}

// sessionState holds the scenario state.
type sessionState struct {
	cfg       model.QuizConfig
	questions []model.Question
	sess      Session
	initialID string
	lastErr   error
}

func (s *sessionState) reset() {
	*s = sessionState{sess: New()}
	s.initialID = s.sess.ID
}

func (s *sessionState) givenQuiz(board, level, subject, topic string) error {
	s.cfg = model.QuizConfig{Board: board, Level: level, Subject: subject, Topic: topic}
	return nil
}

func (s *sessionState) givenQuestions(table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("question table needs a header and at least one row")
	}
	col := map[string]int{}
	for i, cell := range table.Rows[0].Cells {
		col[cell.Value] = i
	}
	for _, name := range []string{"id", "type", "marks", "answer"} {
		if _, ok := col[name]; !ok {
			return fmt.Errorf("question table is missing column %q", name)
		}
	}
	s.questions = nil
	for _, row := range table.Rows[1:] {
		value := func(name string) string { return row.Cells[col[name]].Value }
		marks, err := strconv.Atoi(value("marks"))
		if err != nil {
			return fmt.Errorf("marks: %w", err)
		}
		q := model.Question{
			ID:            value("id"),
			Type:          model.QuestionType(value("type")),
			Text:          "Question " + value("id"),
			CorrectAnswer: model.SingleAnswer(value("answer")),
			Difficulty:    model.DifficultyMedium,
			Marks:         marks,
			Tags:          []string{},
		}
		if q.Type == model.TypeMultipleChoice {
			q.Options = []string{value("answer"), "Joule", "Watt"}
		}
		s.questions = append(s.questions, q)
	}
	return nil
}

func (s *sessionState) clearTopic() error {
	s.cfg.Topic = ""
	return nil
}

func (s *sessionState) noQuestions() error {
	s.questions = nil
	return nil
}

func (s *sessionState) start() error {
	next, err := s.sess.Start(s.cfg, s.questions)
	s.sess, s.lastErr = next, err
	return nil
}

func (s *sessionState) mustStart() error {
	if err := s.start(); err != nil {
		return err
	}
	return s.lastErr
}

func (s *sessionState) answer(text string) error {
	next, err := s.sess.Answer(text)
	if err != nil {
		return err
	}
	s.sess = next
	return nil
}

func (s *sessionState) judge(marks int) error {
	q, ok := s.sess.Current()
	if !ok {
		return fmt.Errorf("no current question")
	}
	next, err := s.sess.RecordFeedback(q.ID, model.Evaluation{
		IsCorrect: marks > 0,
		Feedback:  "Judged",
		Score:     float64(marks),
	})
	if err != nil {
		return err
	}
	s.sess = next
	return nil
}

// transition applies fn and keeps its error for a later assertion; the
// session is left unchanged on failure.
func (s *sessionState) transition(fn func(Session) (Session, error)) func() error {
	return func() error {
		next, err := fn(s.sess)
		s.lastErr = err
		if err == nil {
			s.sess = next
		}
		return nil
	}
}

func (s *sessionState) resetSession() error {
	s.sess = s.sess.Reset()
	return nil
}

func (s *sessionState) phaseIs(want string) error {
	if string(s.sess.Phase) != want {
		return fmt.Errorf("phase = %q, want %q", s.sess.Phase, want)
	}
	return nil
}

func (s *sessionState) currentIs(id string) error {
	q, ok := s.sess.Current()
	if !ok || q.ID != id {
		return fmt.Errorf("current question = %q (ok=%v), want %q", q.ID, ok, id)
	}
	return nil
}

func (s *sessionState) failsWith(msg string) error {
	if s.lastErr == nil {
		return fmt.Errorf("expected error %q, got none", msg)
	}
	if !strings.Contains(s.lastErr.Error(), msg) {
		return fmt.Errorf("error = %q, want it to contain %q", s.lastErr, msg)
	}
	return nil
}

func (s *sessionState) scoreIs(total, maxScore, percentage int) error {
	got := s.sess.Score()
	if got.TotalScore != float64(total) || got.MaxScore != maxScore || got.Percentage != percentage {
		return fmt.Errorf("score = %+v, want %d/%d (%d%%)", got, total, maxScore, percentage)
	}
	return nil
}

func (s *sessionState) keepsIdentity(topic string) error {
	if s.sess.ID != s.initialID {
		return fmt.Errorf("id changed from %q to %q", s.initialID, s.sess.ID)
	}
	if s.sess.Config.Topic != topic {
		return fmt.Errorf("topic = %q, want %q", s.sess.Config.Topic, topic)
	}
	return nil
}

func (s *sessionState) noAnswers() error {
	if len(s.sess.Answers) != 0 || len(s.sess.Feedback) != 0 || len(s.sess.Questions) != 0 {
		return fmt.Errorf("reset left state behind: %+v", s.sess)
	}
	return nil
}
