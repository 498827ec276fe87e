package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	appI18n "github.com/pavelanni/revision/internal/i18n"
	"github.com/pavelanni/revision/internal/model"
	"github.com/pavelanni/revision/internal/session"
	"github.com/pavelanni/revision/internal/store"
)

// questionView is a question as the client sees it. The answer key and
// explanation are revealed only once the question has a verdict.
type questionView struct {
	ID            string               `json:"id"`
	Type          model.QuestionType   `json:"type"`
	Text          string               `json:"question"`
	Options       []string             `json:"options,omitempty"`
	Marks         int                  `json:"marks"`
	Difficulty    model.Difficulty     `json:"difficulty"`
	Tags          []string             `json:"tags"`
	CorrectAnswer *model.CorrectAnswer `json:"correctAnswer,omitempty"`
	Explanation   string               `json:"explanation,omitempty"`
}

type sessionView struct {
	ID             string                `json:"id"`
	Phase          session.Phase         `json:"phase"`
	Config         model.QuizConfig      `json:"config"`
	TotalQuestions int                   `json:"totalQuestions"`
	CurrentIndex   int                   `json:"currentIndex"`
	Progress       string                `json:"progress,omitempty"`
	Question       *questionView         `json:"question,omitempty"`
	Answer         string                `json:"answer,omitempty"`
	Feedback       *model.Evaluation     `json:"feedback,omitempty"`
	NeedsCheck     bool                  `json:"needsCheck"`
	Results        *model.SessionResults `json:"results,omitempty"`
	Recovery       *recoveryView         `json:"recovery,omitempty"`
	Message        string                `json:"message,omitempty"`
}

func (h *Handler) view(r *http.Request, s session.Session) sessionView {
	v := sessionView{
		ID:             s.ID,
		Phase:          s.Phase,
		Config:         s.Config,
		TotalQuestions: len(s.Questions),
		CurrentIndex:   s.CurrentIndex,
	}
	if err := s.CheckIntegrity(); err != nil {
		v.Recovery = newRecoveryView(r)
		return v
	}

	switch s.Phase {
	case session.PhaseActive:
		q, _ := s.Current()
		qv := &questionView{
			ID:         q.ID,
			Type:       q.Type,
			Text:       q.Text,
			Options:    q.Options,
			Marks:      q.Marks,
			Difficulty: q.Difficulty,
			Tags:       q.Tags,
		}
		if ev, ok := s.CurrentFeedback(); ok {
			v.Feedback = &ev
			qv.CorrectAnswer = &q.CorrectAnswer
			qv.Explanation = q.Explanation
		}
		v.Question = qv
		v.Answer = s.CurrentAnswer()
		v.NeedsCheck = s.NeedsCheck()
		v.Progress = appI18n.Td(r.Context(), "QuestionOf", map[string]any{
			"Number": s.CurrentIndex + 1,
			"Total":  len(s.Questions),
		})
	case session.PhaseResults:
		res := s.Results()
		v.Results = &res
	}
	return v
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.currentSession(r.Context(), r)
	if errors.Is(err, store.ErrNotFound) {
		sess, err = h.newSession(w, r)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, sess))
}

// handleStartSession validates the configuration, generates questions and
// starts a new run. Whatever the client had before is discarded.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cfg model.QuizConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := session.ValidateConfig(cfg); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.ValidateConfig(cfg); err != nil {
		h.writeError(w, r, err)
		return
	}

	base, err := h.currentSession(ctx, r)
	switch {
	case errors.Is(err, store.ErrNotFound):
		base = session.New()
	case err != nil:
		h.writeError(w, r, err)
		return
	}
	base = base.Reset()

	res, err := h.gen.Generate(ctx, cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	started, err := base.Start(cfg, res.Questions)
	if err != nil {
		slog.Warn("no usable questions in reply", "session", base.ID, "source", res.Source)
		slog.Debug("raw generation reply", "content", res.Raw)
		h.writeError(w, r, err)
		return
	}

	if err := h.store.SaveSession(ctx, started); err != nil {
		h.writeError(w, r, fmt.Errorf("save session: %w", err))
		return
	}
	if err := h.setSessionCookie(w, r, started.ID); err != nil {
		h.writeError(w, r, fmt.Errorf("set cookie: %w", err))
		return
	}

	slog.Info("session started",
		"session", started.ID,
		"subject", started.Config.Subject,
		"topic", started.Config.Topic,
		"questions", len(started.Questions),
		"source", res.Source,
	)
	v := h.view(r, started)
	v.Message = appI18n.Tp(ctx, "QuestionsReady", len(started.Questions))
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.update(r, func(s session.Session) (session.Session, error) {
		return s.Reset(), nil
	})
	if errors.Is(err, store.ErrNotFound) {
		sess, err = h.newSession(w, r)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, sess))
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondUpdate(w, r, func(s session.Session) (session.Session, error) {
		return s.Answer(req.Answer)
	})
}

// handleCheck evaluates the stored answer to the current question. A
// question that already has a verdict is not evaluated again.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.currentSession(ctx, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := sess.CheckIntegrity(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if sess.Phase != session.PhaseActive {
		h.writeError(w, r, fmt.Errorf("check: %w", session.ErrWrongPhase))
		return
	}
	if _, ok := sess.CurrentFeedback(); ok {
		writeJSON(w, http.StatusOK, h.view(r, sess))
		return
	}
	answer := sess.CurrentAnswer()
	if strings.TrimSpace(answer) == "" {
		h.writeError(w, r, session.ErrNoAnswer)
		return
	}

	q, _ := sess.Current()
	ev := h.eval.Evaluate(ctx, q, answer)
	h.respondUpdate(w, r, func(s session.Session) (session.Session, error) {
		// The session may have been restarted or edited while the judge ran.
		if !stillPending(s, sess.ID, q, answer) {
			return s, fmt.Errorf("check: question changed during evaluation: %w", session.ErrWrongPhase)
		}
		return s.RecordFeedback(q.ID, ev)
	})
}

// stillPending reports whether s is the same run, with q unchanged and still
// holding the answer that was evaluated.
func stillPending(s session.Session, id string, q model.Question, answer string) bool {
	if s.ID != id || s.Phase != session.PhaseActive || s.Answers[q.ID] != answer {
		return false
	}
	i := slices.IndexFunc(s.Questions, func(c model.Question) bool { return c.ID == q.ID })
	return i >= 0 && s.Questions[i].Text == q.Text && s.Questions[i].Type == q.Type
}

type transitionFunc func(session.Session) (session.Session, error)

var (
	sessionNext        transitionFunc = session.Session.Next
	sessionPrevious    transitionFunc = session.Session.Previous
	sessionReview      transitionFunc = session.Session.Review
	sessionShowResults transitionFunc = session.Session.ShowResults
)

func (h *Handler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respondUpdate(w, r, fn)
	}
}

func (h *Handler) update(r *http.Request, fn transitionFunc) (session.Session, error) {
	id := h.cookieSessionID(r)
	if id == "" {
		return session.Session{}, store.ErrNotFound
	}
	return h.store.UpdateSession(r.Context(), id, fn)
}

func (h *Handler) respondUpdate(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	sess, err := h.update(r, fn)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, sess))
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	sess, err := h.currentSession(r.Context(), r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sess.Phase != session.PhaseResults {
		h.writeError(w, r, fmt.Errorf("results: %w", session.ErrWrongPhase))
		return
	}
	writeJSON(w, http.StatusOK, sess.Results())
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	sess, err := h.currentSession(r.Context(), r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Score())
}
