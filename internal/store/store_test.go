package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/revision/internal/model"
	"github.com/pavelanni/revision/internal/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func startedSession(t *testing.T) session.Session {
	t.Helper()
	cfg := model.QuizConfig{Board: "AQA", Level: "University Level", Subject: "Economics", Topic: "Microeconomics"}
	qs := []model.Question{
		{ID: "1", Type: model.TypeShortAnswer, Text: "Define elasticity", CorrectAnswer: model.AnswerList("responsiveness", "sensitivity"), Marks: 2, Tags: []string{}},
	}
	sess, err := session.New().Start(cfg, qs)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return sess
}

func TestSessionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSession(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSession(missing) error = %v, want ErrNotFound", err)
	}

	sess := startedSession(t)
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Phase != session.PhaseActive || len(got.Questions) != 1 {
		t.Errorf("got phase %q with %d questions", got.Phase, len(got.Questions))
	}
	if !got.Questions[0].CorrectAnswer.List || got.Questions[0].CorrectAnswer.Primary() != "responsiveness" {
		t.Errorf("correctAnswer = %+v, want list form kept", got.Questions[0].CorrectAnswer)
	}

	// Saving again replaces.
	sess, _ = sess.Answer("how much demand changes")
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, _ = s.GetSession(ctx, sess.ID)
	if got.CurrentAnswer() != "how much demand changes" {
		t.Errorf("answer = %q", got.CurrentAnswer())
	}

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSession(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession after delete error = %v", err)
	}
}

func TestUpdateSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := startedSession(t)
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	updated, err := s.UpdateSession(ctx, sess.ID, func(cur session.Session) (session.Session, error) {
		return cur.Answer("x")
	})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if updated.CurrentAnswer() != "x" {
		t.Errorf("answer = %q, want x", updated.CurrentAnswer())
	}

	// A failing transition leaves the stored value alone.
	_, err = s.UpdateSession(ctx, sess.ID, func(cur session.Session) (session.Session, error) {
		return cur.Next()
	})
	if !errors.Is(err, session.ErrFeedbackRequired) {
		t.Fatalf("UpdateSession error = %v, want ErrFeedbackRequired", err)
	}
	stored, _ := s.GetSession(ctx, sess.ID)
	if stored.Phase != session.PhaseActive || stored.CurrentAnswer() != "x" {
		t.Errorf("stored session changed: %+v", stored)
	}

	if _, err := s.UpdateSession(ctx, "missing", func(cur session.Session) (session.Session, error) {
		return cur, nil
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSession(missing) error = %v", err)
	}
}

func TestCountAndCleanupSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SaveSession(ctx, session.New()); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSession(ctx, startedSession(t)); err != nil {
		t.Fatal(err)
	}

	counts, err := s.CountSessions(ctx)
	if err != nil {
		t.Fatalf("CountSessions: %v", err)
	}
	if counts[session.PhaseConfiguring] != 1 || counts[session.PhaseActive] != 1 {
		t.Errorf("counts = %v", counts)
	}

	n, err := s.CleanupIdleSessions(ctx, time.Hour)
	if err != nil || n != 0 {
		t.Errorf("CleanupIdleSessions(1h) = %d, %v; want nothing removed", n, err)
	}
	n, err = s.CleanupIdleSessions(ctx, -time.Minute)
	if err != nil || n != 2 {
		t.Errorf("CleanupIdleSessions(-1m) = %d, %v; want 2 removed", n, err)
	}
}

func TestExchanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, ex := range []model.Exchange{
		{Kind: model.ExchangeGenerate, Model: "gpt-4o-mini", Prompt: "p1", Response: "r1", Duration: 1500 * time.Millisecond},
		{Kind: model.ExchangeJudge, Model: "judge", Prompt: "p2", Error: "timeout"},
		{Kind: model.ExchangeGenerate, Model: "gpt-4o-mini", Prompt: "p3", Response: "r3"},
	} {
		if err := s.RecordExchange(ctx, ex); err != nil {
			t.Fatalf("RecordExchange: %v", err)
		}
	}

	tests := []struct {
		name      string
		kind      string
		limit     int
		wantCount int
		wantFirst string
	}{
		{"all", "", 0, 3, "p3"},
		{"generate only", model.ExchangeGenerate, 0, 2, "p3"},
		{"judge only", model.ExchangeJudge, 0, 1, "p2"},
		{"limited", "", 1, 1, "p3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListExchanges(ctx, tt.kind, tt.limit)
			if err != nil {
				t.Fatalf("ListExchanges: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("len = %d, want %d", len(got), tt.wantCount)
			}
			if got[0].Prompt != tt.wantFirst {
				t.Errorf("first prompt = %q, want %q", got[0].Prompt, tt.wantFirst)
			}
		})
	}

	all, _ := s.ListExchanges(ctx, "", 0)
	if all[2].Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", all[2].Duration)
	}
	if all[1].Error != "timeout" {
		t.Errorf("error = %q, want timeout", all[1].Error)
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}
