// Package generate turns a quiz configuration into normalized questions by
// way of the LLM provider.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/revision/internal/llm/prompts"
	"github.com/pavelanni/revision/internal/model"
	"github.com/pavelanni/revision/internal/parse"
)

// ErrGenerationFailed wraps any provider failure.
var ErrGenerationFailed = errors.New("question generation failed")

// Outcome labels for the generation observer.
const (
	OutcomeStructured = "structured"
	OutcomeFallback   = "fallback"
	OutcomeEmpty      = "empty"
	OutcomeFailed     = "failed"
)

// Provider sends a rendered prompt and returns the raw model reply.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is the outcome of one generation request.
type Result struct {
	Questions []model.Question
	Source    parse.Source
	Raw       string
}

// Service renders prompts, calls the provider and normalizes replies.
type Service struct {
	provider Provider
	observe  func(outcome string)
}

// Option configures a Service.
type Option func(*Service)

// WithObserver registers a callback invoked once per Generate call.
func WithObserver(fn func(outcome string)) Option {
	return func(s *Service) { s.observe = fn }
}

// New creates a Service backed by p.
func New(p Provider, opts ...Option) *Service {
	s := &Service{provider: p}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces questions for cfg. A provider failure is reported as
// ErrGenerationFailed; a reply with no usable questions is not an error and
// yields an empty Result.
func (s *Service) Generate(ctx context.Context, cfg model.QuizConfig) (Result, error) {
	cfg = cfg.Normalized()
	prompt, err := prompts.BuildGeneratePrompt(cfg)
	if err != nil {
		return Result{}, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := s.Raw(ctx, prompt)
	if err != nil {
		return Result{}, err
	}

	questions, source := parse.Normalize(raw, cfg.Topic, parse.ParseFallback)
	switch source {
	case parse.SourceStructured:
		s.record(OutcomeStructured)
	case parse.SourceFallback:
		s.record(OutcomeFallback)
	default:
		s.record(OutcomeEmpty)
	}
	slog.Info("questions generated",
		"topic", cfg.Topic,
		"requested", cfg.QuestionCount,
		"got", len(questions),
		"source", source,
	)
	return Result{Questions: questions, Source: source, Raw: raw}, nil
}

// Raw sends an already rendered prompt and returns the unparsed reply.
func (s *Service) Raw(ctx context.Context, prompt string) (string, error) {
	raw, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		s.record(OutcomeFailed)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return raw, nil
}

func (s *Service) record(outcome string) {
	if s.observe != nil {
		s.observe(outcome)
	}
}
