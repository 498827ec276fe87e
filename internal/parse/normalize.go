package parse

import (
	"log/slog"

	"github.com/pavelanni/revision/internal/model"
)

// Source says which parser produced a question set.
type Source string

const (
	SourceStructured Source = "structured"
	SourceFallback   Source = "fallback"
	SourceNone       Source = "none"
)

// FallbackFunc parses raw text that was not usable as structured JSON.
type FallbackFunc func(raw string) []model.Question

// Normalize runs the structured parser and consults fallback only when it
// yields nothing. The fallback's result, possibly empty, is final.
func Normalize(raw, topic string, fallback FallbackFunc) ([]model.Question, Source) {
	if questions := ParseStructured(raw, topic); len(questions) > 0 {
		return questions, SourceStructured
	}
	slog.Debug("structured parse produced no questions, trying fallback")
	if fallback == nil {
		return nil, SourceNone
	}
	questions := fallback(raw)
	if len(questions) == 0 {
		return nil, SourceNone
	}
	return questions, SourceFallback
}

// Questions is Normalize wired to ParseFallback.
func Questions(raw, topic string) []model.Question {
	questions, _ := Normalize(raw, topic, ParseFallback)
	return questions
}
