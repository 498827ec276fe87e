// Package parse turns raw model output into canonical quiz questions.
package parse

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/pavelanni/revision/internal/model"
)

// ParseStructured interprets raw as a JSON object {"questions": [...]} and
// normalizes each usable entry. It never fails: malformed input yields an
// empty result and malformed entries are dropped.
func ParseStructured(raw, topicHint string) []model.Question {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &envelope); err != nil {
		slog.Debug("structured parse: not a JSON object", "error", err)
		return nil
	}
	list, ok := envelope["questions"]
	if !ok {
		slog.Debug("structured parse: no questions field")
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(list, &entries); err != nil {
		slog.Debug("structured parse: questions is not an array", "error", err)
		return nil
	}

	questions := make([]model.Question, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	index := 0
	for _, entry := range entries {
		c, ok := decodeCandidate(entry)
		if !ok {
			continue
		}
		q := c.normalize(index, topicHint)
		index++
		if !q.Valid() {
			slog.Debug("structured parse: dropping invalid question", "id", q.ID, "type", q.Type)
			continue
		}
		q.ID = uniqueID(q.ID, index-1, seen)
		questions = append(questions, q)
	}
	return questions
}

// uniqueID returns id unless an earlier question already has it. A repeated
// id is replaced by the entry's position, suffixed if that is taken too.
func uniqueID(id string, index int, seen map[string]bool) string {
	if seen[id] {
		slog.Debug("structured parse: duplicate question id", "id", id)
		id = strconv.Itoa(index + 1)
	}
	for base, n := id, 2; seen[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	seen[id] = true
	return id
}

// candidate is a raw question object that has string-typed question and type fields.
type candidate struct {
	fields map[string]json.RawMessage
	text   string
	qtype  string
}

// decodeCandidate applies the usability predicate: the entry must be an
// object whose "question" and "type" fields are present and strings.
func decodeCandidate(entry json.RawMessage) (candidate, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return candidate{}, false
	}
	text, ok := stringField(fields, "question")
	if !ok {
		return candidate{}, false
	}
	qtype, ok := stringField(fields, "type")
	if !ok {
		return candidate{}, false
	}
	return candidate{fields: fields, text: text, qtype: qtype}, true
}

func (c candidate) normalize(index int, topicHint string) model.Question {
	q := model.Question{
		ID:         c.id(index),
		Type:       model.QuestionType(strings.ToLower(strings.TrimSpace(c.qtype))),
		Text:       strings.TrimSpace(c.text),
		Difficulty: model.DifficultyMedium,
		TopicID:    model.GeneratedTopicID,
	}

	if raw, ok := c.fields["correctAnswer"]; ok {
		if err := json.Unmarshal(raw, &q.CorrectAnswer); err != nil {
			slog.Debug("structured parse: unusable correctAnswer", "id", q.ID, "error", err)
		}
	}
	if s, ok := stringField(c.fields, "explanation"); ok {
		q.Explanation = s
	}
	if s, ok := stringField(c.fields, "difficulty"); ok {
		if d := model.Difficulty(strings.ToLower(strings.TrimSpace(s))); d.Valid() {
			q.Difficulty = d
		}
	}

	q.Marks = model.DefaultMarks(q.Type)
	if raw, ok := c.fields["marks"]; ok {
		var marks float64
		if err := json.Unmarshal(raw, &marks); err == nil {
			if m := int(math.Round(marks)); m > 0 {
				q.Marks = m
			}
		}
	}

	if q.Type == model.TypeMultipleChoice {
		if raw, ok := c.fields["options"]; ok {
			var options []string
			if err := json.Unmarshal(raw, &options); err == nil {
				q.Options = options
			}
		}
	}

	q.Tags = defaultTags(topicHint)
	if raw, ok := c.fields["tags"]; ok {
		var tags []string
		if err := json.Unmarshal(raw, &tags); err == nil && tags != nil {
			q.Tags = tags
		}
	}
	return q
}

// id returns the entry's own id, or its 1-based position among usable entries.
func (c candidate) id(index int) string {
	if raw, ok := c.fields["id"]; ok {
		if s, ok := stringField(c.fields, "id"); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && n != "" && n != "0" {
			return n.String()
		}
	}
	return strconv.Itoa(index + 1)
}

func defaultTags(topic string) []string {
	if strings.TrimSpace(topic) == "" {
		return []string{}
	}
	return []string{topic}
}

// stringField returns fields[key] if it is a JSON string.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// stripCodeFence removes a surrounding ``` or ```json fence if the model added one.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
