// Package catalog holds the reference tables the quiz form offers:
// boards, grade levels, subjects with their topics, and selector values.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/revision/internal/model"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidSelection is returned when a configuration names something the
// catalog rules out.
var ErrInvalidSelection = errors.New("invalid selection")

// Subject is a subject and the topics offered for it.
type Subject struct {
	Name   string   `yaml:"name" json:"name"`
	Topics []string `yaml:"topics" json:"topics"`
}

// Catalog is the set of reference tables.
type Catalog struct {
	Boards         []string  `yaml:"boards" json:"boards"`
	Levels         []string  `yaml:"levels" json:"levels"`
	Subjects       []Subject `yaml:"subjects" json:"subjects"`
	QuestionCounts []int     `yaml:"questionCounts" json:"questionCounts"`
	QuestionTypes  []string  `yaml:"questionTypes" json:"questionTypes"`
	Difficulties   []string  `yaml:"difficulties" json:"difficulties"`
}

// Default returns the built-in catalog.
func Default() (Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file, or returns the built-in catalog if path is empty.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a single YAML catalog document.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Catalog{}, fmt.Errorf("parse catalog: multiple documents are not supported")
		}
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks the catalog for internal consistency.
func (c Catalog) Validate() error {
	if len(c.Boards) == 0 {
		return errors.New("catalog: no boards")
	}
	if len(c.Levels) == 0 {
		return errors.New("catalog: no levels")
	}
	if len(c.Subjects) == 0 {
		return errors.New("catalog: no subjects")
	}
	seen := make(map[string]bool, len(c.Subjects))
	for _, s := range c.Subjects {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return errors.New("catalog: subject with empty name")
		}
		if seen[name] {
			return fmt.Errorf("catalog: duplicate subject %q", name)
		}
		seen[name] = true
	}
	for _, n := range c.QuestionCounts {
		if n <= 0 {
			return fmt.Errorf("catalog: question count %d must be positive", n)
		}
	}
	for _, t := range c.QuestionTypes {
		if t != model.PreferenceMixed && !model.QuestionType(t).Valid() {
			return fmt.Errorf("catalog: unknown question type %q", t)
		}
	}
	for _, d := range c.Difficulties {
		if d != model.PreferenceMixed && !model.Difficulty(d).Valid() {
			return fmt.Errorf("catalog: unknown difficulty %q", d)
		}
	}
	return nil
}

// SubjectNames returns the subject names in catalog order.
func (c Catalog) SubjectNames() []string {
	names := make([]string, 0, len(c.Subjects))
	for _, s := range c.Subjects {
		names = append(names, s.Name)
	}
	return names
}

// Topics returns the topics listed for subject, or nil if it is unknown.
func (c Catalog) Topics(subject string) []string {
	for _, s := range c.Subjects {
		if s.Name == subject {
			return s.Topics
		}
	}
	return nil
}

// MaxQuestionCount is the largest count the form offers.
func (c Catalog) MaxQuestionCount() int {
	if len(c.QuestionCounts) == 0 {
		return 0
	}
	return slices.Max(c.QuestionCounts)
}

// ValidateConfig rejects selections the catalog rules out. Free-text values
// for subjects the catalog does not list are accepted.
func (c Catalog) ValidateConfig(cfg model.QuizConfig) error {
	cfg = cfg.Normalized()
	if topics := c.Topics(cfg.Subject); len(topics) > 0 && !slices.Contains(topics, cfg.Topic) {
		return fmt.Errorf("%w: topic %q is not part of %s", ErrInvalidSelection, cfg.Topic, cfg.Subject)
	}
	if limit := c.MaxQuestionCount(); limit > 0 && cfg.QuestionCount > limit {
		return fmt.Errorf("%w: at most %d questions", ErrInvalidSelection, limit)
	}
	if cfg.QuestionType != model.PreferenceMixed && !model.QuestionType(cfg.QuestionType).Valid() {
		return fmt.Errorf("%w: question type %q", ErrInvalidSelection, cfg.QuestionType)
	}
	if cfg.Difficulty != model.PreferenceMixed && !model.Difficulty(cfg.Difficulty).Valid() {
		return fmt.Errorf("%w: difficulty %q", ErrInvalidSelection, cfg.Difficulty)
	}
	return nil
}

// YAML encodes the catalog.
func (c Catalog) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return buf.Bytes(), nil
}
