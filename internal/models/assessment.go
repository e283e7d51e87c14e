package models

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Question is one entry in an assessment's question bank, including its
// answer key. The key never leaves the server.
type Question struct {
	ID        string  `yaml:"id"`
	Prompt    string  `yaml:"prompt"`
	Type      string  `yaml:"type"` // "choice" or "text"
	Answer    string  `yaml:"answer"`
	Points    float64 `yaml:"points"`
	MaxLength int     `yaml:"max_length,omitempty"`
}

// Score returns the points awarded for a submitted value and whether it
// matched the key. Text answers are compared case-insensitively after
// trimming; choice answers must match exactly.
func (q Question) Score(value string) (float64, bool) {
	var correct bool
	if q.Type == "text" {
		correct = strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(q.Answer))
	} else {
		correct = value == q.Answer
	}
	if correct {
		return q.Points, true
	}
	return 0, false
}

// Assessment is a server-side snapshot of one assessment definition.
type Assessment struct {
	ID                 string     `yaml:"id"`
	Title              string     `yaml:"title"`
	PassingScore       float64    `yaml:"passing_score"`
	MaxDurationMinutes int        `yaml:"max_duration_minutes"`
	Questions          []Question `yaml:"questions"`
}

// MaxDuration returns the session time limit, or fallback when the
// definition does not set one.
func (a *Assessment) MaxDuration(fallback time.Duration) time.Duration {
	if a.MaxDurationMinutes <= 0 {
		return fallback
	}
	return time.Duration(a.MaxDurationMinutes) * time.Minute
}

// Question looks up a question by id.
func (a *Assessment) Question(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// MaxPoints is the sum of all question points.
func (a *Assessment) MaxPoints() float64 {
	var total float64
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// AssessmentBank holds every loaded assessment definition, keyed by id.
type AssessmentBank struct {
	byID map[string]*Assessment
}

// NewAssessmentBank builds a bank from definitions already in memory.
// Used by tests; production code loads from YAML.
func NewAssessmentBank(assessments ...*Assessment) *AssessmentBank {
	bank := &AssessmentBank{byID: make(map[string]*Assessment, len(assessments))}
	for _, a := range assessments {
		bank.byID[a.ID] = a
	}
	return bank
}

// Get returns the assessment with the given id.
func (b *AssessmentBank) Get(id string) (*Assessment, bool) {
	a, ok := b.byID[id]
	return a, ok
}

// LoadAssessmentBank reads and parses the assessments YAML file.
func LoadAssessmentBank(path string) (*AssessmentBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assessment file: %w", err)
	}

	var doc struct {
		Assessments []*Assessment `yaml:"assessments"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessment YAML: %w", err)
	}

	bank := &AssessmentBank{byID: make(map[string]*Assessment, len(doc.Assessments))}
	for _, a := range doc.Assessments {
		if a.ID == "" {
			return nil, fmt.Errorf("assessment without an id in %s", path)
		}
		if len(a.Questions) == 0 {
			return nil, fmt.Errorf("assessment %s has no questions", a.ID)
		}
		bank.byID[a.ID] = a
	}
	return bank, nil
}
