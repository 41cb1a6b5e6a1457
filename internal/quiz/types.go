package quiz

import (
	"fmt"
)

// Difficulty constants accepted by the generation service.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Generation service limits.
const (
	MinGeneratedQuestions = 5
	MaxGeneratedQuestions = 50
)

// DefaultDurationSeconds is the answer window applied when a quiz does not
// set one.
const DefaultDurationSeconds = 20

// Question is a single multiple-choice question. Correct is the zero-based
// index into Options.
type Question struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Correct int      `json:"correct"`
}

// Quiz is an ordered, immutable-once-started sequence of questions plus the
// per-question answer window.
type Quiz struct {
	Title           string     `json:"title"`
	Questions       []Question `json:"questions"`
	DurationSeconds int        `json:"durationSeconds"`
}

// Validate checks structural invariants before a quiz is attached to a session
// or written to the library.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz has no questions")
	}
	if q.DurationSeconds <= 0 {
		return fmt.Errorf("duration must be positive, got %d", q.DurationSeconds)
	}
	for i, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single question: at least two options and a correct index
// within bounds.
func (q Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("empty question text")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("need at least 2 options, got %d", len(q.Options))
	}
	if q.Correct < 0 || q.Correct >= len(q.Options) {
		return fmt.Errorf("correct index %d out of range [0,%d)", q.Correct, len(q.Options))
	}
	return nil
}

// ValidDifficulty reports whether the generation service accepts d.
func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}
