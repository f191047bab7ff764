// Package quiz defines the arithmetic quiz model shared by the client, the
// reference backend and the CLI.
package quiz

import (
	"fmt"
	"slices"
	"time"
)

// DefaultQuestionCount is the number of questions generated for a new quiz.
const DefaultQuestionCount = 10

// Quiz is one attempt at a set of generated questions. UserAnswers holds nil
// for unanswered questions.
type Quiz struct {
	ID               int       `json:"id"`
	CreationDateTime time.Time `json:"creationDateTime"`
	Questions        []string  `json:"questions"`
	UserAnswers      []*int    `json:"userAnswers"`
	CorrectAnswers   []int     `json:"correctAnswers"`
	Score            int       `json:"score"`
	UserID           string    `json:"userId"`
}

// Validate checks the structural invariants of a quiz.
func (q Quiz) Validate() error {
	if len(q.UserAnswers) != len(q.Questions) {
		return fmt.Errorf("%w: %d answers for %d questions", ErrLengthMismatch, len(q.UserAnswers), len(q.Questions))
	}
	if len(q.CorrectAnswers) != len(q.Questions) {
		return fmt.Errorf("%w: %d correct answers for %d questions", ErrLengthMismatch, len(q.CorrectAnswers), len(q.Questions))
	}
	return nil
}

// ScorePercentage returns the score as a percentage of the question count.
func (q Quiz) ScorePercentage() float64 {
	if len(q.Questions) == 0 {
		return 0
	}
	return float64(q.Score) / float64(len(q.Questions)) * 100
}

// Answered reports how many questions have an answer.
func (q Quiz) Answered() int {
	n := 0
	for _, a := range q.UserAnswers {
		if a != nil {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers cannot alias store-owned slices.
func (q Quiz) Clone() Quiz {
	cp := q
	cp.Questions = slices.Clone(q.Questions)
	cp.CorrectAnswers = slices.Clone(q.CorrectAnswers)
	if q.UserAnswers != nil {
		cp.UserAnswers = make([]*int, len(q.UserAnswers))
		for i, a := range q.UserAnswers {
			if a != nil {
				v := *a
				cp.UserAnswers[i] = &v
			}
		}
	}
	return cp
}

// Score counts the positions where the user's answer equals the correct one.
func Score(userAnswers []*int, correctAnswers []int) int {
	score := 0
	for i, a := range userAnswers {
		if i < len(correctAnswers) && a != nil && *a == correctAnswers[i] {
			score++
		}
	}
	return score
}
