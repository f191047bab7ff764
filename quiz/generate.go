package quiz

import (
	"fmt"
	"regexp"
	"strconv"
)

// MaxQuestionCount bounds a single generation request.
const MaxQuestionCount = 50

var questionPattern = regexp.MustCompile(`^(\d+)([+\-*])(\d+)$`)

// Intn returns a uniform integer in [0, n).
type Intn func(n int) (int, error)

// GenerateQuestions builds n questions. Addition and subtraction use
// operands up to 50; multiplication uses operands up to 12.
func GenerateQuestions(n int, intn Intn) ([]string, error) {
	if n < 1 || n > MaxQuestionCount {
		return nil, fmt.Errorf("question count must be between 1 and %d, got %d", MaxQuestionCount, n)
	}
	ops := []byte{'+', '-', '*'}
	out := make([]string, n)
	for i := range out {
		o, err := intn(len(ops))
		if err != nil {
			return nil, err
		}
		limit := 51
		if ops[o] == '*' {
			limit = 13
		}
		a, err := intn(limit)
		if err != nil {
			return nil, err
		}
		b, err := intn(limit)
		if err != nil {
			return nil, err
		}
		out[i] = fmt.Sprintf("%d%c%d", a, ops[o], b)
	}
	return out, nil
}

// Evaluate computes the answer of a generated question.
func Evaluate(question string) (int, error) {
	m := questionPattern.FindStringSubmatch(question)
	if m == nil {
		return 0, fmt.Errorf("%q: %w", question, ErrInvalidQuestion)
	}
	a, errA := strconv.Atoi(m[1])
	b, errB := strconv.Atoi(m[3])
	if errA != nil || errB != nil {
		return 0, fmt.Errorf("%q: %w", question, ErrInvalidQuestion)
	}
	switch m[2] {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	default:
		return a * b, nil
	}
}

// Grade evaluates every question and scores the answers against them.
func Grade(questions []string, userAnswers []*int) (correct []int, score int, err error) {
	if len(userAnswers) != len(questions) {
		return nil, 0, fmt.Errorf("%w: %d answers for %d questions", ErrLengthMismatch, len(userAnswers), len(questions))
	}
	correct = make([]int, len(questions))
	for i, q := range questions {
		if correct[i], err = Evaluate(q); err != nil {
			return nil, 0, err
		}
	}
	return correct, Score(userAnswers, correct), nil
}
