package quiz

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Answers outside this range are rejected on entry and by the backend.
const (
	MinAnswer = -500
	MaxAnswer = 500
)

var answerPattern = regexp.MustCompile(`^-?(0|[1-9]\d*)$`)

// ParseAnswer converts user input into an answer. Blank input is an
// unanswered question and yields nil.
func ParseAnswer(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !answerPattern.MatchString(s) {
		return nil, fmt.Errorf("%q: %w", s, ErrInvalidAnswer)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", s, ErrInvalidAnswer)
	}
	if n < MinAnswer || n > MaxAnswer {
		return nil, fmt.Errorf("%d: %w [%d, %d]", n, ErrAnswerOutOfRange, MinAnswer, MaxAnswer)
	}
	return &n, nil
}

// ParseAnswerList parses a comma-separated answer list such as "4,,-2".
// Empty entries are unanswered.
func ParseAnswerList(s string) ([]*int, error) {
	parts := strings.Split(s, ",")
	out := make([]*int, len(parts))
	for i, p := range parts {
		a, err := ParseAnswer(p)
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", i+1, err)
		}
		out[i] = a
	}
	return out, nil
}

// FormatAnswer renders an answer for display; unanswered is "-".
func FormatAnswer(a *int) string {
	if a == nil {
		return "-"
	}
	return strconv.Itoa(*a)
}

// IntPtr is a convenience for building answer slices.
func IntPtr(n int) *int {
	return &n
}
