package quiz

import "errors"

var (
	// ErrInvalidAnswer indicates an answer that is not a plain integer.
	ErrInvalidAnswer = errors.New("answer must be a whole number")
	// ErrAnswerOutOfRange indicates an answer outside [MinAnswer, MaxAnswer].
	ErrAnswerOutOfRange = errors.New("answer out of range")
	// ErrLengthMismatch indicates answer and question slices of different length.
	ErrLengthMismatch = errors.New("answer count does not match question count")
	// ErrInvalidQuestion indicates a question that is not of the form "a+b", "a-b" or "a*b".
	ErrInvalidQuestion = errors.New("invalid question")
)
