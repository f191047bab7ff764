package quiz

import (
	"cmp"
	"slices"
)

// SortMode names a display ordering for a quiz collection.
type SortMode string

const (
	SortIDAscending     SortMode = "id_Ascending"
	SortIDDescending    SortMode = "id_Descending"
	SortScoreAscending  SortMode = "scorePercentage_Ascending"
	SortScoreDescending SortMode = "scorePercentage_Descending"
	SortDateAscending   SortMode = "dateTime_Ascending"
	SortDateDescending  SortMode = "dateTime_Descending"
)

// DefaultSortMode is newest first.
const DefaultSortMode = SortDateDescending

// SortModes lists every supported mode, default last.
var SortModes = []SortMode{
	SortIDAscending,
	SortIDDescending,
	SortScoreAscending,
	SortScoreDescending,
	SortDateAscending,
	SortDateDescending,
}

// ParseSortMode maps a user-supplied value onto a mode; unknown values fall
// back to DefaultSortMode.
func ParseSortMode(s string) SortMode {
	for _, m := range SortModes {
		if string(m) == s {
			return m
		}
	}
	return DefaultSortMode
}

// SortInPlace orders quizzes by mode using a stable sort.
func SortInPlace(quizzes []Quiz, mode SortMode) {
	slices.SortStableFunc(quizzes, compareFunc(mode))
}

func compareFunc(mode SortMode) func(a, b Quiz) int {
	switch mode {
	case SortIDAscending:
		return func(a, b Quiz) int { return cmp.Compare(a.ID, b.ID) }
	case SortIDDescending:
		return func(a, b Quiz) int { return cmp.Compare(b.ID, a.ID) }
	case SortScoreAscending:
		return func(a, b Quiz) int { return cmp.Compare(a.ScorePercentage(), b.ScorePercentage()) }
	case SortScoreDescending:
		return func(a, b Quiz) int { return cmp.Compare(b.ScorePercentage(), a.ScorePercentage()) }
	case SortDateAscending:
		return func(a, b Quiz) int { return a.CreationDateTime.Compare(b.CreationDateTime) }
	default:
		return func(a, b Quiz) int { return b.CreationDateTime.Compare(a.CreationDateTime) }
	}
}
