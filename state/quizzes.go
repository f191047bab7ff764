package state

import (
	"slices"

	"github.com/jmcleod/mathquiz/quiz"
)

// QuizStore holds the current user's quizzes, unique by ID. Reads return
// deep copies; subscribers receive the stored slice and must not modify it.
type QuizStore struct {
	*Store[[]quiz.Quiz]
}

// NewQuizStore returns an empty collection.
func NewQuizStore() *QuizStore {
	return &QuizStore{Store: NewStore[[]quiz.Quiz](nil)}
}

// All returns a copy of the collection in its current order.
func (s *QuizStore) All() []quiz.Quiz {
	return cloneAll(s.Get())
}

// Len returns the number of quizzes held.
func (s *QuizStore) Len() int {
	return len(s.Get())
}

// Find returns the quiz with id.
func (s *QuizStore) Find(id int) (quiz.Quiz, bool) {
	for _, q := range s.Get() {
		if q.ID == id {
			return q.Clone(), true
		}
	}
	return quiz.Quiz{}, false
}

// Replace overwrites the collection. Later duplicates of an ID are dropped.
func (s *QuizStore) Replace(quizzes []quiz.Quiz) {
	seen := make(map[int]bool, len(quizzes))
	next := make([]quiz.Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		next = append(next, q.Clone())
	}
	s.Set(next)
}

// Add appends q. An existing quiz with the same ID is replaced in place.
func (s *QuizStore) Add(q quiz.Quiz) {
	q = q.Clone()
	s.Update(func(cur []quiz.Quiz) []quiz.Quiz {
		if i := indexOf(cur, q.ID); i >= 0 {
			next := slices.Clone(cur)
			next[i] = q
			return next
		}
		return append(slices.Clone(cur), q)
	})
}

// Edit replaces the quiz whose ID matches q.ID. It is a no-op when absent.
func (s *QuizStore) Edit(q quiz.Quiz) {
	q = q.Clone()
	s.Update(func(cur []quiz.Quiz) []quiz.Quiz {
		i := indexOf(cur, q.ID)
		if i < 0 {
			return cur
		}
		next := slices.Clone(cur)
		next[i] = q
		return next
	})
}

// Remove deletes the quiz with id.
func (s *QuizStore) Remove(id int) {
	s.Update(func(cur []quiz.Quiz) []quiz.Quiz {
		return slices.DeleteFunc(slices.Clone(cur), func(q quiz.Quiz) bool { return q.ID == id })
	})
}

// Sort reorders the collection for display. Quiz contents are untouched.
func (s *QuizStore) Sort(mode quiz.SortMode) {
	s.Update(func(cur []quiz.Quiz) []quiz.Quiz {
		next := slices.Clone(cur)
		quiz.SortInPlace(next, mode)
		return next
	})
}

// Clear empties the collection.
func (s *QuizStore) Clear() {
	s.Set(nil)
}

func indexOf(quizzes []quiz.Quiz, id int) int {
	return slices.IndexFunc(quizzes, func(q quiz.Quiz) bool { return q.ID == id })
}

func cloneAll(quizzes []quiz.Quiz) []quiz.Quiz {
	if quizzes == nil {
		return nil
	}
	out := make([]quiz.Quiz, len(quizzes))
	for i, q := range quizzes {
		out[i] = q.Clone()
	}
	return out
}
