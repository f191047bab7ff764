package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/mathquiz/quiz"
	"github.com/jmcleod/mathquiz/storage"
)

const (
	quizSequenceNamespace = "__quizzes"
	quizRecordType        = "QUIZ"
)

func quizNamespace(accountID string) string {
	return "quizzes:" + accountID
}

// quizIDParam parses the {id} path parameter. A malformed id can never name
// a stored quiz, so it maps to ErrQuizNotFound.
func quizIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, ErrQuizNotFound
	}
	return id, nil
}

func (a *API) loadQuiz(accountID string, id int) (quiz.Quiz, error) {
	var q quiz.Quiz
	err := storage.GetJSON(a.repo, quizNamespace(accountID), quizRecordType, strconv.Itoa(id), &q)
	if errors.Is(err, storage.ErrNotFound) {
		return q, ErrQuizNotFound
	}
	return q, err
}

func (a *API) saveQuiz(q quiz.Quiz) error {
	return storage.PutJSON(a.repo, quizNamespace(q.UserID), quizRecordType, strconv.Itoa(q.ID), q)
}

func checkAnswerRange(answers []*int) error {
	for i, ans := range answers {
		if ans != nil && (*ans < quiz.MinAnswer || *ans > quiz.MaxAnswer) {
			return fmt.Errorf("answer %d is %d, allowed range is %d to %d: %w",
				i+1, *ans, quiz.MinAnswer, quiz.MaxAnswer, quiz.ErrAnswerOutOfRange)
		}
	}
	return nil
}

// ListQuizzes handles GET /quiz, returning the caller's quizzes ordered by
// id.
func (a *API) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	ids, err := a.repo.List(quizNamespace(accountID), quizRecordType)
	if err != nil {
		a.writeInternalError(w, r, "failed to list quizzes", err)
		return
	}
	quizzes := make([]quiz.Quiz, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		q, err := a.loadQuiz(accountID, id)
		if errors.Is(err, ErrQuizNotFound) {
			// Deleted between List and Get.
			continue
		}
		if err != nil {
			a.writeInternalError(w, r, "failed to load quiz", err)
			return
		}
		quizzes = append(quizzes, q)
	}
	slices.SortFunc(quizzes, func(x, y quiz.Quiz) int { return x.ID - y.ID })
	writeJSON(w, http.StatusOK, quizzes)
}

// GetQuiz handles GET /quiz/{id}.
func (a *API) GetQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := quizIDParam(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	q, err := a.loadQuiz(accountIDFromContext(r.Context()), id)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GenerateQuestions handles GET /quiz/questions/{n}.
func (a *API) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 || n > quiz.MaxQuestionCount {
		writeValidationProblem(w, r, fieldError("count",
			fmt.Sprintf("The question count must be between 1 and %d.", quiz.MaxQuestionCount)))
		return
	}
	questions, err := quiz.GenerateQuestions(n, a.intn)
	if err != nil {
		a.writeInternalError(w, r, "failed to generate questions", err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// CreateQuiz handles POST /quiz. Correct answers and the score are
// computed here; the client only supplies questions and answers.
func (a *API) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateQuizRequest](w, r)
	if !ok {
		return
	}
	if len(req.Questions) == 0 || len(req.Questions) > quiz.MaxQuestionCount {
		writeValidationProblem(w, r, fieldError("questions",
			fmt.Sprintf("A quiz must have between 1 and %d questions.", quiz.MaxQuestionCount)))
		return
	}
	if req.UserAnswers == nil {
		req.UserAnswers = make([]*int, len(req.Questions))
	}
	if err := checkAnswerRange(req.UserAnswers); err != nil {
		a.mapError(w, r, err)
		return
	}
	correct, score, err := quiz.Grade(req.Questions, req.UserAnswers)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	seq, err := a.repo.NextSequence(quizSequenceNamespace)
	if err != nil {
		a.writeInternalError(w, r, "failed to allocate quiz id", err)
		return
	}
	accountID := accountIDFromContext(r.Context())
	q := quiz.Quiz{
		ID:               int(seq),
		CreationDateTime: a.now().UTC(),
		Questions:        req.Questions,
		UserAnswers:      req.UserAnswers,
		CorrectAnswers:   correct,
		Score:            score,
		UserID:           accountID,
	}
	if err := a.saveQuiz(q); err != nil {
		a.writeInternalError(w, r, "failed to save quiz", err)
		return
	}

	a.audit.logEvent(AuditQuizCreated, r, accountID, slog.Int("quiz_id", q.ID))
	writeJSON(w, http.StatusCreated, q)
}

// EditQuiz handles PATCH /quiz/{id}, replacing the answers and rescoring.
func (a *API) EditQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := quizIDParam(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	req, ok := decodeJSON[EditQuizRequest](w, r)
	if !ok {
		return
	}
	if req.ID != id {
		writeValidationProblem(w, r, fieldError("id", "The body id must match the path id."))
		return
	}

	accountID := accountIDFromContext(r.Context())
	q, err := a.loadQuiz(accountID, id)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if len(req.UserAnswers) != len(q.Questions) {
		a.mapError(w, r, fmt.Errorf("%w: %d answers for %d questions",
			quiz.ErrLengthMismatch, len(req.UserAnswers), len(q.Questions)))
		return
	}
	if err := checkAnswerRange(req.UserAnswers); err != nil {
		a.mapError(w, r, err)
		return
	}

	q.UserAnswers = req.UserAnswers
	q.Score = quiz.Score(q.UserAnswers, q.CorrectAnswers)
	if err := a.saveQuiz(q); err != nil {
		a.writeInternalError(w, r, "failed to save quiz", err)
		return
	}

	a.audit.logEvent(AuditQuizUpdated, r, accountID, slog.Int("quiz_id", q.ID))
	writeJSON(w, http.StatusOK, q)
}

// DeleteQuiz handles DELETE /quiz/{id}.
func (a *API) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := quizIDParam(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	accountID := accountIDFromContext(r.Context())
	if err := a.repo.Delete(quizNamespace(accountID), quizRecordType, strconv.Itoa(id)); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditQuizDeleted, r, accountID, slog.Int("quiz_id", id))
	w.WriteHeader(http.StatusNoContent)
}
