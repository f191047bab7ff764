package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmcleod/mathquiz/quiz"
)

type createQuizRequest struct {
	Questions   []string `json:"questions"`
	UserAnswers []*int   `json:"userAnswers"`
}

type editQuizRequest struct {
	ID          int    `json:"id"`
	UserAnswers []*int `json:"userAnswers"`
}

// ListQuizzes fetches the user's quizzes and replaces the collection.
func (c *Client) ListQuizzes(ctx context.Context) ([]quiz.Quiz, error) {
	var quizzes []quiz.Quiz
	if err := c.authorized(ctx, http.MethodGet, "/quiz", nil, &quizzes); err != nil {
		return nil, err
	}
	c.quizzes.Replace(quizzes)
	return c.quizzes.All(), nil
}

// SyncQuizzes returns the collection, fetching it first when it is empty
// or force is set.
func (c *Client) SyncQuizzes(ctx context.Context, force bool) ([]quiz.Quiz, error) {
	if !force && c.quizzes.Len() > 0 {
		return c.quizzes.All(), nil
	}
	return c.ListQuizzes(ctx)
}

// GetQuiz fetches one quiz and stores it in the collection.
func (c *Client) GetQuiz(ctx context.Context, id int) (quiz.Quiz, error) {
	var q quiz.Quiz
	if err := c.authorized(ctx, http.MethodGet, fmt.Sprintf("/quiz/%d", id), nil, &q); err != nil {
		return quiz.Quiz{}, err
	}
	c.quizzes.Add(q)
	return q.Clone(), nil
}

// GenerateQuestions asks the service for n new questions. The collection
// is not changed.
func (c *Client) GenerateQuestions(ctx context.Context, n int) ([]string, error) {
	var questions []string
	if err := c.authorized(ctx, http.MethodGet, fmt.Sprintf("/quiz/questions/%d", n), nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// CreateQuiz submits answers to questions and appends the graded quiz to
// the collection.
func (c *Client) CreateQuiz(ctx context.Context, questions []string, userAnswers []*int) (quiz.Quiz, error) {
	var q quiz.Quiz
	req := createQuizRequest{Questions: questions, UserAnswers: userAnswers}
	if err := c.authorized(ctx, http.MethodPost, "/quiz", req, &q); err != nil {
		return quiz.Quiz{}, err
	}
	c.quizzes.Add(q)
	return q.Clone(), nil
}

// EditQuiz replaces the answers of quiz id and stores the regraded quiz.
func (c *Client) EditQuiz(ctx context.Context, id int, userAnswers []*int) (quiz.Quiz, error) {
	var q quiz.Quiz
	req := editQuizRequest{ID: id, UserAnswers: userAnswers}
	if err := c.authorized(ctx, http.MethodPatch, fmt.Sprintf("/quiz/%d", id), req, &q); err != nil {
		return quiz.Quiz{}, err
	}
	c.quizzes.Edit(q)
	return q.Clone(), nil
}

// DeleteQuiz deletes quiz id and removes it from the collection.
func (c *Client) DeleteQuiz(ctx context.Context, id int) error {
	if err := c.authorized(ctx, http.MethodDelete, fmt.Sprintf("/quiz/%d", id), nil, nil); err != nil {
		return err
	}
	c.quizzes.Remove(id)
	return nil
}
