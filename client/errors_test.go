package client

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, Success, OutcomeOf(nil))
	assert.Equal(t, Unauthenticated, OutcomeOf(unauthenticatedError()))
	assert.Equal(t, NetworkError, OutcomeOf(networkError(errors.New("dial tcp: refused"))))
	assert.Equal(t, StructuredError, OutcomeOf(structuredError(400, nil)))
	assert.Equal(t, StructuredError, OutcomeOf(errors.New("something else")))

	wrapped := fmt.Errorf("listing quizzes: %w", networkError(nil))
	assert.Equal(t, NetworkError, OutcomeOf(wrapped))
}

func TestErrorIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(networkError(cause))

	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrStructured)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, cause)

	assert.ErrorIs(t, structuredError(404, nil), ErrStructured)
	assert.ErrorIs(t, unauthenticatedError(), ErrUnauthenticated)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, NetworkErrorMessage, networkError(nil).Error())
	assert.Equal(t, "Unauthorized\ntitle: Unauthorized", structuredError(401, []byte(`{"title":"Unauthorized"}`)).Error())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
}
