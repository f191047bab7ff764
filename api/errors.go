package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jmcleod/mathquiz/quiz"
	"github.com/jmcleod/mathquiz/storage"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrQuizNotFound    = errors.New("quiz not found")
)

const validationTitle = "One or more validation errors occurred."

// ProblemDetails is an RFC 9457 problem document. It is the body of every
// failure response except a failed login.
type ProblemDetails struct {
	Type    string              `json:"type"`
	Title   string              `json:"title"`
	Status  int                 `json:"status"`
	Detail  string              `json:"detail,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	TraceID string              `json:"traceId,omitempty"`
}

// validationError collects field-level messages for a 400 response.
type validationError map[string][]string

func (v validationError) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + strings.Join(v[k], ", ")
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v validationError) add(field, msg string) {
	v[field] = append(v[field], msg)
}

func fieldError(field, msg string) validationError {
	return validationError{field: {msg}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func problemFor(r *http.Request, status int, detail string) ProblemDetails {
	return ProblemDetails{
		Type:    fmt.Sprintf("https://tools.ietf.org/html/rfc9110#section-15.%s", rfcSection(status)),
		Title:   http.StatusText(status),
		Status:  status,
		Detail:  detail,
		TraceID: chimw.GetReqID(r.Context()),
	}
}

func rfcSection(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "5.1"
	case http.StatusUnauthorized:
		return "5.2"
	case http.StatusNotFound:
		return "5.5"
	case http.StatusMethodNotAllowed:
		return "5.6"
	case http.StatusTooManyRequests:
		return "5.30"
	default:
		return "6.1"
	}
}

func writeProblemDoc(w http.ResponseWriter, p ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblemDoc(w, problemFor(r, status, detail))
}

func writeValidationProblem(w http.ResponseWriter, r *http.Request, errs validationError) {
	p := problemFor(r, http.StatusBadRequest, "")
	p.Title = validationTitle
	p.Errors = errs
	writeProblemDoc(w, p)
}

// writeInternalError logs err and sends a 500 problem without its text.
func (a *API) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.logger.LogAttrs(r.Context(), slog.LevelError, msg,
		slog.String("error", err.Error()),
		slog.String("request_id", chimw.GetReqID(r.Context())))
	writeProblem(w, r, http.StatusInternalServerError, "")
}

func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validationError
	switch {
	case errors.As(err, &verr):
		writeValidationProblem(w, r, verr)
	case errors.Is(err, ErrQuizNotFound), errors.Is(err, storage.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "")
	case errors.Is(err, quiz.ErrLengthMismatch), errors.Is(err, quiz.ErrAnswerOutOfRange):
		writeValidationProblem(w, r, fieldError("userAnswers", err.Error()))
	case errors.Is(err, quiz.ErrInvalidQuestion):
		writeValidationProblem(w, r, fieldError("questions", err.Error()))
	case errors.Is(err, ErrAccountNotFound):
		writeProblem(w, r, http.StatusUnauthorized, "")
	default:
		a.writeInternalError(w, r, "request failed", err)
	}
}

const maxBodySize = 64 << 10

// decodeJSON reads a JSON request body into T, answering 400 itself when
// the body is missing or malformed.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeValidationProblem(w, r, fieldError("body", "A non-empty request body with valid JSON is required."))
		return v, false
	}
	return v, true
}
