package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// User-facing messages.
const (
	NotLoggedInMessage  = "You are not logged in"
	NetworkErrorMessage = "Unable to connect to server, unexpected network error encountered during server request.\nPlease check your internet connection and try again."
	UnknownErrorMessage = "Unknown error encountered during server request."

	LoginUnauthorizedMessage = "Username and password not recognised"
)

// StatusSummary returns the first line of a failure message for status.
func StatusSummary(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "The server refused to process request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusNotFound:
		return "Unable to reach/locate server"
	case http.StatusInternalServerError:
		return "The server encountered an error while processing the request"
	default:
		return "Unknown error encountered during server request"
	}
}

// LoginFailureMessage maps a failed login status to its message. The login
// endpoint sends no problem document, so the body is never consulted.
func LoginFailureMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return LoginUnauthorizedMessage
	case http.StatusNotFound:
		return StatusSummary(http.StatusNotFound)
	default:
		return UnknownErrorMessage
	}
}

// NormalizeError renders a failed response as a message: the status summary
// followed by one line per top-level member of a problem document body, in
// document order. Members named "exception" are never shown and their
// presence also hides "title" and "detail". A status of zero or less means
// no status was available.
func NormalizeError(status int, body []byte) string {
	if status <= 0 {
		return UnknownErrorMessage
	}

	lines := []string{StatusSummary(status)}
	members, ok := decodeMembers(body)
	if !ok {
		return lines[0]
	}

	hidden := map[string]bool{"exception": true}
	for _, m := range members {
		if m.name == "exception" {
			hidden["title"] = true
			hidden["detail"] = true
			break
		}
	}

	for _, m := range members {
		if hidden[m.name] {
			continue
		}
		if m.name == "errors" {
			if fields, ok := decodeMembers(m.value); ok {
				lines = append(lines, "errors:")
				for _, f := range fields {
					lines = append(lines, "- "+f.name+": "+renderValue(f.value))
				}
				continue
			}
		}
		lines = append(lines, m.name+": "+renderValue(m.value))
	}
	return strings.Join(lines, "\n")
}

func structuredError(status int, body []byte) *Error {
	return &Error{Outcome: StructuredError, Status: status, Message: NormalizeError(status, body)}
}

type member struct {
	name  string
	value json.RawMessage
}

// decodeMembers parses data as a single JSON object and returns its members
// in document order. A repeated name keeps its first position and takes the
// last value.
func decodeMembers(data []byte) ([]member, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}

	var members []member
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		name, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		if i, seen := index[name]; seen {
			members[i].value = raw
			continue
		}
		index[name] = len(members)
		members = append(members, member{name: name, value: raw})
	}

	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return members, true
}

// renderValue formats a JSON value for a message line: strings verbatim,
// arrays comma-joined with null elements empty, objects as compact JSON and
// everything else as written.
func renderValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		return s
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return string(raw)
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			if string(bytes.TrimSpace(e)) == "null" {
				continue
			}
			parts[i] = renderValue(e)
		}
		return strings.Join(parts, ",")
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return string(raw)
		}
		return buf.String()
	default:
		return string(raw)
	}
}
