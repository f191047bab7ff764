package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAuditLog = `2026/03/01 12:00:00 "POST http://localhost/account/register HTTP/1.1" 200
{"time":"2026-03-01T12:00:00Z","level":"INFO","msg":"audit","component":"audit","event":"register","remote_addr":"10.0.0.1:1","timestamp":"2026-03-01T12:00:00Z","account_id":"acct-1"}
{"time":"2026-03-01T12:00:01Z","level":"WARN","msg":"request failed","error":"boom"}
{"time":"2026-03-01T12:01:00Z","level":"INFO","msg":"audit","component":"audit","event":"password_reset_issued","remote_addr":"10.0.0.1:1","timestamp":"2026-03-01T12:01:00Z","account_id":"acct-1","email":"user@example.com","reset_code":"ABCD2345"}
{"time":"2026-03-01T12:02:00Z","level":"INFO","msg":"audit","component":"audit","event":"login_failure","remote_addr":"10.0.0.2:1","timestamp":"2026-03-01T12:02:00Z","reason":"bad credentials"}
not json {
`

func TestReadAuditEvents(t *testing.T) {
	events, err := readAuditEvents(strings.NewReader(sampleAuditLog), auditFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "register", events[0].Event)
	assert.Equal(t, "acct-1", events[0].Account)
	assert.Equal(t, "2026-03-01T12:00:00Z", events[0].Time)
	assert.Equal(t, "", events[2].Account)
}

func TestReadAuditEventsFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter auditFilter
		want   []string
	}{
		{"event", auditFilter{event: "login_failure"}, []string{"login_failure"}},
		{"account", auditFilter{account: "acct-1"}, []string{"register", "password_reset_issued"}},
		{"email is case insensitive", auditFilter{email: "USER@example.com"}, []string{"password_reset_issued"}},
		{"no match", auditFilter{event: "logout"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := readAuditEvents(strings.NewReader(sampleAuditLog), tt.filter)
			require.NoError(t, err)
			var got []string
			for _, e := range events {
				got = append(got, e.Event)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuditRecordDetails(t *testing.T) {
	events, err := readAuditEvents(strings.NewReader(sampleAuditLog), auditFilter{event: "password_reset_issued"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "email=user@example.com remote_addr=10.0.0.1:1 reset_code=ABCD2345", events[0].details())
}

func TestPrintAuditEvents(t *testing.T) {
	var buf bytes.Buffer
	printAuditEvents(&buf, nil)
	assert.Equal(t, "No matching audit events.\n", buf.String())

	events, err := readAuditEvents(strings.NewReader(sampleAuditLog), auditFilter{event: "login_failure"})
	require.NoError(t, err)
	buf.Reset()
	printAuditEvents(&buf, events)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "TIME"))
	assert.Contains(t, lines[1], "login_failure")
	assert.Contains(t, lines[1], " - ")
	assert.Contains(t, lines[1], "reason=bad credentials")
}
