package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditRegister             AuditEvent = "register"
	AuditRegisterRejected     AuditEvent = "register_rejected"
	AuditLoginSuccess         AuditEvent = "login_success"
	AuditLoginFailure         AuditEvent = "login_failure"
	AuditLoginRateLimited     AuditEvent = "login_rate_limited"
	AuditRequestRateLimited   AuditEvent = "request_rate_limited"
	AuditTokenRefreshed       AuditEvent = "token_refreshed"
	AuditTokenRefreshFailure  AuditEvent = "token_refresh_failure"
	AuditLogout               AuditEvent = "logout"
	AuditPasswordResetIssued  AuditEvent = "password_reset_issued"
	AuditPasswordReset        AuditEvent = "password_reset"
	AuditPasswordResetFailure AuditEvent = "password_reset_failure"
	AuditPasswordChanged      AuditEvent = "password_changed"
	AuditEmailChanged         AuditEvent = "email_changed"
	AuditQuizCreated          AuditEvent = "quiz_created"
	AuditQuizUpdated          AuditEvent = "quiz_updated"
	AuditQuizDeleted          AuditEvent = "quiz_deleted"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
}

func newAuditLogger(logger *slog.Logger, metrics *metricsCollector) *auditLogger {
	return &auditLogger{
		logger:  logger.With("component", "audit"),
		metrics: metrics,
	}
}

// log writes a structured audit log entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
	al.metrics.recordEvent(event)
}

// logEvent is a convenience for events with an account ID. The account ID
// is the opaque account identifier, never the email address.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, accountID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("account_id", accountID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a rejected request.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
