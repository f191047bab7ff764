package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmcleod/mathquiz/internal/util"
	"github.com/jmcleod/mathquiz/internal/validate"
)

// validateCredentials checks the email shape and password policy,
// collecting every failure.
func validateCredentials(email, password string) error {
	errs := validationError{}
	if err := validate.Email(email); err != nil {
		errs.add("Email", err.Error())
	}
	if err := validate.Password(password); err != nil {
		errs.add("Password", err.Error())
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// checkRequestLimit rejects the request when its client IP has made too
// many costly requests, and otherwise counts this one.
func (a *API) checkRequestLimit(w http.ResponseWriter, r *http.Request) bool {
	clientIP := a.extractClientIP(r)
	if blocked, retryAfter := a.requestLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditRequestRateLimited, r, "ip rate limited",
			slog.String("client_ip", clientIP), slog.String("path", r.URL.Path))
		writeRateLimited(w, r, retryAfter)
		return false
	}
	a.requestLimiter.record(clientIP)
	return true
}

// Register handles POST /account/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	if !a.checkRequestLimit(w, r) {
		return
	}
	req, ok := decodeJSON[CredentialsRequest](w, r)
	if !ok {
		return
	}
	if err := validateCredentials(req.Email, req.Password); err != nil {
		a.audit.logFailure(AuditRegisterRejected, r, "invalid credentials")
		a.mapError(w, r, err)
		return
	}

	rec, err := a.createAccount(req.Email, req.Password)
	if err != nil {
		var verr validationError
		if errors.As(err, &verr) {
			a.audit.logFailure(AuditRegisterRejected, r, "duplicate email")
		}
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditRegister, r, rec.ID)
	w.WriteHeader(http.StatusOK)
}

// Login handles POST /account/login. Failures answer 401 with an empty
// body.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CredentialsRequest](w, r)
	if !ok {
		return
	}

	emailKey := util.NormalizeEmail(req.Email)
	clientIP := a.extractClientIP(r)

	// Check rate limits before any expensive work: IP then email.
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "ip rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, r, retryAfter)
		return
	}
	if blocked, retryAfter := a.loginLimiter.check(emailKey); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "rate limited")
		writeRateLimited(w, r, retryAfter)
		return
	}

	recordLoginFailure := func(reason string, attrs ...slog.Attr) {
		a.ipLimiter.record(clientIP)
		a.loginLimiter.record(emailKey)
		a.audit.logFailure(AuditLoginFailure, r, reason, attrs...)
		w.WriteHeader(http.StatusUnauthorized)
	}

	rec, err := a.accountByEmail(req.Email)
	if errors.Is(err, ErrAccountNotFound) {
		recordLoginFailure("account not found")
		return
	}
	if err != nil {
		a.writeInternalError(w, r, "failed to load account", err)
		return
	}
	if !rec.verifyPassword(req.Password) {
		recordLoginFailure("invalid password", slog.String("account_id", rec.ID))
		return
	}

	// Login succeeded, clear rate-limit state.
	a.loginLimiter.reset(emailKey)
	a.ipLimiter.reset(clientIP)

	resp, err := a.issueTokens(rec.ID)
	if err != nil {
		a.writeInternalError(w, r, "failed to issue tokens", err)
		return
	}
	a.audit.logEvent(AuditLoginSuccess, r, rec.ID)
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /account/refresh. The presented pair is revoked and
// a new one issued.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RefreshRequest](w, r)
	if !ok {
		return
	}
	if req.RefreshToken == "" {
		writeValidationProblem(w, r, fieldError("refreshToken", "The refreshToken field is required."))
		return
	}

	rec, ok := a.tokens.ByRefresh(tokenDigest(req.RefreshToken))
	if !ok {
		a.audit.logFailure(AuditTokenRefreshFailure, r, "unknown refresh token")
		writeProblem(w, r, http.StatusUnauthorized, "")
		return
	}
	if !a.now().Before(rec.RefreshExpiresAt) {
		a.audit.logFailure(AuditTokenRefreshFailure, r, "refresh token expired",
			slog.String("account_id", rec.AccountID))
		a.tokens.Delete(rec)
		writeProblem(w, r, http.StatusUnauthorized, "")
		return
	}
	if _, err := a.loadAccount(rec.AccountID); err != nil {
		a.tokens.Delete(rec)
		a.mapError(w, r, err)
		return
	}

	if err := a.tokens.Delete(rec); err != nil {
		a.writeInternalError(w, r, "failed to revoke tokens", err)
		return
	}
	resp, err := a.issueTokens(rec.AccountID)
	if err != nil {
		a.writeInternalError(w, r, "failed to issue tokens", err)
		return
	}
	a.audit.logEvent(AuditTokenRefreshed, r, rec.AccountID)
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /account/logout by revoking the caller's token pair.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	rec := tokenRecordFromContext(r.Context())
	if err := a.tokens.Delete(rec); err != nil {
		a.writeInternalError(w, r, "failed to revoke tokens", err)
		return
	}
	a.audit.logEvent(AuditLogout, r, rec.AccountID)
	w.WriteHeader(http.StatusOK)
}

// ForgotPassword handles POST /account/forgotPassword. It answers 200
// whether or not the address is registered. There is no mail sender, so
// the reset code goes to the audit log.
func (a *API) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !a.checkRequestLimit(w, r) {
		return
	}
	req, ok := decodeJSON[ForgotPasswordRequest](w, r)
	if !ok {
		return
	}

	rec, err := a.accountByEmail(req.Email)
	if errors.Is(err, ErrAccountNotFound) {
		a.audit.logFailure(AuditPasswordResetFailure, r, "unknown email")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		a.writeInternalError(w, r, "failed to load account", err)
		return
	}

	code, err := util.RandomChars(resetCodeLength)
	if err != nil {
		a.writeInternalError(w, r, "failed to generate reset code", err)
		return
	}
	rec.ResetCodeDigest = tokenDigest(code)
	rec.ResetCodeExpiry = a.now().Add(resetCodeTTL)
	if err := a.saveAccount(rec); err != nil {
		a.writeInternalError(w, r, "failed to save account", err)
		return
	}

	a.audit.logEvent(AuditPasswordResetIssued, r, rec.ID,
		slog.String("email", rec.Email),
		slog.String("reset_code", code))
	w.WriteHeader(http.StatusOK)
}

var errInvalidResetCode = fieldError("InvalidToken", "Invalid token.")

// ResetPassword handles POST /account/resetPassword. A successful reset
// confirms the email address and revokes every token of the account.
func (a *API) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if !a.checkRequestLimit(w, r) {
		return
	}
	req, ok := decodeJSON[ResetPasswordRequest](w, r)
	if !ok {
		return
	}
	if err := validate.Password(req.NewPassword); err != nil {
		writeValidationProblem(w, r, fieldError("Password", err.Error()))
		return
	}

	rec, err := a.accountByEmail(req.Email)
	if errors.Is(err, ErrAccountNotFound) {
		a.audit.logFailure(AuditPasswordResetFailure, r, "unknown email")
		writeValidationProblem(w, r, errInvalidResetCode)
		return
	}
	if err != nil {
		a.writeInternalError(w, r, "failed to load account", err)
		return
	}
	if !rec.resetCodeMatches(req.ResetCode, a.now()) {
		a.audit.logFailure(AuditPasswordResetFailure, r, "invalid reset code",
			slog.String("account_id", rec.ID))
		writeValidationProblem(w, r, errInvalidResetCode)
		return
	}

	if err := a.setPassword(rec, req.NewPassword); err != nil {
		a.writeInternalError(w, r, "failed to hash password", err)
		return
	}
	rec.ResetCodeDigest = ""
	rec.ResetCodeExpiry = time.Time{}
	rec.EmailConfirmed = true
	if err := a.saveAccount(rec); err != nil {
		a.writeInternalError(w, r, "failed to save account", err)
		return
	}
	if err := a.tokens.DeleteAccount(rec.ID); err != nil {
		a.writeInternalError(w, r, "failed to revoke tokens", err)
		return
	}

	a.audit.logEvent(AuditPasswordReset, r, rec.ID)
	w.WriteHeader(http.StatusOK)
}

func (rec *accountRecord) resetCodeMatches(code string, now time.Time) bool {
	if rec.ResetCodeDigest == "" || !now.Before(rec.ResetCodeExpiry) {
		return false
	}
	got := tokenDigest(strings.ToUpper(strings.TrimSpace(code)))
	return subtle.ConstantTimeCompare([]byte(got), []byte(rec.ResetCodeDigest)) == 1
}

// AccountInfo handles GET /account/manage/info.
func (a *API) AccountInfo(w http.ResponseWriter, r *http.Request) {
	rec, err := a.loadAccount(accountIDFromContext(r.Context()))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infoResponse(rec))
}

// UpdateAccountInfo handles POST /account/manage/info. It changes the
// email address, the password, or both.
func (a *API) UpdateAccountInfo(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[InfoRequest](w, r)
	if !ok {
		return
	}
	if req.NewEmail == "" && req.NewPassword == "" {
		writeValidationProblem(w, r, fieldError("body", "Either newEmail or newPassword is required."))
		return
	}

	rec, err := a.loadAccount(accountIDFromContext(r.Context()))
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	if req.NewPassword != "" {
		if req.OldPassword == "" || !rec.verifyPassword(req.OldPassword) {
			a.audit.logFailure(AuditPasswordChanged, r, "old password mismatch",
				slog.String("account_id", rec.ID))
			writeValidationProblem(w, r, fieldError("PasswordMismatch", "Incorrect password."))
			return
		}
		if err := validate.Password(req.NewPassword); err != nil {
			writeValidationProblem(w, r, fieldError("Password", err.Error()))
			return
		}
	}
	if req.NewEmail != "" {
		if err := validate.Email(req.NewEmail); err != nil {
			writeValidationProblem(w, r, fieldError("Email", err.Error()))
			return
		}
	}

	if req.NewPassword != "" {
		if err := a.setPassword(rec, req.NewPassword); err != nil {
			a.writeInternalError(w, r, "failed to hash password", err)
			return
		}
		if err := a.saveAccount(rec); err != nil {
			a.writeInternalError(w, r, "failed to save account", err)
			return
		}
		a.audit.logEvent(AuditPasswordChanged, r, rec.ID)
	}
	if req.NewEmail != "" {
		if err := a.changeEmail(rec, req.NewEmail); err != nil {
			a.mapError(w, r, err)
			return
		}
		a.audit.logEvent(AuditEmailChanged, r, rec.ID)
	}

	writeJSON(w, http.StatusOK, infoResponse(rec))
}

func infoResponse(rec *accountRecord) InfoResponse {
	return InfoResponse{
		Email:            rec.Email,
		IsEmailConfirmed: rec.EmailConfirmed,
	}
}
