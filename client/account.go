package client

import (
	"context"
	"errors"
	"net/http"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountInfo describes the logged-in account.
type AccountInfo struct {
	Email            string `json:"email"`
	IsEmailConfirmed bool   `json:"isEmailConfirmed"`
}

// Login authenticates and replaces the session. The quiz collection is
// emptied since it belonged to the previous session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var tr tokenResponse
	err := c.send(ctx, http.MethodPost, "/account/login", "", credentials{Email: email, Password: password}, &tr)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Outcome == StructuredError && e.Status != 0 {
			return &Error{Outcome: StructuredError, Status: e.Status, Message: LoginFailureMessage(e.Status), Err: e.Err}
		}
		return err
	}
	c.sessions.Login(email, tr.grant(), c.now())
	c.quizzes.Clear()
	return nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.send(ctx, http.MethodPost, "/account/register", "", credentials{Email: email, Password: password}, nil)
}

// Logout revokes the session on the server, then clears it locally along
// with the quiz collection.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.authorized(ctx, http.MethodPost, "/account/logout", struct{}{}, nil); err != nil {
		return err
	}
	c.ForgetSession()
	return nil
}

// ForgetSession clears the local session and quiz collection without
// contacting the server.
func (c *Client) ForgetSession() {
	c.sessions.Logout(c.now())
	c.quizzes.Clear()
}

// ForgotPassword requests a password reset code for email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.send(ctx, http.MethodPost, "/account/forgotPassword", "", map[string]string{"email": email}, nil)
}

// ResetPassword sets a new password using a reset code.
func (c *Client) ResetPassword(ctx context.Context, email, resetCode, newPassword string) error {
	req := map[string]string{"email": email, "resetCode": resetCode, "newPassword": newPassword}
	return c.send(ctx, http.MethodPost, "/account/resetPassword", "", req, nil)
}

// ChangeEmail changes the account's email address. The local session is
// left as is.
func (c *Client) ChangeEmail(ctx context.Context, newEmail string) error {
	return c.authorized(ctx, http.MethodPost, "/account/manage/info", map[string]string{"newEmail": newEmail}, nil)
}

// ChangePassword changes the account's password.
func (c *Client) ChangePassword(ctx context.Context, newPassword, oldPassword string) error {
	req := map[string]string{"newPassword": newPassword, "oldPassword": oldPassword}
	return c.authorized(ctx, http.MethodPost, "/account/manage/info", req, nil)
}

// AccountInfo fetches details of the logged-in account.
func (c *Client) AccountInfo(ctx context.Context) (AccountInfo, error) {
	var info AccountInfo
	if err := c.authorized(ctx, http.MethodGet, "/account/manage/info", nil, &info); err != nil {
		return AccountInfo{}, err
	}
	return info, nil
}
