package api

// CredentialsRequest is the JSON body for POST /account/register and
// POST /account/login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned from a successful login or refresh.
type TokenResponse struct {
	TokenType    string `json:"tokenType"`
	AccessToken  string `json:"accessToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshRequest is the JSON body for POST /account/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgotPasswordRequest is the JSON body for POST /account/forgotPassword.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the JSON body for POST /account/resetPassword.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	ResetCode   string `json:"resetCode"`
	NewPassword string `json:"newPassword"`
}

// InfoRequest is the JSON body for POST /account/manage/info. Either
// NewEmail or NewPassword (with OldPassword) is set.
type InfoRequest struct {
	NewEmail    string `json:"newEmail,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
	OldPassword string `json:"oldPassword,omitempty"`
}

// InfoResponse is returned from GET and POST /account/manage/info.
type InfoResponse struct {
	Email            string `json:"email"`
	IsEmailConfirmed bool   `json:"isEmailConfirmed"`
}

// CreateQuizRequest is the JSON body for POST /quiz.
type CreateQuizRequest struct {
	Questions   []string `json:"questions"`
	UserAnswers []*int   `json:"userAnswers"`
}

// EditQuizRequest is the JSON body for PATCH /quiz/{id}.
type EditQuizRequest struct {
	ID          int    `json:"id"`
	UserAnswers []*int `json:"userAnswers"`
}
