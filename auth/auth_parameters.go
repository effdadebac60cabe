package auth

import "github.com/jrsteele09/zhancare-client/users"

// Backend endpoints used by the auth flows. All of them are public: they are called
// without an access token and a 401 from them never triggers a refresh.
const (
	LoginPath           = "/auth/login/"
	RegisterPath        = "/auth/register/"
	ForgotPasswordPath  = "/auth/forgot-password/"
	VerifyResetCodePath = "/auth/verify-reset-code/"
	ResetPasswordPath   = "/auth/reset-password/"
)

const minPasswordLength = 8

// LoginRequest holds the credentials entered on the login screen.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest holds the registration form.
//
// ConfirmPassword and AcceptTerms are checked locally and never sent. Phone is
// optional and sent as null when empty.
type RegisterRequest struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,min=10,max=20"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `json:"accept_terms" validate:"eq=true"`
}

// registerPayload is the body the backend expects for POST /auth/register/.
type registerPayload struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Phone     *string `json:"phone"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
}

// ResetPasswordRequest completes the forgot password flow with the emailed code.
type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	ResetCode       string `json:"reset_code" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type emailPayload struct {
	Email string `json:"email" validate:"required,email"`
}

type resetCodePayload struct {
	Email     string `json:"email" validate:"required,email"`
	ResetCode string `json:"reset_code" validate:"required"`
}

type resetPasswordPayload struct {
	Email       string `json:"email"`
	ResetCode   string `json:"reset_code"`
	NewPassword string `json:"new_password"`
}

// tokenResponse is returned by both login and register.
type tokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.Profile `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}
