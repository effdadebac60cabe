package fakeapi

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/zhancare-client/auth"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
)

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerInput struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	Phone     *string `json:"phone" validate:"omitempty,min=10,max=20"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name"`
}

type refreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type resetCodeInput struct {
	Email     string `json:"email" validate:"required,email"`
	ResetCode string `json:"reset_code" validate:"required"`
}

type resetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	ResetCode   string `json:"reset_code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type tokenOutput struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.Profile `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	account, err := s.accounts.GetByEmail(in.Email)
	if err != nil || !users.CheckPasswordHash(in.Password, account.PasswordHash) {
		writeJSON(w, http.StatusUnauthorized, map[string][]string{
			"non_field_errors": {"Unable to log in with provided credentials."},
		})
		return
	}
	s.issueTokens(w, http.StatusOK, account)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if !decodeJSON(w, r, &in) || !s.validate(w, &in) {
		return
	}

	hash, err := users.HashPassword(in.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("hash password")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	account := &users.Account{
		Profile: users.Profile{
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Email:     users.NormalizeEmail(in.Email),
			Role:      users.RolePatient,
			CreatedAt: s.timestamp(),
		},
		PasswordHash: hash,
	}
	if in.Phone != nil {
		account.Phone = *in.Phone
	}
	account.UpdatedAt = account.CreatedAt

	if err := s.accounts.Upsert(account); err != nil {
		if errors.Is(err, errors.ErrDuplicateUser) {
			writeError(w, http.StatusConflict, "User with this email already exists.")
			return
		}
		s.logger.Error().Err(err).Msg("store account")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	s.logger.Info().Str("user_id", account.ID.String()).Msg("account registered")
	s.issueTokens(w, http.StatusCreated, account)
}

// handleRefresh trades a live refresh token for a new access token. The refresh
// token itself is kept.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.RefreshToken == "" {
		writeFieldErrors(w, map[string][]string{"refresh_token": {"This field is required."}})
		return
	}

	stored, err := s.refresh.Validate(in.RefreshToken)
	if err != nil {
		writeTokenInvalid(w, "Token is invalid or expired.")
		return
	}
	account, err := s.accounts.GetByID(users.ID(stored.UserID))
	if err != nil {
		_ = s.refresh.Delete(in.RefreshToken)
		writeTokenInvalid(w, "User not found.")
		return
	}
	access, err := s.tokens.CreateAccessToken(account.ID.String(), account.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("sign access token")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in emailInput
	if !decodeJSON(w, r, &in) || !s.validate(w, &in) {
		return
	}
	if account, err := s.accounts.GetByEmail(in.Email); err == nil {
		code, err := s.resets.issue(account.Email)
		if err != nil {
			s.logger.Error().Err(err).Msg("issue reset code")
			writeDetail(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		// There is no mail delivery, the code is only logged.
		s.logger.Info().Str("email", account.Email).Str("code", code).Msg("password reset code issued")
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for this email, a reset code has been sent.",
	})
}

func (s *Server) handleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var in resetCodeInput
	if !decodeJSON(w, r, &in) || !s.validate(w, &in) {
		return
	}
	if !s.resets.valid(in.Email, in.ResetCode) {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset code.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reset code is valid."})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordInput
	if !decodeJSON(w, r, &in) || !s.validate(w, &in) {
		return
	}
	account, err := s.accounts.GetByEmail(in.Email)
	if err != nil || !s.resets.consume(in.Email, in.ResetCode) {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset code.")
		return
	}

	hash, err := users.HashPassword(in.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("hash password")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	account.PasswordHash = hash
	account.UpdatedAt = s.timestamp()
	if err := s.accounts.Upsert(account); err != nil {
		s.logger.Error().Err(err).Msg("store account")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	// A new password ends existing sessions.
	if stored, err := s.refreshRepo.GetByUserID(account.ID.String()); err == nil && stored != nil {
		_ = s.refresh.Delete(stored.Token)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset."})
}

func (s *Server) issueTokens(w http.ResponseWriter, status int, account *users.Account) {
	access, err := s.tokens.CreateAccessToken(account.ID.String(), account.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("sign access token")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	refreshToken, err := s.refresh.Create(account.ID.String())
	if err != nil {
		s.logger.Error().Err(err).Msg("create refresh token")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	profile := account.Profile
	writeJSON(w, status, tokenOutput{AccessToken: access, RefreshToken: refreshToken, User: &profile})
}

// validate answers 400 with per-field messages when in fails its validate tags.
func (s *Server) validate(w http.ResponseWriter, in any) bool {
	err := s.validator.Struct(in)
	if err == nil {
		return true
	}
	var fe *auth.FieldError
	if errors.As(err, &fe) && len(fe.Fields) > 0 {
		writeFieldErrors(w, fe.Fields)
		return false
	}
	writeDetail(w, http.StatusBadRequest, err.Error())
	return false
}
