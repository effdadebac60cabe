package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/internal/utils"
	"github.com/jrsteele09/zhancare-client/users"
)

// Service runs the login, registration and password reset flows against the backend
// and records successful logins in the session store.
type Service struct {
	api       apiclient.JSONDoer
	sessions  SessionStore
	validator *Validator
	logger    zerolog.Logger
	tokenType string
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTokenType records the scheme stored alongside the tokens, "Token" by default.
func WithTokenType(scheme string) ServiceOption {
	return func(s *Service) {
		if scheme != "" {
			s.tokenType = scheme
		}
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(api apiclient.JSONDoer, sessions SessionStore, opts ...ServiceOption) (*Service, error) {
	if api == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[auth.NewService] api is required")
	}
	if sessions == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[auth.NewService] sessions is required")
	}
	s := &Service{
		api:       api,
		sessions:  sessions,
		validator: NewValidator(),
		logger:    zerolog.Nop(),
		tokenType: apiclient.DefaultAuthScheme,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login exchanges credentials for tokens and starts a session. Wrong credentials
// come back as a *FieldError wrapping ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*users.User, error) {
	req := LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := s.post(ctx, LoginPath, req, &resp); err != nil {
		return nil, classify(err, errors.ErrInvalidCredentials)
	}
	return s.startSession(ctx, &resp, req.Email)
}

// Register creates an account and logs straight into it. An email already in use
// yields ErrDuplicateUser.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*users.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	payload := registerPayload{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}
	if req.Phone != "" {
		payload.Phone = utils.Ptr(req.Phone)
	}

	var resp tokenResponse
	if err := s.post(ctx, RegisterPath, payload, &resp); err != nil {
		return nil, classify(err, errors.ErrInvalidInput)
	}
	return s.startSession(ctx, &resp, req.Email)
}

// ForgotPassword asks the backend to email a reset code. It returns the backend's
// confirmation message, if any.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	payload := emailPayload{Email: strings.TrimSpace(email)}
	if err := s.validator.Struct(payload); err != nil {
		return "", err
	}
	var resp messageResponse
	if err := s.post(ctx, ForgotPasswordPath, payload, &resp); err != nil {
		return "", classify(err, errors.ErrNotFound)
	}
	return resp.Message, nil
}

// VerifyResetCode checks an emailed code before the new password is entered.
func (s *Service) VerifyResetCode(ctx context.Context, email, code string) error {
	payload := resetCodePayload{Email: strings.TrimSpace(email), ResetCode: strings.TrimSpace(code)}
	if err := s.validator.Struct(payload); err != nil {
		return err
	}
	if err := s.post(ctx, VerifyResetCodePath, payload, nil); err != nil {
		return classify(err, errors.ErrInvalidResetCode)
	}
	return nil
}

// ResetPassword sets a new password. The user has to log in with it afterwards.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.ResetCode = strings.TrimSpace(req.ResetCode)
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	payload := resetPasswordPayload{Email: req.Email, ResetCode: req.ResetCode, NewPassword: req.NewPassword}
	if err := s.post(ctx, ResetPasswordPath, payload, nil); err != nil {
		return classify(err, errors.ErrInvalidResetCode)
	}
	return nil
}

// Logout ends the session locally. There is no backend call.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Logout(ctx)
}

func (s *Service) post(ctx context.Context, path string, in, out any) error {
	return s.api.DoJSON(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   in,
		Public: true,
	}, out)
}

func (s *Service) startSession(ctx context.Context, resp *tokenResponse, email string) (*users.User, error) {
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[auth.Service] response is missing tokens")
	}
	profile := resp.User
	if profile == nil {
		profile = &users.Profile{}
	}
	user := profile.Snapshot(email)
	if user.ID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[auth.Service] response has no user id")
	}

	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    s.tokenType,
	}
	if err := s.sessions.Login(ctx, user, tok); err != nil {
		return nil, errors.Wrapf(err, "[auth.Service] sessions.Login")
	}
	s.logger.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("logged in")
	return user, nil
}
