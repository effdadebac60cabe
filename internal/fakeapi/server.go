package fakeapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/zhancare-client/auth"
	"github.com/jrsteele09/zhancare-client/internal/config"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/token"
	"github.com/jrsteele09/zhancare-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/zhancare-client/token/refresh/repofake"
	"github.com/jrsteele09/zhancare-client/users"
	fakeuserrepo "github.com/jrsteele09/zhancare-client/users/repofake"
)

// BasePath is where the API is mounted, matching the production backend.
const BasePath = "/api/v1"

// Server is an in-memory stand-in for the ZhanCare backend used in development and tests.
type Server struct {
	router   chi.Router
	config   config.FakeAPIConfig
	logger   zerolog.Logger
	routeLog io.Writer

	accounts    users.AccountRepo
	tokens      *token.Manager
	refresh     *refresh.Manager
	refreshRepo refresh.Repo
	validator   *auth.Validator
	data     *dataset
	resets   *resetCodes
	nowFunc  func() time.Time
	seed     bool
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRouteLog prints the route table and one coloured line per request to w.
func WithRouteLog(w io.Writer) Option {
	return func(s *Server) {
		s.routeLog = w
	}
}

func WithAccounts(repo users.AccountRepo) Option {
	return func(s *Server) {
		s.accounts = repo
	}
}

// WithNowFunc sets the clock used for token expiry, reset codes and timestamps.
func WithNowFunc(f func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = f
	}
}

// WithoutSeed starts with no accounts, clinics or consultations.
func WithoutSeed() Option {
	return func(s *Server) {
		s.seed = false
	}
}

func New(cfg config.FakeAPIConfig, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[fakeapi.New] config is required")
	}
	if cfg.GetFakeAPISecret() == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[fakeapi.New] signing secret is required")
	}

	s := &Server{
		config:  cfg,
		logger:  zerolog.Nop(),
		nowFunc: time.Now,
		seed:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.accounts == nil {
		s.accounts = fakeuserrepo.NewFakeAccountRepo()
	}
	s.tokens = token.NewManager(
		token.NewHMACSigner(cfg.GetFakeAPISecret()),
		token.WithNowFunc(s.nowFunc),
		token.WithAccessTokenExpiry(cfg.GetAccessTokenTTL()),
	)
	s.refreshRepo = refreshrepofake.NewFakeRefreshTokenRepo()
	s.refresh = refresh.NewManager(s.refreshRepo, 0)
	s.validator = auth.NewValidator()
	s.data = newDataset(s.nowFunc)
	s.resets = newResetCodes(s.nowFunc)

	if s.seed {
		if err := s.seedData(); err != nil {
			return nil, errors.Wrapf(err, "[fakeapi.New] seed")
		}
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(s.RecoverMiddleware, s.LoggingMiddleware, s.CorsMiddleware)

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/auth/login/", s.handleLogin)
		r.Post("/auth/register/", s.handleRegister)
		r.Post("/auth/refresh/", s.handleRefresh)
		r.Post("/auth/forgot-password/", s.handleForgotPassword)
		r.Post("/auth/verify-reset-code/", s.handleVerifyResetCode)
		r.Post("/auth/reset-password/", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireAuth)

			r.Get("/auth/doctor/available/", s.handleAvailableDoctors)

			r.Get("/clinics/", s.handleListClinics)
			r.Post("/clinics/ai-search/", s.handleAISearch)
			r.Get("/clinics/{id}/", s.handleGetClinic)

			r.Get("/consultations/my-consultations/", s.handleMyConsultations)
			r.Post("/consultations/", s.handleCreateConsultation)
			r.Get("/consultations/{id}/", s.handleGetConsultation)
			r.Post("/consultations/{id}/cancel/", s.handleCancelConsultation)
			r.Post("/consultations/{id}/join/", s.handleJoinConsultation)

			r.Get("/user-profile/", s.handleGetProfile)
			r.Patch("/user-profile/profile/", s.handleUpdateProfile)
			r.Post("/user-profile/upload-picture/", s.handleUploadPicture)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q not allowed.", r.Method))
	})
	s.router = r
}

func (s *Server) logRoutes() {
	if s.routeLog == nil {
		return
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		s.logRoute(method, route, "")
		return nil
	})
}

func (s *Server) logRoute(method, path, suffix string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	fmt.Fprintf(s.routeLog, "[%s%s%s] %s%s\n", color, paddedMethod, ResetColor, path, suffix)
}

func (s *Server) timestamp() string {
	return s.nowFunc().UTC().Format(time.RFC3339)
}

// ResetCode returns the outstanding password reset code for email. There is no mail
// delivery, so tools and tests read it here.
func (s *Server) ResetCode(email string) (string, bool) {
	return s.resets.peek(email)
}

// RevokeAccessToken makes a still unexpired access token fail verification.
func (s *Server) RevokeAccessToken(raw string) error {
	return s.tokens.Revoke(raw)
}

// RevokeRefreshToken deletes a refresh token so the next refresh fails.
func (s *Server) RevokeRefreshToken(raw string) error {
	return s.refresh.Delete(raw)
}
