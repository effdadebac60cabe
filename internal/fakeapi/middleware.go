package fakeapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyAccount stores the authenticated account
	ContextKeyAccount ContextKey = "account"
	// ContextKeyAccessToken stores the raw access token of the request
	ContextKeyAccessToken ContextKey = "access_token"
)

// accountFrom returns the account stored by RequireAuth.
func accountFrom(ctx context.Context) *users.Account {
	a, _ := ctx.Value(ContextKeyAccount).(*users.Account)
	return a
}

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Msg("request")
		if s.routeLog != nil {
			s.logRoute(r.Method, r.URL.Path, " "+statusColor(status)+http.StatusText(status)+ResetColor)
		}
	})
}

func (s *Server) RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")
				writeDetail(w, http.StatusInternalServerError, "Internal server error.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// No Origin header = same-origin request, no CORS headers needed
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowedOrigins := s.config.GetAllowedOrigins()
		isAllowed := allowedOrigins.IsAllowedOrigin(origin)
		isWildcard := allowedOrigins.IsAllowedOrigin("*")

		switch {
		case isAllowed:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		case isWildcard:
			// Don't set Allow-Credentials with wildcard
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == http.MethodOptions {
			if isAllowed || isWildcard {
				w.Header().Set("Access-Control-Allow-Methods", s.config.GetAllowedMethods())
				w.Header().Set("Access-Control-Allow-Headers", s.config.GetAllowedHeaders())
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth accepts "Token <jwt>" and "Bearer <jwt>" access tokens issued by this server.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !isTokenScheme(parts[0]) || strings.TrimSpace(parts[1]) == "" {
			writeDetail(w, http.StatusUnauthorized, "Invalid Authorization header format.")
			return
		}
		raw := strings.TrimSpace(parts[1])

		info, err := s.tokens.Verify(raw)
		if err != nil {
			s.logger.Debug().Err(err).Msg("access token rejected")
			writeTokenInvalid(w, tokenMessage(err))
			return
		}
		account, err := s.accounts.GetByID(users.ID(info.Subject))
		if err != nil {
			writeTokenInvalid(w, "User not found.")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyAccount, account)
		ctx = context.WithValue(ctx, ContextKeyAccessToken, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isTokenScheme(scheme string) bool {
	return strings.EqualFold(scheme, "token") || strings.EqualFold(scheme, "bearer")
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, errors.ErrTokenExpired):
		return "Token has expired."
	case errors.Is(err, errors.ErrTokenRevoked):
		return "Token has been revoked."
	default:
		return "Given token not valid for any token type."
	}
}
