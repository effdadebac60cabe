package config

import (
	"strings"
	"time"
)

// FakeAPIConfig configures the local development backend.
type FakeAPIConfig interface {
	GetFakeAPIAddr() string
	GetFakeAPISecret() string
	GetAccessTokenTTL() time.Duration
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type FakeAPI struct {
	Addr           string        `envconfig:"FAKEAPI_ADDR" default:":8000"`
	Secret         string        `envconfig:"FAKEAPI_SECRET" default:"dev-secret-change-me"`
	AccessTokenTTL time.Duration `envconfig:"FAKEAPI_ACCESS_TTL" default:"15m"`
	Origins        []string      `envconfig:"FAKEAPI_ALLOWED_ORIGINS" default:"http://localhost:8081"`
}

var _ FakeAPIConfig = FakeAPI{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func NewAllowedOrigins(origins ...string) AllowedOrigins {
	a := make(AllowedOrigins, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			a[o] = nullValue{}
		}
	}
	return a
}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

func (f FakeAPI) GetFakeAPIAddr() string {
	if f.Addr != "" && !strings.Contains(f.Addr, ":") {
		return ":" + f.Addr
	}
	return f.Addr
}

func (f FakeAPI) GetFakeAPISecret() string {
	return f.Secret
}

func (f FakeAPI) GetAccessTokenTTL() time.Duration {
	return f.AccessTokenTTL
}

func (f FakeAPI) GetAllowedOrigins() AllowedOrigins {
	return NewAllowedOrigins(f.Origins...)
}

func (FakeAPI) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (FakeAPI) GetAllowedHeaders() string {
	return "Content-Type, Authorization, X-Request-ID"
}
