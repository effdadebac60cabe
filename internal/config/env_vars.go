package config

import (
	"time"
)

const devEnv = "DEV"

// Session storage backends.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type EnvVars struct {
	Env       string `envconfig:"ENV" default:"DEV"`
	AppName   string `envconfig:"APP_NAME" default:"ZhanCare"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	SentryDSN string `envconfig:"SENTRY_DSN"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return devEnv
	}
	return e.Env
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetSentryDSN() string {
	return e.SentryDSN
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == devEnv
}

type API struct {
	URL            string        `envconfig:"API_URL" default:"http://localhost:8000/api/v1"`
	Timeout        time.Duration `envconfig:"API_TIMEOUT" default:"10s"`
	AuthScheme     string        `envconfig:"API_AUTH_SCHEME" default:"Token"`
	RateLimit      float64       `envconfig:"API_RATE_LIMIT" default:"0"` // requests per second, 0 disables
	RateBurst      int           `envconfig:"API_RATE_BURST" default:"5"`
	ClinicCacheTTL time.Duration `envconfig:"CLINIC_CACHE_TTL" default:"5m"`
}

var _ APIConfig = API{}

func (a API) GetAPIURL() string {
	return a.URL
}

func (a API) GetAPITimeout() time.Duration {
	return a.Timeout
}

func (a API) GetAuthScheme() string {
	return a.AuthScheme
}

func (a API) GetRateLimit() float64 {
	return a.RateLimit
}

func (a API) GetRateBurst() int {
	return a.RateBurst
}

func (a API) GetClinicCacheTTL() time.Duration {
	return a.ClinicCacheTTL
}

type Session struct {
	Backend        string        `envconfig:"STORAGE" default:"file"`
	Path           string        `envconfig:"STORAGE_PATH" default:"./data/session.json"`
	Key            string        `envconfig:"STORAGE_KEY"` // passphrase for at-rest encryption of the session file
	RedisURL       string        `envconfig:"REDIS_URL"`
	RedisKeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"zhancare:session:"`
	MinRestore     time.Duration `envconfig:"SESSION_MIN_RESTORE" default:"2s"`
}

var _ SessionConfig = Session{}

func (s Session) GetStorage() string {
	return s.Backend
}

func (s Session) GetStoragePath() string {
	return s.Path
}

func (s Session) GetStorageKey() string {
	return s.Key
}

func (s Session) GetRedisURL() string {
	return s.RedisURL
}

func (s Session) GetRedisKeyPrefix() string {
	return s.RedisKeyPrefix
}

func (s Session) GetMinRestoreDuration() time.Duration {
	return s.MinRestore
}

type Assistant struct {
	MistralAPIKey   string `envconfig:"MISTRAL_API_KEY"`
	MistralEndpoint string `envconfig:"MISTRAL_ENDPOINT" default:"https://api.mistral.ai/v1/chat/completions"`
}

var _ AssistantConfig = Assistant{}

func (a Assistant) GetMistralAPIKey() string {
	return a.MistralAPIKey
}

func (a Assistant) GetMistralEndpoint() string {
	return a.MistralEndpoint
}
