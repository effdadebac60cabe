package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

// Prefix is prepended to every environment variable name, e.g. ZHANCARE_API_URL.
const Prefix = "ZHANCARE"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	AssistantConfig
	FakeAPIConfig
}

type EnvConfig interface {
	GetEnv() string
	GetAppName() string
	GetLogLevel() string
	GetSentryDSN() string
	IsDev() bool
}

type APIConfig interface {
	GetAPIURL() string
	GetAPITimeout() time.Duration
	GetAuthScheme() string
	GetRateLimit() float64
	GetRateBurst() int
	GetClinicCacheTTL() time.Duration
}

type SessionConfig interface {
	GetStorage() string
	GetStoragePath() string
	GetStorageKey() string
	GetRedisURL() string
	GetRedisKeyPrefix() string
	GetMinRestoreDuration() time.Duration
}

type AssistantConfig interface {
	GetMistralAPIKey() string
	GetMistralEndpoint() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Assistant
	FakeAPI
}

var _ Config = (*mainConfig)(nil)

// New loads the configuration from the environment.
func New() (Config, error) {
	c := &mainConfig{}
	if err := envconfig.Process(Prefix, c); err != nil {
		return nil, errors.Wrapf(err, "[config.New] failed to process environment")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *mainConfig) validate() error {
	switch c.Session.Backend {
	case StorageFile, StorageRedis, StorageMemory:
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "[config.New] unknown storage backend %q", c.Session.Backend)
	}
	if c.Session.Backend == StorageRedis && c.Session.RedisURL == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[config.New] %s_REDIS_URL is required for redis storage", Prefix)
	}
	if c.API.Timeout <= 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "[config.New] %s_API_TIMEOUT must be positive", Prefix)
	}
	return nil
}
