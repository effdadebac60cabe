package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/assistant"
	"github.com/jrsteele09/zhancare-client/auth"
	"github.com/jrsteele09/zhancare-client/clinics"
	"github.com/jrsteele09/zhancare-client/consultations"
	"github.com/jrsteele09/zhancare-client/internal/config"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/internal/logging"
	"github.com/jrsteele09/zhancare-client/profile"
	"github.com/jrsteele09/zhancare-client/sessions"
	"github.com/jrsteele09/zhancare-client/sessions/filestore"
	"github.com/jrsteele09/zhancare-client/sessions/memstore"
	"github.com/jrsteele09/zhancare-client/sessions/redisstore"
	"github.com/jrsteele09/zhancare-client/token"
)

const (
	reportQueueSize = 64
	flushTimeout    = 2 * time.Second
)

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	out      io.Writer
	registry *prometheus.Registry

	storage       sessions.Storage
	closeStorage  func() error
	store         *sessions.Store
	client        *apiclient.Client
	reporter      *apiclient.AsyncReporter
	auth          *auth.Service
	clinics       *clinics.Service
	consultations *consultations.Service
	profile       *profile.Service
	assistant     *assistant.Client
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer, logOut io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		out:      out,
		logger:   logging.New(logging.Config{Level: cfg.GetLogLevel(), Console: cfg.IsDev(), Output: logOut}),
		registry: prometheus.NewRegistry(),
	}

	var err error
	a.storage, a.closeStorage, err = openStorage(cfg)
	if err != nil {
		return nil, err
	}

	a.store, err = sessions.NewStore(a.storage,
		sessions.WithLogger(logging.Component(a.logger, "sessions")),
		sessions.WithMinRestoreDuration(cfg.GetMinRestoreDuration()),
	)
	if err != nil {
		return nil, err
	}
	a.store.Subscribe(func(e sessions.Event) {
		if e.Kind == sessions.EventForcedLogout {
			fmt.Fprintln(a.out, "session expired, please log in again")
		}
	})

	reporters := apiclient.MultiReporter{apiclient.NewLogReporter(logging.Component(a.logger, "api"))}
	if dsn := cfg.GetSentryDSN(); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn, Environment: cfg.GetEnv()}); err != nil {
			a.logger.Warn().Err(err).Msg("sentry disabled")
		} else {
			a.reporter = apiclient.NewAsyncReporter(apiclient.NewSentryReporter(sentry.CurrentHub()), reportQueueSize,
				apiclient.WithDropHandler(func(e *apiclient.Error) {
					a.logger.Warn().Str("path", e.Path).Msg("error report dropped")
				}))
			reporters = append(reporters, a.reporter)
		}
	}

	a.client, err = apiclient.New(cfg.GetAPIURL(), a.store,
		apiclient.WithTimeout(cfg.GetAPITimeout()),
		apiclient.WithAuthScheme(cfg.GetAuthScheme()),
		apiclient.WithRateLimit(cfg.GetRateLimit(), cfg.GetRateBurst()),
		apiclient.WithLogger(logging.Component(a.logger, "api")),
		apiclient.WithReporter(reporters),
		apiclient.WithMetrics(a.registry),
	)
	if err != nil {
		return nil, err
	}

	if a.auth, err = auth.NewService(a.client, a.store,
		auth.WithLogger(logging.Component(a.logger, "auth")),
		auth.WithTokenType(cfg.GetAuthScheme()),
	); err != nil {
		return nil, err
	}
	if a.clinics, err = clinics.NewService(a.client,
		clinics.WithCacheTTL(cfg.GetClinicCacheTTL()),
		clinics.WithLogger(logging.Component(a.logger, "clinics")),
	); err != nil {
		return nil, err
	}
	if a.consultations, err = consultations.NewService(a.client,
		consultations.WithLogger(logging.Component(a.logger, "consultations")),
	); err != nil {
		return nil, err
	}
	if a.profile, err = profile.NewService(a.client); err != nil {
		return nil, err
	}
	if key := cfg.GetMistralAPIKey(); key != "" {
		if a.assistant, err = assistant.New(key,
			assistant.WithEndpoint(cfg.GetMistralEndpoint()),
			assistant.WithLogger(logging.Component(a.logger, "assistant")),
		); err != nil {
			return nil, err
		}
	}

	if err := a.store.Restore(ctx); err != nil {
		return nil, err
	}
	a.logRestored()
	return a, nil
}

func openStorage(cfg config.SessionConfig) (sessions.Storage, func() error, error) {
	noop := func() error { return nil }
	switch cfg.GetStorage() {
	case config.StorageFile:
		s, err := filestore.New(cfg.GetStoragePath(), filestore.WithPassphrase(cfg.GetStorageKey()))
		return s, noop, err
	case config.StorageRedis:
		s, err := redisstore.NewFromURL(cfg.GetRedisURL(), redisstore.WithPrefix(cfg.GetRedisKeyPrefix()))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StorageMemory:
		return memstore.New(), noop, nil
	}
	return nil, nil, errors.Wrapf(errors.ErrUnsupported, "[openStorage] storage %q", cfg.GetStorage())
}

func (a *app) logRestored() {
	tok, ok := a.store.Token()
	if !ok {
		a.logger.Debug().Msg("no stored session")
		return
	}
	ev := a.logger.Debug()
	if u := a.store.User(); u != nil {
		ev = ev.Str("user", u.Email)
	}
	if info, err := token.Inspect(tok.AccessToken); err == nil {
		ev = ev.Time("access_expires", info.ExpiresAt).Bool("access_expired", info.Expired(time.Now()))
	}
	ev.Msg("session restored")
}

// requireLogin applies the navigation guard for commands behind login.
func (a *app) requireLogin() error {
	if _, redirect := a.store.Redirect(true); redirect {
		return errors.Wrapf(errors.ErrNotAuthenticated, "please log in first (zhancare login)")
	}
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.reporter != nil {
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		if err := a.reporter.Close(flushCtx); err != nil {
			a.logger.Warn().Err(err).Msg("error reports not flushed")
		}
		cancel()
		sentry.Flush(flushTimeout)
	}
	if err := a.closeStorage(); err != nil {
		a.logger.Warn().Err(err).Msg("close storage")
	}
	a.logMetrics()
}

func (a *app) logMetrics() {
	if a.logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			ev := a.logger.Debug().Str("metric", mf.GetName())
			for _, lp := range m.GetLabel() {
				ev = ev.Str(lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				ev = ev.Float64("value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				ev = ev.Uint64("count", m.GetHistogram().GetSampleCount())
			}
			ev.Msg("metrics")
		}
	}
}
