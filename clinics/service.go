package clinics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/internal/errors"
)

const (
	clinicsPath  = "/clinics/"
	aiSearchPath = "/clinics/ai-search/"

	DefaultRadiusKm = 50
	nearestPageSize = 20

	DefaultCacheTTL = 5 * time.Minute
	listCacheKey    = "clinics:list"
)

// Service reads the clinic directory. List and Get are cached; location and AI
// searches always go to the backend.
type Service struct {
	api    apiclient.JSONDoer
	cache  *cache.Cache
	logger zerolog.Logger
}

type Option func(*Service)

// WithCacheTTL sets how long List and Get results are reused. 0 disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = cache.New(ttl, 2*ttl)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func NewService(api apiclient.JSONDoer, opts ...Option) (*Service, error) {
	if api == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[clinics.NewService] api is required")
	}
	s := &Service{
		api:    api,
		cache:  cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns every clinic.
func (s *Service) List(ctx context.Context) ([]Clinic, error) {
	if cached, ok := s.cached(listCacheKey); ok {
		return cloneList(cached.([]Clinic)), nil
	}

	var page apiclient.Page[Clinic]
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodGet, Path: clinicsPath}, &page); err != nil {
		return nil, err
	}
	s.store(listCacheKey, page.Results)
	for _, c := range page.Results {
		s.store(clinicKey(c.ID), c)
	}
	return cloneList(page.Results), nil
}

// Get returns one clinic. A 404 is reported as ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Clinic, error) {
	if id <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[clinics.Get] invalid id %d", id)
	}
	if cached, ok := s.cached(clinicKey(id)); ok {
		c := cached.(Clinic)
		return &c, nil
	}

	var c Clinic
	path := fmt.Sprintf("%s%d/", clinicsPath, id)
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodGet, Path: path}, &c); err != nil {
		if apiclient.StatusCode(err) == http.StatusNotFound {
			return nil, errors.Wrapf(errors.ErrNotFound, "[clinics.Get] clinic %d", id)
		}
		return nil, err
	}
	s.store(clinicKey(id), c)
	return &c, nil
}

// Nearest returns up to 20 clinics within radiusKm of the point. radiusKm <= 0
// uses DefaultRadiusKm.
func (s *Service) Nearest(ctx context.Context, lat, lng, radiusKm float64) ([]Clinic, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[clinics.Nearest] invalid coordinates %f,%f", lat, lng)
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	query := url.Values{}
	query.Set("lat", formatFloat(lat))
	query.Set("lng", formatFloat(lng))
	query.Set("radius", formatFloat(radiusKm))
	query.Set("page_size", strconv.Itoa(nearestPageSize))

	var page apiclient.Page[Clinic]
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodGet, Path: clinicsPath, Query: query}, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// AISearch asks the backend to match clinics to a free text description.
func (s *Service) AISearch(ctx context.Context, req AISearchRequest) (*AISearchResult, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.CityName = strings.TrimSpace(req.CityName)
	if req.Query == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[clinics.AISearch] query is required")
	}

	var out AISearchResult
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodPost, Path: aiSearchPath, Body: req}, &out); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("query", req.Query).Int("found", out.TotalFound).Msg("ai clinic search")
	return &out, nil
}

// Invalidate drops every cached clinic.
func (s *Service) Invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func (s *Service) cached(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) store(key string, v any) {
	if s.cache != nil {
		s.cache.Set(key, v, cache.DefaultExpiration)
	}
}

func clinicKey(id int64) string {
	return "clinics:" + strconv.FormatInt(id, 10)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func cloneList(in []Clinic) []Clinic {
	if in == nil {
		return []Clinic{}
	}
	out := make([]Clinic, len(in))
	copy(out, in)
	return out
}
