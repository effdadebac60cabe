package consultations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
)

const (
	basePath         = "/consultations/"
	minePath         = "/consultations/my-consultations/"
	availableDocPath = "/auth/doctor/available/"

	dateLayout = "2006-01-02"
)

// Service manages the patient's consultations. Every call is authenticated.
type Service struct {
	api     apiclient.JSONDoer
	logger  zerolog.Logger
	nowFunc func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithNowFunc(f func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = f
	}
}

func NewService(api apiclient.JSONDoer, opts ...Option) (*Service, error) {
	if api == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[consultations.NewService] api is required")
	}
	s := &Service{api: api, logger: zerolog.Nop(), nowFunc: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mine lists the current user's consultations.
func (s *Service) Mine(ctx context.Context, f Filters) ([]Consultation, error) {
	query, err := f.query()
	if err != nil {
		return nil, err
	}
	var page apiclient.Page[Consultation]
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodGet, Path: minePath, Query: query}, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		return []Consultation{}, nil
	}
	return page.Results, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Consultation, error) {
	var c Consultation
	if err := s.call(ctx, http.MethodGet, id, "", nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create books a consultation and returns it as stored by the backend.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Consultation, error) {
	req.Symptoms = strings.TrimSpace(req.Symptoms)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	var c Consultation
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodPost, Path: basePath, Body: req}, &c); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("consultation_id", c.ID).Str("type", string(c.Type)).Msg("consultation booked")
	return &c, nil
}

func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.call(ctx, http.MethodPost, id, "cancel/", nil, nil)
}

// Join returns the meeting URL of an upcoming or ongoing consultation.
func (s *Service) Join(ctx context.Context, id int64) (string, error) {
	var out joinResponse
	if err := s.call(ctx, http.MethodPost, id, "join/", nil, &out); err != nil {
		return "", err
	}
	if out.MeetingURL == "" {
		return "", errors.Wrapf(errors.ErrNotFound, "[consultations.Join] no meeting url for %d", id)
	}
	return out.MeetingURL, nil
}

// AvailableDoctors lists doctors accepting consultations, optionally for one specialty.
func (s *Service) AvailableDoctors(ctx context.Context, specialty Specialty) ([]users.Doctor, error) {
	var query url.Values
	if specialty != "" {
		query = url.Values{"specialty": {string(specialty)}}
	}
	var page apiclient.Page[users.Doctor]
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodGet, Path: availableDocPath, Query: query}, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (s *Service) call(ctx context.Context, method string, id int64, action string, in, out any) error {
	if id <= 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "[consultations] invalid id %d", id)
	}
	path := fmt.Sprintf("%s%d/%s", basePath, id, action)
	err := s.api.DoJSON(ctx, apiclient.Request{Method: method, Path: path, Body: in}, out)
	if apiclient.StatusCode(err) == http.StatusNotFound {
		return errors.Wrapf(errors.ErrNotFound, "[consultations] consultation %d", id)
	}
	return err
}

func (s *Service) validate(req CreateRequest) error {
	if req.Symptoms == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[consultations.Create] symptoms are required")
	}
	if req.Type != "" && !validTypes[req.Type] {
		return errors.Wrapf(errors.ErrInvalidInput, "[consultations.Create] unknown type %q", req.Type)
	}
	if req.ConsultationType != "" && !validSpecialties[req.ConsultationType] {
		return errors.Wrapf(errors.ErrInvalidInput, "[consultations.Create] unknown specialty %q", req.ConsultationType)
	}
	if req.ScheduledAt != nil && req.ScheduledAt.Before(s.nowFunc()) {
		return errors.Wrapf(errors.ErrInvalidInput, "[consultations.Create] scheduled time is in the past")
	}
	return nil
}

func (f Filters) query() (url.Values, error) {
	q := url.Values{}
	if len(f.Status) > 0 {
		parts := make([]string, len(f.Status))
		for i, st := range f.Status {
			parts[i] = string(st)
		}
		q.Set("status", strings.Join(parts, ","))
	}
	if len(f.Types) > 0 {
		parts := make([]string, len(f.Types))
		for i, t := range f.Types {
			parts[i] = string(t)
		}
		q.Set("type", strings.Join(parts, ","))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	for key, value := range map[string]string{"date_from": f.DateFrom, "date_to": f.DateTo} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, value); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "[consultations] %s must be YYYY-MM-DD", key)
		}
		q.Set(key, value)
	}
	return q, nil
}
