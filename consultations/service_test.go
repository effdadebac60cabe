package consultations_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/consultations"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/internal/utils"
)

// fakeAPI answers by "METHOD path" and records every request.
type fakeAPI struct {
	responses map[string]string
	statuses  map[string]int
	requests  []apiclient.Request
}

var _ apiclient.JSONDoer = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{responses: map[string]string{}, statuses: map[string]int{}}
}

func (f *fakeAPI) DoJSON(_ context.Context, req apiclient.Request, out any) error {
	f.requests = append(f.requests, req)
	key := req.Method + " " + req.Path
	if status, ok := f.statuses[key]; ok {
		return &apiclient.Error{Kind: apiclient.KindStatus, Method: req.Method, Path: req.Path, Status: status}
	}
	body, ok := f.responses[key]
	if !ok {
		return &apiclient.Error{Kind: apiclient.KindStatus, Method: req.Method, Path: req.Path, Status: http.StatusNotFound}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeAPI) last() apiclient.Request {
	return f.requests[len(f.requests)-1]
}

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*fakeAPI, *consultations.Service) {
	t.Helper()
	api := newFakeAPI()
	svc, err := consultations.NewService(api, consultations.WithNowFunc(func() time.Time { return now }))
	require.NoError(t, err)
	return api, svc
}

const consultationJSON = `{
	"id": 12,
	"meeting_id": "zc-12",
	"patient_name": "Aigerim N.",
	"patient_email": null,
	"status": "scheduled",
	"doctor_id": 3,
	"doctor_first_name": "Serik",
	"doctor_last_name": "Akhmetov",
	"created_at": "2025-02-27T10:00:00Z",
	"scheduled_at": "2025-03-02T09:30:00Z",
	"symptoms": "Headache",
	"type": "video",
	"consultation_type": "neurology",
	"is_urgent": true
}`

func TestService_Mine(t *testing.T) {
	t.Run("filters are encoded", func(t *testing.T) {
		api, svc := setup(t)
		api.responses["GET /consultations/my-consultations/"] = `{"results":[` + consultationJSON + `],"count":1}`

		list, err := svc.Mine(context.Background(), consultations.Filters{
			Status:   []consultations.Status{consultations.StatusScheduled, consultations.StatusPending},
			Types:    []consultations.Type{consultations.TypeVideo},
			Search:   " head ",
			DateFrom: "2025-01-01",
		})
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "Serik Akhmetov", list[0].DoctorName())
		require.True(t, list[0].Status.Upcoming())
		require.Nil(t, list[0].PatientEmail)

		q := api.last().Query
		require.Equal(t, "scheduled,pending", q.Get("status"))
		require.Equal(t, "video", q.Get("type"))
		require.Equal(t, "head", q.Get("search"))
		require.Equal(t, "2025-01-01", q.Get("date_from"))
		require.False(t, q.Has("date_to"))
	})

	t.Run("bare array and empty", func(t *testing.T) {
		api, svc := setup(t)
		api.responses["GET /consultations/my-consultations/"] = `[]`

		list, err := svc.Mine(context.Background(), consultations.Filters{})
		require.NoError(t, err)
		require.NotNil(t, list)
		require.Empty(t, list)
		require.Empty(t, api.last().Query)
	})

	t.Run("bad date", func(t *testing.T) {
		api, svc := setup(t)
		_, err := svc.Mine(context.Background(), consultations.Filters{DateTo: "01/03/2025"})
		require.ErrorIs(t, err, errors.ErrInvalidInput)
		require.Empty(t, api.requests)
	})
}

func TestService_Get(t *testing.T) {
	api, svc := setup(t)
	api.responses["GET /consultations/12/"] = consultationJSON

	c, err := svc.Get(context.Background(), 12)
	require.NoError(t, err)
	require.Equal(t, consultations.SpecialtyNeurology, c.ConsultationType)
	require.Equal(t, time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC), c.ScheduledAt.UTC())

	_, err = svc.Get(context.Background(), 13)
	require.ErrorIs(t, err, errors.ErrNotFound)

	_, err = svc.Get(context.Background(), -1)
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestService_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		api, svc := setup(t)
		api.responses["POST /consultations/"] = consultationJSON

		at := now.Add(24 * time.Hour)
		c, err := svc.Create(context.Background(), consultations.CreateRequest{
			Symptoms:         "  Headache ",
			Type:             consultations.TypeVideo,
			ConsultationType: consultations.SpecialtyNeurology,
			IsUrgent:         utils.Ptr(true),
			ScheduledAt:      &at,
			DoctorID:         utils.Ptr(int64(3)),
		})
		require.NoError(t, err)
		require.Equal(t, int64(12), c.ID)

		raw, err := json.Marshal(api.last().Body)
		require.NoError(t, err)
		require.JSONEq(t, `{
			"symptoms": "Headache",
			"type": "video",
			"consultation_type": "neurology",
			"is_urgent": true,
			"scheduled_at": "2025-03-02T09:00:00Z",
			"doctor_id": 3
		}`, string(raw))
	})

	t.Run("optional fields omitted", func(t *testing.T) {
		api, svc := setup(t)
		api.responses["POST /consultations/"] = consultationJSON

		_, err := svc.Create(context.Background(), consultations.CreateRequest{Symptoms: "Cough"})
		require.NoError(t, err)
		raw, err := json.Marshal(api.last().Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"symptoms":"Cough"}`, string(raw))
	})

	t.Run("validation", func(t *testing.T) {
		past := now.Add(-time.Hour)
		for name, req := range map[string]consultations.CreateRequest{
			"no symptoms":   {Symptoms: "  "},
			"unknown type":  {Symptoms: "x", Type: "fax"},
			"unknown field": {Symptoms: "x", ConsultationType: "astrology"},
			"in the past":   {Symptoms: "x", ScheduledAt: &past},
		} {
			t.Run(name, func(t *testing.T) {
				api, svc := setup(t)
				_, err := svc.Create(context.Background(), req)
				require.ErrorIs(t, err, errors.ErrInvalidInput)
				require.Empty(t, api.requests)
			})
		}
	})

	t.Run("backend validation error passes through", func(t *testing.T) {
		api, svc := setup(t)
		api.statuses["POST /consultations/"] = http.StatusBadRequest

		_, err := svc.Create(context.Background(), consultations.CreateRequest{Symptoms: "Cough"})
		require.Equal(t, http.StatusBadRequest, apiclient.StatusCode(err))
	})
}

func TestService_CancelAndJoin(t *testing.T) {
	api, svc := setup(t)
	api.responses["POST /consultations/12/cancel/"] = `{}`
	api.responses["POST /consultations/12/join/"] = `{"meeting_url":"https://meet.zhancare.kz/zc-12"}`
	api.responses["POST /consultations/13/join/"] = `{}`

	require.NoError(t, svc.Cancel(context.Background(), 12))
	require.Nil(t, api.last().Body)

	u, err := svc.Join(context.Background(), 12)
	require.NoError(t, err)
	require.Equal(t, "https://meet.zhancare.kz/zc-12", u)

	_, err = svc.Join(context.Background(), 13)
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.ErrorIs(t, svc.Cancel(context.Background(), 14), errors.ErrNotFound)
}

func TestService_AvailableDoctors(t *testing.T) {
	api, svc := setup(t)
	api.responses["GET /auth/doctor/available/"] = `[{"id":3,"first_name":"Serik","last_name":"Akhmetov","specialization":"neurology","is_available":true}]`

	docs, err := svc.AvailableDoctors(context.Background(), consultations.SpecialtyNeurology)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "Serik Akhmetov", docs[0].FullName())
	require.Equal(t, "neurology", api.last().Query.Get("specialty"))

	_, err = svc.AvailableDoctors(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, api.last().Query)
}
