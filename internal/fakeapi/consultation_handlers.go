package fakeapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/zhancare-client/consultations"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
)

const (
	dateLayout      = "2006-01-02"
	meetingBaseURL  = "https://meet.zhancare.local/"
	defaultDuration = 30
)

var specialtyCost = map[consultations.Specialty]float64{
	consultations.SpecialtyGeneral: 5000,
}

const specialistCost = 8000

func (s *Server) handleAvailableDoctors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.availableDoctors(r.URL.Query().Get("specialty")))
}

func (s *Server) handleMyConsultations(w http.ResponseWriter, r *http.Request) {
	keep, err := consultationFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.data.consultationsFor(accountFrom(r.Context()).ID, keep))
}

// consultationFilter builds the predicate for the status, type, search and date
// query parameters. Status and type take comma separated lists.
func consultationFilter(r *http.Request) (func(consultations.Consultation) bool, error) {
	q := r.URL.Query()
	statuses := splitSet(q.Get("status"))
	types := splitSet(q.Get("type"))
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))

	var from, to time.Time
	if raw := q.Get("date_from"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("date_from must be YYYY-MM-DD")
		}
		from = t
	}
	if raw := q.Get("date_to"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("date_to must be YYYY-MM-DD")
		}
		to = t.AddDate(0, 0, 1)
	}

	return func(c consultations.Consultation) bool {
		if len(statuses) > 0 && !statuses[string(c.Status)] {
			return false
		}
		if len(types) > 0 && !types[string(c.Type)] {
			return false
		}
		if search != "" {
			text := strings.ToLower(c.Symptoms + " " + c.DoctorName() + " " + c.DoctorSpecialization)
			if !strings.Contains(text, search) {
				return false
			}
		}
		when := c.CreatedAt
		if c.ScheduledAt != nil {
			when = *c.ScheduledAt
		}
		if !from.IsZero() && when.Before(from) {
			return false
		}
		if !to.IsZero() && !when.Before(to) {
			return false
		}
		return true
	}, nil
}

func splitSet(raw string) map[string]bool {
	set := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			set[part] = true
		}
	}
	return set
}

func (s *Server) handleCreateConsultation(w http.ResponseWriter, r *http.Request) {
	var in consultations.CreateRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	fields := map[string][]string{}
	if strings.TrimSpace(in.Symptoms) == "" {
		fields["symptoms"] = []string{"This field is required."}
	}
	if in.ScheduledAt != nil && in.ScheduledAt.Before(s.nowFunc()) {
		fields["scheduled_at"] = []string{"Scheduled time must be in the future."}
	}
	var doctor *users.Doctor
	if in.DoctorID != nil {
		d, ok := s.data.doctor(users.ID(fmt.Sprint(*in.DoctorID)))
		if !ok || !d.IsAvailable {
			fields["doctor_id"] = []string{"Doctor is not available."}
		} else {
			doctor = &d
		}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	account := accountFrom(r.Context())
	c := consultations.Consultation{
		PatientName:      account.DisplayName(),
		PatientFirstName: account.FirstName,
		PatientLastName:  account.LastName,
		PatientPhone:     account.Phone,
		Status:           consultations.StatusPending,
		Symptoms:         strings.TrimSpace(in.Symptoms),
		Type:             in.Type,
		ConsultationType: in.ConsultationType,
		ScheduledAt:      in.ScheduledAt,
		DoctorID:         in.DoctorID,
		DurationMinutes:  defaultDuration,
	}
	if account.Email != "" {
		email := account.Email
		c.PatientEmail = &email
	}
	if in.IsUrgent != nil {
		c.IsUrgent = *in.IsUrgent
	}
	if c.Type == "" {
		c.Type = consultations.TypeVideo
	}
	if c.ConsultationType == "" {
		c.ConsultationType = consultations.SpecialtyGeneral
	}
	if c.ScheduledAt != nil {
		c.Status = consultations.StatusScheduled
	}
	if doctor != nil {
		c.DoctorFirstName = doctor.FirstName
		c.DoctorLastName = doctor.LastName
		c.DoctorSpecialization = doctor.Specialization
	}
	c.Cost = specialistCost
	if cost, ok := specialtyCost[c.ConsultationType]; ok {
		c.Cost = cost
	}

	created := s.data.addConsultation(account.ID, c)
	s.logger.Info().Int64("consultation_id", created.ID).Str("user_id", account.ID.String()).Msg("consultation booked")
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetConsultation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := s.data.consultation(accountFrom(r.Context()).ID, id)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCancelConsultation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := s.data.updateConsultation(accountFrom(r.Context()).ID, id, func(c *consultations.Consultation) error {
		if !c.Status.Upcoming() {
			return errors.Wrapf(errors.ErrInvalidInput, "consultation %d is %s", c.ID, c.Status)
		}
		c.Status = consultations.StatusCancelled
		return nil
	})
	switch {
	case errors.Is(err, errors.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, errors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Only upcoming consultations can be cancelled.")
	case err != nil:
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
	default:
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *Server) handleJoinConsultation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := s.data.consultation(accountFrom(r.Context()).ID, id)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if !c.Status.Upcoming() && c.Status != consultations.StatusOngoing {
		writeError(w, http.StatusBadRequest, "This consultation cannot be joined.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"meeting_url": meetingBaseURL + c.MeetingID})
}
