package consultations

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusMissed    Status = "missed"
	StatusScheduled Status = "scheduled"
	StatusPlanned   Status = "planned"
)

// Upcoming reports whether the consultation has not happened yet.
func (s Status) Upcoming() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusPlanned:
		return true
	}
	return false
}

// Type is the channel the consultation runs over.
type Type string

const (
	TypeVideo Type = "video"
	TypePhone Type = "phone"
	TypeChat  Type = "chat"
)

// Specialty is the medical area of a consultation.
type Specialty string

const (
	SpecialtyGeneral     Specialty = "general"
	SpecialtyCardiology  Specialty = "cardiology"
	SpecialtyPsychiatry  Specialty = "psychiatry"
	SpecialtyPediatric   Specialty = "pediatric"
	SpecialtyNeurology   Specialty = "neurology"
	SpecialtyDermatology Specialty = "dermatology"
	SpecialtyOrthopedic  Specialty = "orthopedic"
)

var validTypes = map[Type]bool{TypeVideo: true, TypePhone: true, TypeChat: true}

var validSpecialties = map[Specialty]bool{
	SpecialtyGeneral:     true,
	SpecialtyCardiology:  true,
	SpecialtyPsychiatry:  true,
	SpecialtyPediatric:   true,
	SpecialtyNeurology:   true,
	SpecialtyDermatology: true,
	SpecialtyOrthopedic:  true,
}

type Consultation struct {
	ID                   int64      `json:"id"`
	MeetingID            string     `json:"meeting_id"`
	PatientName          string     `json:"patient_name"`
	PatientEmail         *string    `json:"patient_email"`
	PatientPhone         string     `json:"patient_phone,omitempty"`
	Status               Status     `json:"status"`
	DoctorID             *int64     `json:"doctor_id,omitempty"`
	DoctorFirstName      string     `json:"doctor_first_name,omitempty"`
	DoctorLastName       string     `json:"doctor_last_name,omitempty"`
	DoctorSpecialization string     `json:"doctor_specialization,omitempty"`
	PatientFirstName     string     `json:"patient_first_name,omitempty"`
	PatientLastName      string     `json:"patient_last_name,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	EndedAt              *time.Time `json:"ended_at,omitempty"`
	ScheduledAt          *time.Time `json:"scheduled_at,omitempty"`
	Symptoms             string     `json:"symptoms,omitempty"`
	Diagnosis            string     `json:"diagnosis,omitempty"`
	Prescription         string     `json:"prescription,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	IsUrgent             bool       `json:"is_urgent,omitempty"`
	Type                 Type       `json:"type,omitempty"`
	ConsultationType     Specialty  `json:"consultation_type,omitempty"`
	DurationMinutes      int        `json:"duration_minutes,omitempty"`
	Cost                 float64    `json:"cost,omitempty"`
}

// DoctorName is empty until a doctor has been assigned.
func (c Consultation) DoctorName() string {
	return strings.TrimSpace(c.DoctorFirstName + " " + c.DoctorLastName)
}

// Filters narrows Mine. Zero values are not sent.
type Filters struct {
	Status   []Status
	Types    []Type
	Search   string
	DateFrom string // YYYY-MM-DD
	DateTo   string
}

// CreateRequest books a consultation. Only Symptoms is required.
type CreateRequest struct {
	Symptoms         string     `json:"symptoms"`
	Type             Type       `json:"type,omitempty"`
	ConsultationType Specialty  `json:"consultation_type,omitempty"`
	IsUrgent         *bool      `json:"is_urgent,omitempty"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	DoctorID         *int64     `json:"doctor_id,omitempty"`
}

type joinResponse struct {
	MeetingURL string `json:"meeting_url"`
}
