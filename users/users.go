package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RoleType is the account role reported by the backend
type RoleType string

const (
	RolePatient RoleType = "patient"
	RoleDoctor  RoleType = "doctor"
	RoleAdmin   RoleType = "admin"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

const defaultDisplayName = "User"

// ID is a backend identifier. The API sends user ids as strings and most other ids as
// numbers, so both decode into the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("users.ID: unsupported value %s", string(data))
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// User is the snapshot kept by the session and persisted under the "user" key.
type User struct {
	ID    ID       `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  RoleType `json:"role,omitempty"`
}

func (u *User) IsDoctor() bool {
	return u != nil && u.Role == RoleDoctor
}

// Profile is the full record served by /user-profile/.
type Profile struct {
	ID                    ID       `json:"id"`
	FirstName             string   `json:"first_name"`
	LastName              string   `json:"last_name"`
	Name                  string   `json:"name,omitempty"`
	Email                 string   `json:"email"`
	Phone                 string   `json:"phone,omitempty"`
	Role                  RoleType `json:"role,omitempty"`
	BirthDate             string   `json:"birth_date,omitempty"`
	Gender                Gender   `json:"gender,omitempty"`
	Address               string   `json:"address,omitempty"`
	City                  string   `json:"city,omitempty"`
	BloodType             string   `json:"blood_type,omitempty"`
	FluorographyStatus    string   `json:"fluorography_status,omitempty"`
	ImmunizationStatus    string   `json:"immunization_status,omitempty"`
	Allergies             []string `json:"allergies,omitempty"`
	ChronicDiseases       []string `json:"chronic_diseases,omitempty"`
	Medications           []string `json:"medications,omitempty"`
	EmergencyContactName  string   `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string   `json:"emergency_contact_phone,omitempty"`
	ProfilePicture        string   `json:"profile_picture,omitempty"`
	CreatedAt             string   `json:"created_at,omitempty"`
	UpdatedAt             string   `json:"updated_at,omitempty"`
}

// DisplayName prefers the first name, then the combined name, then a generic label.
func (p *Profile) DisplayName() string {
	if p == nil {
		return defaultDisplayName
	}
	if n := strings.TrimSpace(p.FirstName); n != "" {
		return n
	}
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return defaultDisplayName
}

// Snapshot reduces a profile to the session user. fallbackEmail is used when the
// backend omitted the email, e.g. straight after registration.
func (p *Profile) Snapshot(fallbackEmail string) *User {
	u := &User{
		ID:    p.ID,
		Name:  p.DisplayName(),
		Email: p.Email,
		Role:  p.Role,
	}
	if u.Email == "" {
		u.Email = fallbackEmail
	}
	return u
}

// Doctor is a practitioner available for consultations.
type Doctor struct {
	ID                 ID       `json:"id"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone,omitempty"`
	Specialization     string   `json:"specialization"`
	ExperienceYears    int      `json:"experience_years,omitempty"`
	Bio                string   `json:"bio,omitempty"`
	ProfilePicture     string   `json:"profile_picture,omitempty"`
	IsAvailable        bool     `json:"is_available"`
	Rating             float64  `json:"rating,omitempty"`
	ConsultationsCount int      `json:"consultations_count,omitempty"`
	Education          string   `json:"education,omitempty"`
	Certifications     []string `json:"certifications,omitempty"`
	Languages          []string `json:"languages,omitempty"`
}

func (d Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}
