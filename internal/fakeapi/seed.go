package fakeapi

import (
	"time"

	"github.com/jrsteele09/zhancare-client/clinics"
	"github.com/jrsteele09/zhancare-client/consultations"
	"github.com/jrsteele09/zhancare-client/internal/utils"
	"github.com/jrsteele09/zhancare-client/users"
)

// Demo accounts created when the server is seeded.
const (
	DemoPatientEmail = "patient@zhancare.kz"
	DemoDoctorEmail  = "doctor@zhancare.kz"
	DemoPassword     = "password123"
	DemoPatientID    = users.ID("1")
)

var seedClinics = []clinics.Clinic{
	{
		ID: 1, Name: "Almaty City Polyclinic No. 5", Address: "Abai Ave 52, Almaty",
		Latitude: 43.2389, Longitude: 76.8897, Phone: "+7 727 250 1234",
		Description:  "Family medicine, diagnostics and vaccinations.",
		WorkingHours: "Mon-Fri 08:00-20:00, Sat 09:00-14:00", Rating: 4.3,
		Services: []string{"general practice", "vaccination", "laboratory", "fluorography"},
	},
	{
		ID: 2, Name: "Heart Center Almaty", Address: "Tole Bi St 99, Almaty",
		Latitude: 43.2520, Longitude: 76.9030, Phone: "+7 727 330 4400",
		Description:  "Cardiology clinic with ECG and echocardiography.",
		WorkingHours: "Mon-Sat 08:00-18:00", Rating: 4.7,
		Services: []string{"cardiology", "ecg", "echocardiography"},
	},
	{
		ID: 3, Name: "Children's Clinic Balausa", Address: "Dostyk Ave 180, Almaty",
		Latitude: 43.2100, Longitude: 76.9570, Phone: "+7 727 264 1010",
		Description:  "Pediatric care and child dermatology.",
		WorkingHours: "Daily 09:00-21:00", Rating: 4.5,
		Services: []string{"pediatrics", "dermatology", "vaccination"},
	},
	{
		ID: 4, Name: "Astana Neuro Clinic", Address: "Kabanbay Batyr Ave 42, Astana",
		Latitude: 51.0900, Longitude: 71.4180, Phone: "+7 7172 55 2020",
		Description:  "Neurology and sleep medicine.",
		WorkingHours: "Mon-Fri 09:00-18:00", Rating: 4.6,
		Services: []string{"neurology", "mri", "sleep study"},
	},
}

var seedDoctors = []users.Doctor{
	{
		ID: "101", FirstName: "Dana", LastName: "Seitkali", Email: DemoDoctorEmail,
		Specialization: string(consultations.SpecialtyGeneral), ExperienceYears: 12,
		IsAvailable: true, Rating: 4.8, Languages: []string{"ru", "kz", "en"},
	},
	{
		ID: "102", FirstName: "Arman", LastName: "Zhakupov", Email: "cardio@zhancare.kz",
		Specialization: string(consultations.SpecialtyCardiology), ExperienceYears: 20,
		IsAvailable: true, Rating: 4.9, Languages: []string{"ru", "kz"},
	},
	{
		ID: "103", FirstName: "Saule", LastName: "Omarova", Email: "neuro@zhancare.kz",
		Specialization: string(consultations.SpecialtyNeurology), ExperienceYears: 8,
		IsAvailable: false, Rating: 4.4, Languages: []string{"ru"},
	},
}

// seedData creates the demo patient, one account per seeded doctor, the sample
// clinics and two consultations for the patient.
func (s *Server) seedData() error {
	hash, err := users.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	now := s.nowFunc().UTC()
	created := now.Format(time.RFC3339)

	patient := &users.Account{
		Profile: users.Profile{
			ID: DemoPatientID, FirstName: "Aigerim", LastName: "Nurlanova",
			Email: DemoPatientEmail, Phone: "+77011234567", Role: users.RolePatient,
			City: "Almaty", BloodType: "A+", Allergies: []string{"penicillin"},
			CreatedAt: created, UpdatedAt: created,
		},
		PasswordHash: hash,
	}
	if err := s.accounts.Upsert(patient); err != nil {
		return err
	}
	for _, doc := range seedDoctors {
		account := &users.Account{
			Profile: users.Profile{
				ID: doc.ID, FirstName: doc.FirstName, LastName: doc.LastName,
				Email: doc.Email, Role: users.RoleDoctor, CreatedAt: created, UpdatedAt: created,
			},
			PasswordHash: hash,
		}
		if err := s.accounts.Upsert(account); err != nil {
			return err
		}
		s.data.addDoctor(doc)
	}
	for _, c := range seedClinics {
		s.data.addClinic(c)
	}

	email := DemoPatientEmail
	past := now.Add(-72 * time.Hour)
	ended := past.Add(25 * time.Minute)
	s.data.addConsultation(DemoPatientID, consultations.Consultation{
		PatientName: patient.DisplayName(), PatientEmail: &email,
		Status: consultations.StatusCompleted, Type: consultations.TypeVideo,
		ConsultationType: consultations.SpecialtyGeneral, DoctorID: utils.Ptr(int64(101)),
		DoctorFirstName: "Dana", DoctorLastName: "Seitkali", DoctorSpecialization: "general",
		Symptoms: "Sore throat and mild fever", Diagnosis: "Acute pharyngitis",
		CreatedAt: past.Add(-time.Hour), StartedAt: &past, EndedAt: &ended,
		DurationMinutes: 25, Cost: 5000,
	})
	upcoming := now.Add(48 * time.Hour).Truncate(time.Hour)
	s.data.addConsultation(DemoPatientID, consultations.Consultation{
		PatientName: patient.DisplayName(), PatientEmail: &email,
		Status: consultations.StatusScheduled, Type: consultations.TypeVideo,
		ConsultationType: consultations.SpecialtyCardiology, DoctorID: utils.Ptr(int64(102)),
		DoctorFirstName: "Arman", DoctorLastName: "Zhakupov", DoctorSpecialization: "cardiology",
		Symptoms: "Palpitations after exercise", CreatedAt: now.Add(-time.Hour),
		ScheduledAt: &upcoming, DurationMinutes: 30, Cost: 8000,
	})
	return nil
}
