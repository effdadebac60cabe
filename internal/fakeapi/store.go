package fakeapi

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrsteele09/zhancare-client/clinics"
	"github.com/jrsteele09/zhancare-client/consultations"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
)

const earthRadiusKm = 6371.0

type placedClinic struct {
	clinics.Clinic
	distanceKm float64
}

// dataset holds the clinics, doctors and consultations served by the fake backend.
type dataset struct {
	lock          sync.RWMutex
	clinics       []clinics.Clinic
	doctors       []users.Doctor
	consultations map[int64]*consultations.Consultation
	owners        map[int64]users.ID
	nextID        int64
	nowFunc       func() time.Time
}

func newDataset(nowFunc func() time.Time) *dataset {
	return &dataset{
		consultations: make(map[int64]*consultations.Consultation),
		owners:        make(map[int64]users.ID),
		nextID:        1,
		nowFunc:       nowFunc,
	}
}

func (d *dataset) addClinic(c clinics.Clinic) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.clinics = append(d.clinics, c)
}

func (d *dataset) listClinics() []clinics.Clinic {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return append([]clinics.Clinic(nil), d.clinics...)
}

func (d *dataset) clinic(id int64) (clinics.Clinic, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, c := range d.clinics {
		if c.ID == id {
			return c, true
		}
	}
	return clinics.Clinic{}, false
}

// nearestClinics returns clinics within radiusKm of the point, closest first.
func (d *dataset) nearestClinics(lat, lng, radiusKm float64) []clinics.Clinic {
	placed := make([]placedClinic, 0)
	for _, c := range d.listClinics() {
		dist := distanceKm(lat, lng, c.Latitude, c.Longitude)
		if dist <= radiusKm {
			placed = append(placed, placedClinic{Clinic: c, distanceKm: dist})
		}
	}
	sort.SliceStable(placed, func(i, j int) bool {
		return placed[i].distanceKm < placed[j].distanceKm
	})
	out := make([]clinics.Clinic, len(placed))
	for i, p := range placed {
		out[i] = p.Clinic
	}
	return out
}

// distanceKm is the haversine distance between two points.
func distanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func (d *dataset) addDoctor(doc users.Doctor) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.doctors = append(d.doctors, doc)
}

func (d *dataset) availableDoctors(specialty string) []users.Doctor {
	d.lock.RLock()
	defer d.lock.RUnlock()
	out := make([]users.Doctor, 0, len(d.doctors))
	for _, doc := range d.doctors {
		if !doc.IsAvailable {
			continue
		}
		if specialty != "" && !strings.EqualFold(doc.Specialization, specialty) {
			continue
		}
		out = append(out, doc)
	}
	return out
}

func (d *dataset) doctor(id users.ID) (users.Doctor, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, doc := range d.doctors {
		if doc.ID == id {
			return doc, true
		}
	}
	return users.Doctor{}, false
}

// addConsultation stores c for owner, assigning the id, meeting id and creation time.
func (d *dataset) addConsultation(owner users.ID, c consultations.Consultation) consultations.Consultation {
	d.lock.Lock()
	defer d.lock.Unlock()
	c.ID = d.nextID
	d.nextID++
	if c.MeetingID == "" {
		c.MeetingID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = d.nowFunc().UTC()
	}
	stored := c
	d.consultations[c.ID] = &stored
	d.owners[c.ID] = owner
	return c
}

// consultationsFor returns the owner's consultations accepted by keep, newest first.
func (d *dataset) consultationsFor(owner users.ID, keep func(consultations.Consultation) bool) []consultations.Consultation {
	d.lock.RLock()
	defer d.lock.RUnlock()
	out := make([]consultations.Consultation, 0)
	for id, c := range d.consultations {
		if d.owners[id] != owner || !keep(*c) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (d *dataset) consultation(owner users.ID, id int64) (consultations.Consultation, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	c, ok := d.consultations[id]
	if !ok || d.owners[id] != owner {
		return consultations.Consultation{}, errors.ErrNotFound
	}
	return *c, nil
}

// updateConsultation applies fn to the owner's consultation under the write lock.
func (d *dataset) updateConsultation(owner users.ID, id int64, fn func(*consultations.Consultation) error) (consultations.Consultation, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	c, ok := d.consultations[id]
	if !ok || d.owners[id] != owner {
		return consultations.Consultation{}, errors.ErrNotFound
	}
	updated := *c
	if err := fn(&updated); err != nil {
		return consultations.Consultation{}, err
	}
	*c = updated
	return updated, nil
}
