package fakeapi

import (
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jrsteele09/zhancare-client/profile"
	"github.com/jrsteele09/zhancare-client/users"
)

const pictureField = "profile_picture"

var pictureExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, accountFrom(r.Context()).Profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in profile.UpdateRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Phone != nil && *in.Phone != "" && (len(*in.Phone) < 10 || len(*in.Phone) > 20) {
		writeFieldErrors(w, map[string][]string{"phone": {"Enter a valid phone number."}})
		return
	}

	account := accountFrom(r.Context())
	applyUpdate(&account.Profile, in)
	account.UpdatedAt = s.timestamp()
	if err := s.accounts.Upsert(account); err != nil {
		s.logger.Error().Err(err).Msg("store account")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeJSON(w, http.StatusOK, account.Profile)
}

func applyUpdate(p *users.Profile, in profile.UpdateRequest) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setList := func(dst *[]string, src *[]string) {
		if src != nil {
			*dst = append([]string(nil), (*src)...)
		}
	}
	setString(&p.FirstName, in.FirstName)
	setString(&p.LastName, in.LastName)
	setString(&p.Phone, in.Phone)
	setString(&p.BirthDate, in.BirthDate)
	if in.Gender != nil {
		p.Gender = users.Gender(*in.Gender)
	}
	setString(&p.Address, in.Address)
	setString(&p.City, in.City)
	setString(&p.BloodType, in.BloodType)
	setList(&p.Allergies, in.Allergies)
	setList(&p.ChronicDiseases, in.ChronicDiseases)
	setList(&p.Medications, in.Medications)
	setString(&p.EmergencyContactName, in.EmergencyContactName)
	setString(&p.EmergencyContactPhone, in.EmergencyContactPhone)
}

func (s *Server) handleUploadPicture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, profile.MaxPictureSize+1<<20)
	file, _, err := r.FormFile(pictureField)
	if err != nil {
		writeFieldErrors(w, map[string][]string{pictureField: {"No file was submitted."}})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, profile.MaxPictureSize+1))
	if err != nil || len(data) == 0 || len(data) > profile.MaxPictureSize {
		writeFieldErrors(w, map[string][]string{pictureField: {"Upload an image of at most 5 MB."}})
		return
	}
	ext, ok := pictureExtensions[http.DetectContentType(data)]
	if !ok {
		writeFieldErrors(w, map[string][]string{pictureField: {"Upload a valid image."}})
		return
	}

	account := accountFrom(r.Context())
	account.ProfilePicture = mediaURL(r, "/media/profile_pictures/"+uuid.New().String()+ext)
	account.UpdatedAt = s.timestamp()
	if err := s.accounts.Upsert(account); err != nil {
		s.logger.Error().Err(err).Msg("store account")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{pictureField: account.ProfilePicture})
}

func mediaURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}
