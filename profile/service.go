package profile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
)

const (
	profilePath = "/user-profile/"
	updatePath  = "/user-profile/profile/"
	uploadPath  = "/user-profile/upload-picture/"

	pictureField   = "profile_picture"
	MaxPictureSize = 5 << 20
)

var allowedPictureTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// UpdateRequest is a partial profile update. Nil fields are left unchanged.
type UpdateRequest struct {
	FirstName             *string   `json:"first_name,omitempty"`
	LastName              *string   `json:"last_name,omitempty"`
	Phone                 *string   `json:"phone,omitempty"`
	BirthDate             *string   `json:"birth_date,omitempty"`
	Gender                *string   `json:"gender,omitempty"`
	Address               *string   `json:"address,omitempty"`
	City                  *string   `json:"city,omitempty"`
	BloodType             *string   `json:"blood_type,omitempty"`
	Allergies             *[]string `json:"allergies,omitempty"`
	ChronicDiseases       *[]string `json:"chronic_diseases,omitempty"`
	Medications           *[]string `json:"medications,omitempty"`
	EmergencyContactName  *string   `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string   `json:"emergency_contact_phone,omitempty"`
}

func (r UpdateRequest) empty() bool {
	return r == UpdateRequest{}
}

type uploadResponse struct {
	ProfilePicture string `json:"profile_picture"`
}

// Service reads and edits the current user's profile.
type Service struct {
	api apiclient.JSONDoer
}

func NewService(api apiclient.JSONDoer) (*Service, error) {
	if api == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[profile.NewService] api is required")
	}
	return &Service{api: api}, nil
}

func (s *Service) Get(ctx context.Context) (*users.Profile, error) {
	var p users.Profile
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodGet, Path: profilePath}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update sends only the fields set in req and returns the stored profile.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*users.Profile, error) {
	if req.empty() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[profile.Update] nothing to update")
	}
	var p users.Profile
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodPatch, Path: updatePath, Body: req}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UploadPicture sends a JPEG, PNG or WebP image as multipart form data and returns
// the URL of the stored picture.
func (s *Service) UploadPicture(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPictureSize+1))
	if err != nil {
		return "", errors.Wrapf(err, "[profile.UploadPicture] read")
	}
	if len(data) == 0 {
		return "", errors.Wrapf(errors.ErrInvalidInput, "[profile.UploadPicture] empty file")
	}
	if len(data) > MaxPictureSize {
		return "", errors.Wrapf(errors.ErrInvalidInput, "[profile.UploadPicture] file larger than %d bytes", MaxPictureSize)
	}
	contentType := http.DetectContentType(data)
	if !allowedPictureTypes[contentType] {
		return "", errors.Wrapf(errors.ErrUnsupported, "[profile.UploadPicture] content type %s", contentType)
	}

	body, formType, err := pictureForm(filename, contentType, data)
	if err != nil {
		return "", err
	}

	var out uploadResponse
	err = s.api.DoJSON(ctx, apiclient.Request{
		Method:      http.MethodPost,
		Path:        uploadPath,
		RawBody:     body,
		ContentType: formType,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ProfilePicture, nil
}

func pictureForm(filename, contentType string, data []byte) ([]byte, string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "photo"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, pictureField, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", errors.Wrapf(err, "[profile.UploadPicture] create part")
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", errors.Wrapf(err, "[profile.UploadPicture] write part")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrapf(err, "[profile.UploadPicture] close form")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
