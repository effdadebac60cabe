package apiclient

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

const (
	contentTypeJSON = "application/json"
	maxResponseBody = 4 << 20
)

// Request describes one API call. It is passed by value and never mutated by the
// client; the retry after a token refresh is a tagged copy.
type Request struct {
	Method string
	Path   string // relative to the base URL, e.g. "/clinics/"
	Query  url.Values
	Header http.Header

	// Body is JSON encoded when set. RawBody with ContentType is sent verbatim
	// instead, e.g. for multipart uploads.
	Body        any
	RawBody     []byte
	ContentType string

	// Public requests carry no credentials and never trigger a refresh.
	Public bool

	attempt int
	payload []byte
}

func (r Request) retried() bool {
	return r.attempt > 0
}

func (r Request) withRetry() Request {
	r.attempt++
	return r
}

// prepare encodes the body once so the retry resends identical bytes.
func (r Request) prepare() (Request, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	switch {
	case r.RawBody != nil:
		r.payload = r.RawBody
	case r.Body != nil:
		raw, err := json.Marshal(r.Body)
		if err != nil {
			return r, errors.Wrapf(errors.ErrInvalidInput, "[apiclient] encode %s %s body: %v", r.Method, r.Path, err)
		}
		r.payload = raw
		if r.ContentType == "" {
			r.ContentType = contentTypeJSON
		}
	}
	return r, nil
}

func (r Request) bodyReader() *bytes.Reader {
	if r.payload == nil {
		return nil
	}
	return bytes.NewReader(r.payload)
}

// Response is a completed 2xx exchange.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrapf(err, "[apiclient] decode response")
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
