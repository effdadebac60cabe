package auth

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/internal/errors"
)

// FieldError is a rejected form. Message is the form level text; Fields maps a field
// name to its messages. Err is the sentinel the failure classifies as.
type FieldError struct {
	Status  int
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		first := names[0]
		return first + ": " + strings.Join(e.Fields[first], " ")
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "request rejected"
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Field returns the first message for name, or "".
func (e *FieldError) Field(name string) string {
	if msgs := e.Fields[name]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// classify turns a pipeline rejection into the error shown on an auth screen.
// Non status failures, such as network errors, are returned unchanged.
func classify(err error, rejected error) error {
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apiclient.KindStatus {
		return err
	}

	fe := parsePayload(apiErr.Payload)
	fe.Status = apiErr.Status
	switch {
	case apiErr.Status == http.StatusConflict:
		fe.Err = errors.ErrDuplicateUser
	case apiErr.Status >= 500:
		fe.Err = errors.ErrInternal
	default:
		fe.Err = rejected
	}
	return fe
}

// formKeys carry form level messages, in order of preference.
var formKeys = []string{"error", "non_field_errors", "detail", "message"}

// parsePayload reads the backend error body. Keys in formKeys become the form
// message; any other key is a field.
func parsePayload(payload []byte) *FieldError {
	fe := &FieldError{}
	var raw map[string]json.RawMessage
	if json.Unmarshal(payload, &raw) != nil {
		return fe
	}
	for _, key := range formKeys {
		if msgs := messages(raw[key]); len(msgs) > 0 {
			fe.Message = msgs[0]
			break
		}
	}
	for key, value := range raw {
		if isFormKey(key) {
			continue
		}
		if msgs := messages(value); len(msgs) > 0 {
			if fe.Fields == nil {
				fe.Fields = make(map[string][]string)
			}
			fe.Fields[key] = msgs
		}
	}
	return fe
}

func isFormKey(key string) bool {
	for _, k := range formKeys {
		if k == key {
			return true
		}
	}
	return false
}

func messages(value json.RawMessage) []string {
	if len(value) == 0 {
		return nil
	}
	var one string
	if json.Unmarshal(value, &one) == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if json.Unmarshal(value, &many) == nil {
		return many
	}
	return nil
}
