package auth

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

// Validator checks auth forms before anything is sent. Failures are reported as a
// *FieldError keyed by the JSON field name, the same shape the backend uses.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s and returns nil or a *FieldError wrapping ErrInvalidInput.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrapf(errors.ErrInvalidInput, "[auth.Validator] %v", err)
	}

	fe := &FieldError{Fields: make(map[string][]string, len(verrs)), Err: errors.ErrInvalidInput}
	for _, fieldErr := range verrs {
		fe.Fields[fieldErr.Field()] = append(fe.Fields[fieldErr.Field()], message(fieldErr))
	}
	return fe
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "eqfield":
		return "Passwords do not match."
	case "eq":
		if fe.Kind() == reflect.Bool {
			return "You must accept the terms."
		}
		return fmt.Sprintf("Must equal %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed the %q check.", fe.Tag())
	}
}
