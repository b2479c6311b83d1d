// Package validation holds the storefront's input rules as go-playground/validator tags.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var (
	fullNamePattern = regexp.MustCompile(`^[A-Za-z ]+$`)
	emailPattern    = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
	mobilePattern   = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodePattern  = regexp.MustCompile(`^\d{6}$`)
	phonePattern    = regexp.MustCompile(`^\d{10}$`)
)

// New returns a validator with the storefront tags registered and JSON field names in errors.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	mustRegister(v, "fullname", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		return len(s) >= 3 && fullNamePattern.MatchString(s)
	})
	mustRegister(v, "lowerfirst", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && s[0] >= 'a' && s[0] <= 'z'
	})
	mustRegister(v, "shopemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "inmobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "phone10", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "pincode", func(fl validator.FieldLevel) bool {
		return pincodePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "cardholder", func(fl validator.FieldLevel) bool {
		return ValidCardHolder(fl.Field().String())
	})
	mustRegister(v, "luhn", func(fl validator.FieldLevel) bool {
		return Luhn(fl.Field().String())
	})
	mustRegister(v, "cvv", func(fl validator.FieldLevel) bool {
		return ValidCVV(fl.Field().String())
	})
	mustRegister(v, "upi", func(fl validator.FieldLevel) bool {
		return ValidUPI(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Message renders one field failure for shoppers.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email", "shopemail":
		return "must be a valid email"
	case "lowerfirst":
		return "must start with a lowercase letter"
	case "fullname":
		return "must be at least 3 letters and contain only letters and spaces"
	case "inmobile":
		return "must be 10 digits starting with 6-9"
	case "phone10":
		return "must be exactly 10 digits"
	case "pincode":
		return "must be exactly 6 digits"
	case "eqfield":
		return "does not match"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "cardholder":
		return "must contain only letters and spaces"
	case "luhn":
		return "is not a valid card number"
	case "cvv":
		return "must be 3 or 4 digits"
	case "upi":
		return "must be a valid UPI id"
	}
	return "is invalid"
}

// Fields flattens validator errors into field -> message.
func Fields(err error) map[string]string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = Message(fe)
		}
	}
	return out
}

// AsError converts a validator failure into a VALIDATION_ERROR with per-field details.
func AsError(err error) error {
	if err == nil {
		return nil
	}
	if details := Fields(err); details != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}
