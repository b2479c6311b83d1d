package session

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/validation"
	"github.com/go-playground/validator/v10"
)

var validate = validation.New()

// RegistrationInput is the sign-up form. Rules are advisory; the register servlet has the final word.
type RegistrationInput struct {
	FullName        string `json:"fullName" validate:"required,fullname"`
	Email           string `json:"email" validate:"required,lowerfirst,shopemail"`
	Phone           string `json:"phone" validate:"required,inmobile"`
	Address         string `json:"address" validate:"required"`
	Pincode         string `json:"pincode" validate:"required,pincode"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// registrationFields maps wire names to struct fields for per-field checks.
var registrationFields = map[string]string{
	"fullName":        "FullName",
	"email":           "Email",
	"phone":           "Phone",
	"address":         "Address",
	"pincode":         "Pincode",
	"password":        "Password",
	"confirmPassword": "ConfirmPassword",
}

func (in RegistrationInput) normalized() RegistrationInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Pincode = strings.TrimSpace(in.Pincode)
	return in
}

// ValidateRegistration is the submit gate: every rule must pass before the form is sent.
func ValidateRegistration(in RegistrationInput) error {
	return validation.AsError(validate.Struct(in.normalized()))
}

// ValidateRegistrationField checks a single field as the shopper types. It returns "" when the field is valid.
func ValidateRegistrationField(field string, in RegistrationInput) (string, error) {
	name, ok := registrationFields[field]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown registration field").WithDetails(map[string]any{"field": field})
	}
	err := validate.StructPartial(in.normalized(), name)
	if err == nil {
		return "", nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return validation.Message(errs[0]), nil
	}
	return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "validate field")
}

// ProfileInput is the editable part of a shopper profile.
type ProfileInput struct {
	FullName string `json:"fullName" validate:"required,fullname"`
	Phone    string `json:"phone" validate:"required,inmobile"`
	Address  string `json:"address" validate:"required"`
	Pincode  string `json:"pincode" validate:"required,pincode"`
}

// PasswordChange is the change-password form.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}
