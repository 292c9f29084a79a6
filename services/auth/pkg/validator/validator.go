package validator

import (
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	otpMinLen = 4
	otpMaxLen = 8
)

// New returns a validator that also understands the "otp" tag.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("otp", validateOTP)
	return v
}

func validateOTP(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) < otpMinLen || len(code) > otpMaxLen {
		return false
	}

	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}
