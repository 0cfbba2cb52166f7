package security

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"divtrack/internal/errors"
)

var validate = validator.New()

// Credentials is the login/register input checked before it leaves the
// process.
type Credentials struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,max=128"`
}

// ValidateCredentials trims the email and rejects obviously malformed input.
// Whether the credentials are correct is decided by the server.
func ValidateCredentials(email, password string) (Credentials, error) {
	c := Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := strings.ToLower(fe.Field())
			value := interface{}(fe.Value())
			if field == "password" {
				value = MaskCredential(c.Password)
			}
			return c, errors.NewValidationError(field, value, field+" "+describeTag(fe.Tag()))
		}
		return c, err
	}
	return c, nil
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "is not a valid address"
	case "max":
		return "is too long"
	default:
		return "is invalid"
	}
}
