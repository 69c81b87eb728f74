package validation

import (
	"net/mail"
	"strings"
)

const minPasswordLen = 8

// CreateUserRequest mirrors the fields needed for create user validation.
type CreateUserRequest struct {
	Email    string
	Password string
}

// ValidateCreateUserRequest validates the fields of a create user request.
// An empty password is allowed: such users can only use their API key.
func ValidateCreateUserRequest(req CreateUserRequest) []FieldError {
	var errs []FieldError

	errs = append(errs, validateEmail(req.Email)...)

	if req.Password != "" && len(req.Password) < minPasswordLen {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}

	return errs
}

// LoginRequest mirrors the login form.
type LoginRequest struct {
	Email    string
	Password string
}

// ValidateLoginRequest checks that both credentials are present.
func ValidateLoginRequest(req LoginRequest) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(req.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	}
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}

	return errs
}

func validateEmail(email string) []FieldError {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return []FieldError{{Field: "email", Message: "email is required"}}
	case len(email) > 255:
		return []FieldError{{Field: "email", Message: "email must be at most 255 characters"}}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return []FieldError{{Field: "email", Message: "email must be a valid address"}}
	}
	return nil
}
