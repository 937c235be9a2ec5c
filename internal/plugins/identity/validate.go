package identity

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/keyxmakerx/switchboard/internal/apperror"
)

// Password bounds shared with the Identity Service.
const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// Normalize trims the email and lower-cases it, matching how the Identity
// Service stores addresses.
func (in LoginInput) Normalize() LoginInput {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in
}

// Validate checks the login form before any network call. Returns a 422
// AppError describing the first problem, or nil.
func (in LoginInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return apperror.NewValidation("email is required")
	}
	if !validEmail(in.Email) {
		return apperror.NewValidation("email address is not valid")
	}
	if in.Password == "" {
		return apperror.NewValidation("password is required")
	}
	return nil
}

// Normalize trims every free-text field and lower-cases the email.
func (in RegisterInput) Normalize() RegisterInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in
}

// Validate checks the registration form before any network call, including
// the password confirmation. Returns a 422 AppError or nil.
func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.FirstName) == "" {
		return apperror.NewValidation("first name is required")
	}
	if utf8.RuneCountInString(in.FirstName) > 100 {
		return apperror.NewValidation("first name must be at most 100 characters")
	}
	if strings.TrimSpace(in.LastName) == "" {
		return apperror.NewValidation("last name is required")
	}
	if utf8.RuneCountInString(in.LastName) > 100 {
		return apperror.NewValidation("last name must be at most 100 characters")
	}
	if strings.TrimSpace(in.Email) == "" {
		return apperror.NewValidation("email is required")
	}
	if !validEmail(in.Email) {
		return apperror.NewValidation("email address is not valid")
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		return apperror.NewValidation("company name is required")
	}
	if utf8.RuneCountInString(in.CompanyName) > 200 {
		return apperror.NewValidation("company name must be at most 200 characters")
	}
	if in.Password == "" {
		return apperror.NewValidation("password is required")
	}
	if len(in.Password) < minPasswordLength {
		return apperror.NewValidation("password must be at least 8 characters")
	}
	if len(in.Password) > maxPasswordLength {
		return apperror.NewValidation("password must be at most 128 characters")
	}
	if in.ConfirmPassword != in.Password {
		return apperror.NewValidation("passwords do not match")
	}
	return nil
}

// validEmail accepts a bare address (no display name).
func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
