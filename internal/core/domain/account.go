package domain

import (
	"net/mail"
	"strings"
	"unicode"

	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
)

// Password validation constants
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxNameLength     = 255
	MaxEmailLength    = 255
)

// PasswordRequirements defines what a valid password needs
type PasswordRequirements struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// DefaultPasswordRequirements returns the requirements checked before a new
// password is sent to the server.
func DefaultPasswordRequirements() PasswordRequirements {
	return PasswordRequirements{
		MinLength:        MinPasswordLength,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
	}
}

// ValidatePassword returns one message per unmet requirement.
func ValidatePassword(password string) []string {
	var problems []string
	requirements := DefaultPasswordRequirements()

	if len(password) < requirements.MinLength {
		problems = append(problems, "Password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordLength {
		problems = append(problems, "Password must be 128 characters or less")
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if requirements.RequireUppercase && !hasUpper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if requirements.RequireLowercase && !hasLower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if requirements.RequireNumber && !hasNumber {
		problems = append(problems, "Password must contain at least one number")
	}
	if requirements.RequireSpecial && !hasSpecial {
		problems = append(problems, "Password must contain at least one special character")
	}
	return problems
}

// IsValidEmail reports whether email parses as an address.
func IsValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func validateEmail(errs *apperrors.ValidationErrors, field, email string) {
	switch {
	case email == "":
		errs.Add(field, "Email is required")
	case len(email) > MaxEmailLength:
		errs.Add(field, "Email must be 255 characters or less")
	case !IsValidEmail(email):
		errs.Add(field, "Invalid email format")
	}
}

// Credentials are what the login endpoint accepts.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Validate() error {
	errs := apperrors.NewValidationErrors()
	validateEmail(errs, "email", strings.TrimSpace(c.Email))
	if c.Password == "" {
		errs.Add("password", "Password is required")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// RegistrationParams creates an account in the caller's company.
type RegistrationParams struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Company   string `json:"company,omitempty"`
	Role      Role   `json:"role,omitempty"`
}

func (p RegistrationParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	if strings.TrimSpace(p.FirstName) == "" {
		errs.Add("first_name", "First name is required")
	} else if len(p.FirstName) > MaxNameLength {
		errs.Add("first_name", "First name must be 255 characters or less")
	}
	if len(p.LastName) > MaxNameLength {
		errs.Add("last_name", "Last name must be 255 characters or less")
	}
	validateEmail(errs, "email", p.Email)
	for _, msg := range ValidatePassword(p.Password) {
		errs.Add("password", msg)
	}
	if p.Role != "" {
		if _, ok := ParseRole(string(p.Role)); !ok {
			errs.Add("role", "Role must be one of user, manager, admin")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// PasswordChange replaces the signed-in user's password.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (p PasswordChange) Validate() error {
	errs := apperrors.NewValidationErrors()
	if p.CurrentPassword == "" {
		errs.Add("current_password", "Current password is required")
	}
	for _, msg := range ValidatePassword(p.NewPassword) {
		errs.Add("new_password", msg)
	}
	if p.CurrentPassword != "" && p.CurrentPassword == p.NewPassword {
		errs.Add("new_password", "New password must differ from the current one")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
