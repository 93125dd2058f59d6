package httpapi

import (
	"fmt"
	"regexp"
	"strings"
)

// JSON bodies are decoded into these structs and validated explicitly;
// decoding alone is never the validation boundary.

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type registerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

func (r *registerRequest) validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)

	if !emailPattern.MatchString(r.Email) {
		return fmt.Errorf("invalid email address")
	}
	if r.FirstName == "" {
		return fmt.Errorf("first name is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

type verifyRequest struct {
	RegistrationToken string `json:"registrationToken"`
	OTP               string `json:"otp"`
}

func (r *verifyRequest) validate() error {
	r.RegistrationToken = strings.TrimSpace(r.RegistrationToken)
	r.OTP = strings.TrimSpace(r.OTP)

	if r.RegistrationToken == "" {
		return fmt.Errorf("registration token is required")
	}
	if r.OTP == "" {
		return fmt.Errorf("otp is required")
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginRequest) validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))

	if !emailPattern.MatchString(r.Email) {
		return fmt.Errorf("invalid email address")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}
