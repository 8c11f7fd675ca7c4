// Package contact implements the contact-form pipeline: decode a submission,
// validate it, compose an email, hand it to a mailer.Transport, and map the
// outcome to a JSON response.
package contact

import (
	"regexp"
	"strings"
)

// Submission is one contact-form post. It lives for a single request.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Normalized returns a copy with surrounding whitespace removed from every
// field. Validation and composition both work on the normalized copy.
func (s Submission) Normalized() Submission {
	return Submission{
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.TrimSpace(s.Email),
		Subject: strings.TrimSpace(s.Subject),
		Message: strings.TrimSpace(s.Message),
	}
}

// ValidationError is a client-caused rejection. Error returns the exact text
// sent back in the 400 response.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var (
	// ErrFieldsRequired is returned when name, email or message is empty.
	ErrFieldsRequired = &ValidationError{Reason: "All fields are required."}

	// ErrInvalidEmail is returned when the email is not shaped like local@domain.tld.
	ErrInvalidEmail = &ValidationError{Reason: "Invalid email format."}
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks presence, then email shape. The first failure wins.
// Whitespace-only fields count as empty. Subject is optional and unchecked.
func Validate(s Submission) error {
	s = s.Normalized()
	if s.Name == "" || s.Email == "" || s.Message == "" {
		return ErrFieldsRequired
	}
	if !emailPattern.MatchString(s.Email) {
		return ErrInvalidEmail
	}
	return nil
}
