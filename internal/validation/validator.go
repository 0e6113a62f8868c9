package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Common validation errors
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrInvalidUsername  = errors.New("invalid username format")
	ErrWeakPassword     = errors.New("password too weak")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidBirthdate = errors.New("invalid birthdate")
	ErrInvalidCountry   = errors.New("invalid country")
	ErrStringTooLong    = errors.New("string exceeds maximum length")
	ErrStringTooShort   = errors.New("string below minimum length")
)

// Regex patterns for validation
var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
)

// SanitizeString removes null bytes and trims surrounding whitespace.
// Parameterized queries remain the primary defense; this only normalizes
// what gets stored.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)
	return input
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if len(email) > 100 {
		return fmt.Errorf("%w: email must be <= 100 characters", ErrStringTooLong)
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateUsername validates username format: 3-30 characters,
// letters, digits, and underscore only.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("%w: username must be >= 3 characters", ErrStringTooShort)
	}
	if len(username) > 30 {
		return fmt.Errorf("%w: username must be <= 30 characters", ErrStringTooLong)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("%w: username can only contain letters, numbers, and underscore", ErrInvalidUsername)
	}
	return nil
}

// ValidatePassword validates password strength: at least 8 characters
// with at least one letter and one digit.
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrWeakPassword)
	}
	if len(password) > 128 {
		return fmt.Errorf("%w: password must be <= 128 characters", ErrStringTooLong)
	}

	var hasLetter, hasDigit bool
	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsNumber(char):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: password must contain at least one letter and one number", ErrWeakPassword)
	}

	return nil
}

// ValidateName validates a person name field (name or surname)
func ValidateName(value, fieldName string) error {
	value = SanitizeString(value)
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(value) > 50 {
		return fmt.Errorf("%w: %s must be <= 50 characters", ErrStringTooLong, fieldName)
	}
	for _, char := range value {
		if !unicode.IsLetter(char) && !unicode.IsSpace(char) && char != '-' && char != '\'' {
			return fmt.Errorf("%w: %s contains invalid characters", ErrInvalidName, fieldName)
		}
	}
	return nil
}

// ValidateBirthdate validates that a birthdate is not in the future
// and not implausibly old.
func ValidateBirthdate(birthdate time.Time) error {
	now := time.Now().UTC()
	if birthdate.After(now) {
		return fmt.Errorf("%w: birthdate cannot be in the future", ErrInvalidBirthdate)
	}
	if birthdate.Before(now.AddDate(-130, 0, 0)) {
		return fmt.Errorf("%w: birthdate too far in the past", ErrInvalidBirthdate)
	}
	return nil
}

// ValidateCountry validates the country field length
func ValidateCountry(country string) error {
	country = SanitizeString(country)
	if country == "" {
		return errors.New("country is required")
	}
	if len(country) < 2 {
		return fmt.Errorf("%w: country must be >= 2 characters", ErrStringTooShort)
	}
	if len(country) > 56 {
		return fmt.Errorf("%w: country must be <= 56 characters", ErrStringTooLong)
	}
	return nil
}
