// Package validation checks user input before it reaches the store.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 12
	MaxPasswordLength = 128
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxEmailLength    = 254
	// MaxNameLength bounds identity and display names, in runes.
	MaxNameLength = 100

	passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9_-]*[a-zA-Z0-9])?$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// passwordClasses must each appear at least once. Letters without case,
// such as Thai, count toward neither letter class.
var passwordClasses = []struct {
	name string
	has  func(rune) bool
}{
	{"an uppercase letter", unicode.IsUpper},
	{"a lowercase letter", unicode.IsLower},
	{"a digit", func(r rune) bool { return r >= '0' && r <= '9' }},
	{"a symbol such as !@#$%^&*", func(r rune) bool { return strings.ContainsRune(passwordSymbols, r) }},
}

// ValidatePassword enforces the length bounds and requires every class in
// passwordClasses.
func ValidatePassword(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < MinPasswordLength:
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	case n > MaxPasswordLength:
		return fmt.Errorf("password must not exceed %d characters", MaxPasswordLength)
	}
	for _, class := range passwordClasses {
		if strings.IndexFunc(password, class.has) < 0 {
			return fmt.Errorf("password must contain %s", class.name)
		}
	}
	return nil
}

// ValidateUsername checks a profile username. Usernames become public path
// segments, so they are ASCII, start and end alphanumeric, and may not shadow
// a route.
func ValidateUsername(username string) error {
	if n := len(username); n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("username must be %d to %d characters long", MinUsernameLength, MaxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username may contain letters, digits, underscores and hyphens, and must start and end with a letter or digit")
	}
	if IsReservedRoute(username) {
		return errors.New("username is reserved")
	}
	return nil
}

// ValidateEmail checks the address shape only; there is no mailbox check.
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLength)
	}
	if !emailPattern.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateName checks an identity or display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name must not exceed %d characters", MaxNameLength)
	}
	return nil
}
