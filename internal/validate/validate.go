// Package validate holds the account input rules shared by the CLI (which
// checks before sending) and the reference backend (which enforces them).
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 30
)

var (
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email is not a valid address")
	ErrPasswordRequired = errors.New("password is required")
)

var emailPattern = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

// Email checks the address shape.
func Email(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

// Password enforces the password policy: 6 to 30 characters with at least
// one digit, one lower-case letter, one upper-case letter and one symbol.
func Password(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	}
	var digit, lower, upper, symbol bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r != '_':
			symbol = true
		}
	}
	switch {
	case !digit:
		return errors.New("password must contain a digit")
	case !lower:
		return errors.New("password must contain a lower-case letter")
	case !upper:
		return errors.New("password must contain an upper-case letter")
	case !symbol:
		return errors.New("password must contain a symbol")
	}
	return nil
}
