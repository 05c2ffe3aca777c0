// Package validation wraps go-playground/validator with the field rules the
// account and catalog inputs share.
//
// The validator caches struct metadata, so one instance is built lazily and
// reused. Custom tags:
//
//	username         3-50 chars of [A-Za-z0-9_-.$]
//	userid           1-255 printable ASCII chars
//	piecemeal_email  local@domain.tld
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/piecemeal/internal/apperror"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MaxUserIDLength   = 255
)

var (
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.$]+$`)
	userIDPattern   = regexp.MustCompile(`^[\x20-\x7E]+$`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the shared validator instance.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		mustRegister("username", func(fl validator.FieldLevel) bool {
			return ValidUsername(fl.Field().String()) == nil
		})
		mustRegister("userid", func(fl validator.FieldLevel) bool {
			return ValidUserID(fl.Field().String()) == nil
		})
		mustRegister("piecemeal_email", func(fl validator.FieldLevel) bool {
			return ValidEmail(fl.Field().String()) == nil
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: registering %q: %v", tag, err))
	}
}

// Struct validates s and converts the first failure into an
// apperror.InvalidArgument naming the offending field.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := toSnake(fe.Field())
		return apperror.InvalidArgument(field, messageFor(field, fe))
	}
	return apperror.InvalidArgument("", err.Error())
}

func messageFor(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("expected %s", field)
	case "username":
		if err := ValidUsername(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	case "userid":
		if err := ValidUserID(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	case "piecemeal_email":
		return "email has invalid syntax"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// ValidEmail checks the email syntax.
func ValidEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return apperror.InvalidArgument("email", "email has invalid syntax")
	}
	return nil
}

// ValidUsername checks the username length and charset.
func ValidUsername(username string) error {
	if len(username) < MinUsernameLength {
		return apperror.InvalidArgument("username", "username is too short")
	}
	if len(username) > MaxUsernameLength {
		return apperror.InvalidArgument("username", "username is too long")
	}
	if !usernamePattern.MatchString(username) {
		return apperror.InvalidArgument("username", "username has invalid syntax")
	}
	return nil
}

// ValidUserID checks that the id is short printable ASCII.
func ValidUserID(id string) error {
	if len(id) > MaxUserIDLength {
		return apperror.InvalidArgument("id", "user ID is too long")
	}
	if !userIDPattern.MatchString(id) {
		return apperror.InvalidArgument("id", "user ID has invalid syntax")
	}
	return nil
}

// ValidPage rejects negative pagination values.
func ValidPage(offset, limit int) error {
	if offset < 0 {
		return apperror.InvalidArgument("offset", "expected offset >= 0")
	}
	if limit < 0 {
		return apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	return nil
}

// toSnake turns a Go field name like GivenName into given_name.
func toSnake(s string) string {
	isUpper := func(r rune) bool { return r >= 'A' && r <= 'Z' }
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if isUpper(r) {
			startsWord := i > 0 && (!isUpper(runes[i-1]) ||
				(i+1 < len(runes) && !isUpper(runes[i+1])))
			if startsWord {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
