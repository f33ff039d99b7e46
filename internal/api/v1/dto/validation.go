package dto

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const passwordRuleMessage = "The password must have a Uppercase, lowercase letter and a number"

// NewValidator returns a validator with the custom tags used by the DTOs.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("password", validatePassword); err != nil {
		panic(err)
	}
	return v
}

// validatePassword requires an upper case letter, a lower case letter and a
// digit or symbol.
func validatePassword(fl validator.FieldLevel) bool {
	var upper, lower, digitOrSymbol bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			digitOrSymbol = true
		}
	}
	return upper && lower && digitOrSymbol
}

// ValidationMessages turns validator errors into one message per field.
func ValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s should not be empty", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be an email", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be longer than or equal to %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be shorter than or equal to %s characters", field, fe.Param()))
		case "password":
			msgs = append(msgs, passwordRuleMessage)
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return msgs
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
