package api

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var fieldMessages = map[string]string{
	"name":            "Name must be between 2 and 100 characters",
	"phone":           "Please enter a valid phone number",
	"email":           "Please enter a valid email address",
	"partySize":       "Party size must be between 1 and 12",
	"date":            "Date must be in YYYY-MM-DD format",
	"time":            "Time must be in HH:mm format",
	"note":            "Note must be at most 500 characters",
	"captchaResponse": "Please complete the security check",
	"subject":         "Subject must be between 2 and 200 characters",
	"message":         "Message must be between 10 and 2000 characters",
	"token":           "Token is required",
}

func issueMessage(field, tag string) string {
	if field == "partySize" && tag == "type" {
		return "Party size must be a number"
	}
	if msg, ok := fieldMessages[field]; ok {
		return msg
	}
	if tag == "type" {
		return "has the wrong type"
	}
	return "is invalid"
}
