package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("reservation not found")
	ErrSlotTaken     = errors.New("this time slot is no longer available")
	ErrDuplicateID   = errors.New("reservation id already exists")
	ErrInvalidToken  = errors.New("invalid or expired cancellation link")
	ErrCaptchaFailed = errors.New("security check failed")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RateLimitedError reports an abuse-control rejection. RetryAfter is in seconds.
type RateLimitedError struct {
	Scope      string
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit %s exceeded, retry after %ds", e.Scope, e.RetryAfter)
}
